package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (a AppView) renderHelpModal(width, height int) string {
	kb := a.dataModel.Config.Keys()

	green := lipgloss.NewStyle().
		Bold(true).
		Foreground(successColor)

	title := green.Render("helpdesk - Keyboard Shortcuts")

	blue := lipgloss.NewStyle().Foreground(accentColor)

	conversation := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Conversation"),
		fmt.Sprintf("• %-13s Send question", "Enter"),
		fmt.Sprintf("• %-13s New line", "Alt+Enter"),
		fmt.Sprintf("• %-13s Cancel reply", kb.DisplayActionKey("cancel")),
		fmt.Sprintf("• %-13s Like reply", kb.DisplayActionKey("like")),
		fmt.Sprintf("• %-13s Dislike reply", kb.DisplayActionKey("dislike")),
		fmt.Sprintf("• %-13s Previous reply", kb.DisplayActionKey("select_prev_reply")),
		fmt.Sprintf("• %-13s Next reply", kb.DisplayActionKey("select_next_reply")),
		fmt.Sprintf("• %-13s Copy reply", kb.DisplayActionKey("yank_last_response")),
		fmt.Sprintf("• %-13s Copy conversation", kb.DisplayActionKey("yank_conversation")),
		fmt.Sprintf("• %-13s Clear input", kb.DisplayActionKey("clear_input")),
	)

	global := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Global Actions"),
		fmt.Sprintf("• %-13s New conversation", kb.DisplayActionKey("new_session")),
		fmt.Sprintf("• %-13s Search history", kb.DisplayActionKey("search_transcripts")),
		fmt.Sprintf("• %-13s Conversations", kb.DisplayActionKey("open_transcripts")),
		fmt.Sprintf("• %-13s Check server", kb.DisplayActionKey("agent_status")),
		fmt.Sprintf("• %-13s Toggle this help", kb.DisplayActionKey("help")),
		fmt.Sprintf("• %-13s Quit", kb.DisplayActionKey("quit")),
	)

	navigation := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Navigation"),
		fmt.Sprintf("• %-13s Scroll down 1 line", kb.DisplayActionKey("scroll_down")),
		fmt.Sprintf("• %-13s Scroll up 1 line", kb.DisplayActionKey("scroll_up")),
		fmt.Sprintf("• %-13s Half page down", kb.DisplayActionKey("half_page_down")),
		fmt.Sprintf("• %-13s Half page up", kb.DisplayActionKey("half_page_up")),
		fmt.Sprintf("• %-13s Jump to top", kb.DisplayActionKey("scroll_to_top")),
		fmt.Sprintf("• %-13s Jump to bottom", kb.DisplayActionKey("scroll_to_bottom")),
	)

	column1 := lipgloss.JoinVertical(lipgloss.Left, conversation)
	column2 := lipgloss.JoinVertical(lipgloss.Left, global, "", navigation)

	columnStyle := lipgloss.NewStyle().Width(42).PaddingLeft(4)

	twoColumns := lipgloss.JoinHorizontal(
		lipgloss.Top,
		columnStyle.Render(column1),
		"  ",
		columnStyle.Render(column2),
	)

	footer := lipgloss.NewStyle().
		Foreground(dimColor).
		Render(fmt.Sprintf("Press %s or Esc to close this help", kb.DisplayActionKey("help")))

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		title,
		"",
		twoColumns,
		"",
		footer,
	)

	helpBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 2).
		Width(96)

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		helpBox.Render(content),
	)
}
