package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Border(2) + Padding(2) + Title(1) + Header(3) + Footer(2) + Flash(1) + scroll hints(2)
const transcriptListOverhead = 13

func (a AppView) visibleTranscripts() int {
	visible := a.height - transcriptListOverhead
	if visible < 1 {
		visible = 1
	}
	return visible
}

func renderTranscriptList(a AppView, width, height int) string {
	kb := a.dataModel.Config.Keys()

	modalWidth := width - 10
	if modalWidth > 90 {
		modalWidth = 90
	}
	if modalWidth < 30 {
		modalWidth = 30
	}

	if a.confirmDelete != nil {
		warning := lipgloss.NewStyle().Foreground(dangerColor).Render("Это действие нельзя отменить.")
		body := lipgloss.JoinVertical(lipgloss.Center,
			TitleStyle.Render("Удалить обращение"),
			"",
			"«"+a.confirmDelete.Name+"»",
			"",
			warning,
			"",
			FormatFooter("y", "Delete", "n", "Cancel"),
		)
		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dangerColor).
			Padding(1, 2).
			Render(body)
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
	}

	titleSection := lipgloss.NewStyle().
		Bold(true).
		Align(lipgloss.Center).
		Width(modalWidth).
		Render("Обращения")

	headerSection := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(fmt.Sprintf("Всего: %d", len(a.transcripts)))

	var list strings.Builder
	if len(a.transcripts) == 0 {
		list.WriteString(DimStyle.Render("Сохранённых обращений нет"))
	} else {
		start := a.transcriptScrollIdx
		end := start + a.visibleTranscripts()
		if end > len(a.transcripts) {
			end = len(a.transcripts)
		}

		if start > 0 {
			list.WriteString(DimStyle.Render(fmt.Sprintf("↑ ещё %d", start)) + "\n")
		}

		currentID := a.dataModel.CurrentTranscriptID()
		for i := start; i < end; i++ {
			t := a.transcripts[i]

			marker := "  "
			if t.ID == currentID {
				marker = LikedStyle.Render("● ")
			}
			details := DimStyle.Render(fmt.Sprintf("  %d сообщ. · %s",
				t.MessageCount, t.UpdatedAt.Local().Format("02.01.2006 15:04")))
			line := marker + truncate(t.Name, modalWidth-30) + details

			if i == a.selectedTranscriptIdx {
				line = SelectedStyle.Render("▶ ") + line
			} else {
				line = "  " + line
			}
			list.WriteString(line + "\n")
		}

		if end < len(a.transcripts) {
			list.WriteString(DimStyle.Render(fmt.Sprintf("↓ ещё %d", len(a.transcripts)-end)))
		}
	}

	flash := ""
	if a.flash != "" {
		style := StatusStyle
		if a.flashIsErr {
			style = ErrorStyle
		}
		flash = style.Render(a.flash)
	}

	footer := FormatFooter(
		kb.DisplayActionKey("search_down")+"/"+kb.DisplayActionKey("search_up"), "Navigate",
		"Enter", "Open",
		"d", "Delete",
		"Esc", "Close",
	)

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		titleSection,
		headerSection,
		strings.TrimRight(list.String(), "\n"),
		"",
		flash,
		footer,
	)

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accentColor).
		Padding(1, 2).
		Width(modalWidth + 4).
		Render(content)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modal)
}
