package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Border(2) + Padding(2) + Title(1) + Blank(1) + SearchInput(1) + Blank(1) +
// "Found X matches:"(1) + Blank(1) + Footer(1) + Blank(1) + scroll hints(4)
const searchOverhead = 16

// Conservative estimate that accounts for wrapping
const linesPerResult = 4

func (a AppView) visibleSearchResults() int {
	available := a.height - searchOverhead
	visible := available / linesPerResult
	if visible < 1 {
		visible = 1
	}
	return visible
}

func renderTranscriptSearch(a AppView, width, height int) string {
	kb := a.dataModel.Config.Keys()
	results := a.searchResults

	modalWidth := width - 4
	if modalWidth > 100 {
		modalWidth = 100
	}

	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dimColor).
		Padding(1, 2)

	title := TitleStyle.Render("🔍 Поиск по обращениям")

	resultsView := ""
	if len(results) == 0 {
		if a.searchInput.Value() == "" {
			resultsView = DimStyle.Render("Введите текст для поиска...")
		} else {
			resultsView = DimStyle.Render("Ничего не найдено")
		}
	} else {
		startIdx := a.searchScrollIdx
		endIdx := startIdx + a.visibleSearchResults()
		if endIdx > len(results) {
			endIdx = len(results)
		}

		resultsView = fmt.Sprintf("Найдено: %d\n\n", len(results))

		if startIdx > 0 {
			resultsView += DimStyle.Render(fmt.Sprintf("↑ ещё %d\n\n", startIdx))
		}

		for i := startIdx; i < endIdx; i++ {
			match := results[i]

			authorStyle := UserStyle
			if match.Author == "agent" {
				authorStyle = AgentStyle
			}

			matchText := fmt.Sprintf("%s [%s] %s\n  %s",
				authorStyle.Render(match.TranscriptName),
				match.Timestamp.Local().Format("02.01 15:04"),
				DimStyle.Render(match.Author),
				truncate(match.Preview, modalWidth-8),
			)

			if i == a.selectedSearchIdx {
				matchText = SelectedStyle.Render("> " + matchText)
			} else {
				matchText = "  " + matchText
			}

			resultsView += matchText + "\n\n"
		}

		if endIdx < len(results) {
			resultsView += DimStyle.Render(fmt.Sprintf("↓ ещё %d", len(results)-endIdx))
		}
	}

	footer := FormatFooter(
		kb.DisplayActionKey("search_down")+"/"+kb.DisplayActionKey("search_up"), "Navigate",
		"Enter", "Open",
		"Esc", "Close",
	)

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		a.searchInput.View(),
		"",
		resultsView,
		"",
		footer,
	)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		modalStyle.Width(modalWidth).Render(content))
}
