package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StartupErrorModal shows a fatal error when the conversation view cannot be
// built, e.g. a broken config file or an unreadable transcript database.
type StartupErrorModal struct {
	title  string
	err    error
	hint   string
	width  int
	height int
}

func NewStartupErrorModal(title string, err error, hint string) StartupErrorModal {
	return StartupErrorModal{title: title, err: err, hint: hint}
}

func (m StartupErrorModal) Init() tea.Cmd {
	return nil
}

func (m StartupErrorModal) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "esc", "q", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m StartupErrorModal) View() string {
	if m.width < 20 || m.height < 10 {
		return "Terminal too small"
	}

	modalWidth := 60
	if m.width < modalWidth+10 {
		modalWidth = m.width - 10
	}

	titleSection := lipgloss.NewStyle().
		Bold(true).
		Foreground(dangerColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		Render(m.title)

	messageStyle := lipgloss.NewStyle().
		Width(modalWidth).
		Align(lipgloss.Center)

	lines := []string{""}
	if m.err != nil {
		for _, line := range strings.Split(m.err.Error(), "\n") {
			lines = append(lines, messageStyle.Render(line))
		}
	}
	if m.hint != "" {
		lines = append(lines, "", messageStyle.Foreground(dimColor).Render(m.hint))
	}
	lines = append(lines, "")

	messageSection := lipgloss.NewStyle().
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(strings.Join(lines, "\n"))

	footerSection := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render("Press Enter to quit")

	content := strings.Join([]string{titleSection, messageSection, footerSection}, "\n")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
