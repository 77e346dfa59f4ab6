package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	appmodel "helpdesk/model"
)

// renderDirective draws a widget embedded in an agent reply as a terminal box.
func renderDirective(d appmodel.Directive, width int) string {
	boxWidth := width - 4
	if boxWidth > 60 {
		boxWidth = 60
	}
	if boxWidth < 20 {
		boxWidth = 20
	}

	var title string
	var lines []string

	switch d.Name {
	case appmodel.DirectiveTechSupport:
		title = "☎ Вызвать оператора"
		lines = []string{
			"Если проблему не удалось решить,",
			"оператор техподдержки свяжется с вами.",
			DimStyle.Render("Среднее время ответа – 5 минут."),
		}

	case appmodel.DirectiveChangePassword:
		title = "🔑 Изменение пароля"
		lines = []string{
			"Введите текущий пароль, чтобы установить новый.",
			"Предыдущий пароль инвалидируется.",
		}
		if login := d.Attrs["login"]; login != "" {
			lines = append(lines, DimStyle.Render("Учётная запись: "+login))
		}

	default:
		return DimStyle.Render("[" + d.Name + "]")
	}

	inner := boxWidth - 4
	var b strings.Builder
	b.WriteString(SelectedStyle.Render(truncate(title, inner)))
	for _, line := range lines {
		b.WriteString("\n")
		b.WriteString(wrapPlain(line, inner))
	}

	return WidgetStyle.Width(boxWidth - 2).Render(b.String())
}

// truncate shortens s to fit width terminal cells.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

// wrapPlain wraps each line of text at word boundaries to width terminal
// cells. Styled text is measured without its escape codes.
func wrapPlain(text string, width int) string {
	if width <= 0 || lipgloss.Width(text) <= width {
		return text
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = wrapLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func wrapLine(line string, width int) string {
	if lipgloss.Width(line) <= width {
		return line
	}

	var lines []string
	var current string
	for _, word := range strings.Fields(line) {
		wordWidth := runewidth.StringWidth(word)
		currentWidth := runewidth.StringWidth(current)

		switch {
		case current == "":
			current = word
		case currentWidth+1+wordWidth <= width:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}

		// Words longer than the line are split
		for runewidth.StringWidth(current) > width {
			chunk := runewidth.Truncate(current, width, "")
			if chunk == "" {
				break
			}
			lines = append(lines, chunk)
			current = current[len(chunk):]
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return strings.Join(lines, "\n")
}
