package ui

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"

	"helpdesk/config"
	appmodel "helpdesk/model"
)

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
)

const streamCursor = "▋"

// renderPending schedules markdown renders for messages whose cached
// rendering is missing, stale, or made for another width.
func (a *AppView) renderPending(force bool) []tea.Cmd {
	if !a.ready || a.width <= 0 {
		return nil
	}

	for idx := range a.rendered {
		if idx >= len(a.snapshot.Messages) {
			delete(a.rendered, idx)
		}
	}

	var cmds []tea.Cmd
	for i, msg := range a.snapshot.Messages {
		if msg.Author != appmodel.AuthorAgent {
			continue
		}
		entry, ok := a.rendered[i]
		if ok && !force && entry.source == msg.Text && entry.width == a.width {
			continue
		}
		if !ok || entry.source != msg.Text {
			entry = renderedMessage{source: msg.Text}
		}
		entry.width = a.width
		a.rendered[i] = entry
		cmds = append(cmds, renderMarkdownAsync(i, msg.Text, a.width))
	}
	return cmds
}

func (a *AppView) updateViewportContent(gotoBottom bool) {
	var content strings.Builder
	target := a.targetReply()

	for i, msg := range a.snapshot.Messages {
		highlightPrefix := ""
		if i == a.highlightedMessageIdx && a.highlightFlashCount%2 == 1 {
			highlightPrefix = HighlightStyle.Render(">>> ")
		}

		timestamp := DimStyle.Render(msg.Timestamp.Format("[15:04]"))

		if msg.Author == appmodel.AuthorUser {
			content.WriteString(formatUserMessage(highlightPrefix, timestamp, UserStyle.Render("Вы"), msg.Text))
			continue
		}

		var body string
		if entry, ok := a.rendered[i]; ok && entry.out != "" && entry.source == msg.Text {
			body = entry.out
		} else {
			body = appmodel.PlainText(msg.Text)
		}

		role := AgentStyle.Render("Агент")
		marker := ""
		if i == target {
			marker = SelectedStyle.Render(" ◆")
		}
		content.WriteString(fmt.Sprintf("%s%s %s%s%s\n%s\n\n",
			highlightPrefix, timestamp, role, marker, reactionBadge(msg.Reaction), body))
	}

	switch {
	case a.showSpinner():
		timestamp := DimStyle.Render(time.Now().Format("[15:04]"))
		content.WriteString(fmt.Sprintf("%s %s\n%s\n\n", timestamp, AgentStyle.Render("Агент"), a.loadingSpinner.View()))
	case a.snapshot.Status == appmodel.StatusStreaming:
		timestamp := DimStyle.Render(time.Now().Format("[15:04]"))
		content.WriteString(fmt.Sprintf("%s %s\n%s%s\n\n", timestamp, AgentStyle.Render("Агент"),
			wrapPlain(a.snapshot.Buffer, a.width-2), streamCursor))
	}

	a.viewport.SetContent(content.String())
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

// showSpinner reports whether the reply is expected but no text has arrived.
func (a AppView) showSpinner() bool {
	switch a.snapshot.Status {
	case appmodel.StatusPending:
		return true
	case appmodel.StatusStreaming:
		return a.snapshot.Buffer == ""
	}
	return false
}

func reactionBadge(r appmodel.Reaction) string {
	switch r {
	case appmodel.ReactionLiked:
		return " " + LikedStyle.Render("👍")
	case appmodel.ReactionDisliked:
		return " " + DislikedStyle.Render("👎")
	}
	return ""
}

func formatUserMessage(highlightPrefix, timestamp, role, content string) string {
	bar := UserStyle.Render("┃")

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s%s %s %s\n", highlightPrefix, bar, timestamp, role))
	for _, line := range strings.Split(content, "\n") {
		result.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}
	result.WriteString("\n")

	return result.String()
}

// renderRichText renders markdown segments and draws directives as widgets.
func renderRichText(text string, width int) string {
	var out []string
	for _, seg := range appmodel.ParseRichText(text) {
		switch seg.Kind {
		case appmodel.SegmentDirective:
			out = append(out, renderDirective(seg.Directive, width))
		default:
			if strings.TrimSpace(seg.Text) == "" {
				continue
			}
			out = append(out, strings.TrimRight(renderMarkdown(seg.Text, width), "\n"))
		}
	}
	return strings.Join(out, "\n")
}

func renderMarkdown(content string, width int) string {
	// [text](url) becomes url so every link is shown the same way
	content = mdLinkRegex.ReplaceAllString(content, "$2")

	// Autolink off keeps URLs plain for the terminal to detect
	ext := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(ext)
	r := markdown.NewRenderer(width-4, 0)
	rendered := gomarkdown.Render(p.Parse([]byte(content)), r)

	return postProcessMarkdown(string(rendered))
}

func postProcessMarkdown(rendered string) string {
	// Inline code: blue background becomes red text
	rendered = inlineCodeRegex.ReplaceAllString(rendered, "\x1b[31m$1\x1b[0m")

	lines := strings.Split(rendered, "\n")
	for i, line := range lines {
		// Code block lines keep their own colors
		if !strings.Contains(line, "┃") {
			lines[i] = urlRegex.ReplaceAllString(line, "\x1b[31m$1\x1b[0m")
		}
	}
	return strings.Join(lines, "\n")
}

func renderMarkdownAsync(messageIndex int, content string, width int) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		rendered := renderRichText(content, width)
		if config.DebugLog != nil {
			config.DebugLog.Debug().Int("message", messageIndex).Int("chars", len(content)).
				Dur("elapsed", time.Since(start)).Msg("markdown rendered")
		}
		return markdownRenderedMsg{MessageIndex: messageIndex, Rendered: rendered}
	}
}
