package model

import (
	"regexp"
	"strings"
)

// SegmentKind tells plain text apart from embedded directives.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentDirective
)

// Directive is a widget reference embedded in message text, written as a
// self-closing tag with a capitalised name, e.g. <TechSupport /> or
// <ChangePassword login="ivanov" />. Resolving it to a widget is up to the
// renderer.
type Directive struct {
	Name  string
	Attrs map[string]string
}

// Known directive names.
const (
	DirectiveTechSupport    = "TechSupport"
	DirectiveChangePassword = "ChangePassword"
)

// Segment is a run of plain text or a single directive.
type Segment struct {
	Kind      SegmentKind
	Text      string
	Directive Directive
}

var (
	directiveRegex = regexp.MustCompile(`<([A-Z][A-Za-z0-9]*)((?:\s+[A-Za-z_][\w-]*="[^"]*")*)\s*/>`)
	attrRegex      = regexp.MustCompile(`([A-Za-z_][\w-]*)="([^"]*)"`)
)

// ParseRichText splits text into plain segments and directives. Tags inside
// fenced code blocks stay plain text. Adjacent text is never split into more
// than one segment.
func ParseRichText(text string) []Segment {
	fences := fencedRanges(text)
	var segments []Segment
	last := 0

	for _, loc := range directiveRegex.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		if insideAny(start, fences) {
			continue
		}
		if start > last {
			segments = append(segments, Segment{Kind: SegmentText, Text: text[last:start]})
		}
		segments = append(segments, Segment{
			Kind:      SegmentDirective,
			Text:      text[start:end],
			Directive: Directive{Name: text[loc[2]:loc[3]], Attrs: parseAttrs(text[loc[4]:loc[5]])},
		})
		last = end
	}

	if last < len(text) {
		segments = append(segments, Segment{Kind: SegmentText, Text: text[last:]})
	}
	return segments
}

// PlainText returns text with every directive removed.
func PlainText(text string) string {
	var b strings.Builder
	for _, seg := range ParseRichText(text) {
		if seg.Kind == SegmentText {
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

func parseAttrs(s string) map[string]string {
	matches := attrRegex.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(matches))
	for _, m := range matches {
		attrs[m[1]] = m[2]
	}
	return attrs
}

type span struct{ start, end int }

// fencedRanges finds ``` blocks. An unterminated fence runs to the end.
func fencedRanges(text string) []span {
	var spans []span
	open := -1
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if open < 0 {
				open = offset
			} else {
				spans = append(spans, span{open, offset + len(line)})
				open = -1
			}
		}
		offset += len(line)
	}
	if open >= 0 {
		spans = append(spans, span{open, len(text)})
	}
	return spans
}

func insideAny(pos int, spans []span) bool {
	for _, s := range spans {
		if pos >= s.start && pos < s.end {
			return true
		}
	}
	return false
}
