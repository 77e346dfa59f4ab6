package agent

import (
	"strings"
	"unicode/utf8"
)

// Terminator removes the end-of-reply marker the server appends to every
// streamed reply. Strip reports whether a marker was found and removed; when
// it was not, text is returned unchanged.
//
// TrimPartial is used on a reply that was cut short. It removes a marker, or
// the beginning of one, from the end of text when it can be recognized.
type Terminator interface {
	Strip(text string) (string, bool)
	TrimPartial(text string) string
}

// FixedLength drops the last N characters, whatever they are.
// Text shorter than N is left alone.
type FixedLength struct {
	N int
}

func (f FixedLength) Strip(text string) (string, bool) {
	if f.N <= 0 {
		return text, true
	}
	if utf8.RuneCountInString(text) < f.N {
		return text, false
	}

	// Walk back N runes from the end
	cut := len(text)
	for i := 0; i < f.N; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:cut])
		cut -= size
	}
	return text[:cut], true
}

// TrimPartial leaves text alone: without knowing the marker, its first
// characters look like any other reply text.
func (f FixedLength) TrimPartial(text string) string {
	return text
}

// Suffix drops Sentinel only when the text actually ends with it.
type Suffix struct {
	Sentinel string
}

func (s Suffix) Strip(text string) (string, bool) {
	if s.Sentinel == "" {
		return text, true
	}
	if !strings.HasSuffix(text, s.Sentinel) {
		return text, false
	}
	return strings.TrimSuffix(text, s.Sentinel), true
}

func (s Suffix) TrimPartial(text string) string {
	if s.Sentinel == "" {
		return text
	}
	if stripped, ok := s.Strip(text); ok {
		return stripped
	}
	// Longest leading piece of the sentinel that text ends with
	for cut := len(s.Sentinel) - 1; cut > 0; cut-- {
		if !utf8.RuneStart(s.Sentinel[cut]) {
			continue
		}
		if strings.HasSuffix(text, s.Sentinel[:cut]) {
			return strings.TrimSuffix(text, s.Sentinel[:cut])
		}
	}
	return text
}

// NewTerminator prefers an exact sentinel when one is configured.
func NewTerminator(sentinel string, length int) Terminator {
	if sentinel != "" {
		return Suffix{Sentinel: sentinel}
	}
	return FixedLength{N: length}
}
