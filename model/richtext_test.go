package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRichText_PlainOnly(t *testing.T) {
	segs := ParseRichText("just text")
	require.Len(t, segs, 1)
	assert.Equal(t, SegmentText, segs[0].Kind)
	assert.Equal(t, "just text", segs[0].Text)

	assert.Empty(t, ParseRichText(""))
}

func TestParseRichText_Directives(t *testing.T) {
	text := "Сбросьте пароль:\n<ChangePassword login=\"ivanov\" />\nили <TechSupport />"
	segs := ParseRichText(text)
	require.Len(t, segs, 4)

	assert.Equal(t, "Сбросьте пароль:\n", segs[0].Text)

	assert.Equal(t, SegmentDirective, segs[1].Kind)
	assert.Equal(t, DirectiveChangePassword, segs[1].Directive.Name)
	assert.Equal(t, map[string]string{"login": "ivanov"}, segs[1].Directive.Attrs)

	assert.Equal(t, "\nили ", segs[2].Text)

	assert.Equal(t, DirectiveTechSupport, segs[3].Directive.Name)
	assert.Nil(t, segs[3].Directive.Attrs)
}

func TestParseRichText_IgnoresLowercaseAndFencedTags(t *testing.T) {
	text := "<br />\n```\n<TechSupport />\n```\n"
	for _, seg := range ParseRichText(text) {
		assert.Equal(t, SegmentText, seg.Kind)
	}
}

func TestParseRichText_UnterminatedFence(t *testing.T) {
	segs := ParseRichText("<TechSupport />\n```go\n<TechSupport />")
	var directives int
	for _, seg := range segs {
		if seg.Kind == SegmentDirective {
			directives++
		}
	}
	assert.Equal(t, 1, directives)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "a  b", PlainText("a <TechSupport /> b"))
	assert.Equal(t, SeedGreeting[:len(SeedGreeting)-len("<TechSupport />")], PlainText(SeedGreeting))
}
