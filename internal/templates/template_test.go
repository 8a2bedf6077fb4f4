package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplateData_SplitLines(t *testing.T) {
	td := TemplateData{}
	assert.Equal(t, []string{"a", "b", "c"}, td.SplitLines("a\nb\nc"))
}

func TestTemplateData_Replace(t *testing.T) {
	td := TemplateData{}
	assert.Equal(t, "host www replaced", td.Replace("host www marker", "marker", "replaced"))
}

func TestTemplateData_CommaList(t *testing.T) {
	td := TemplateData{}
	assert.Equal(t, "a, b, c", td.CommaList([]string{"a", "b", "c"}))
	assert.Equal(t, "", td.CommaList(nil))
}

func TestTemplateData_QuotedCommaList(t *testing.T) {
	td := TemplateData{}
	assert.Equal(t, `"8.8.8.8", "8.8.4.4"`, td.QuotedCommaList([]string{"8.8.8.8", "8.8.4.4"}))
	assert.Equal(t, `"already"`, td.QuotedCommaList([]string{`"already"`}))
}

func TestTemplateData_OneLine(t *testing.T) {
	td := TemplateData{}
	assert.Equal(t, "a b c", td.OneLine("a\nb\nc"))
}
