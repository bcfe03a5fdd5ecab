package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/diagram"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/parse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []Entry {
	return []Entry{
		{
			Path:   "docs/ok.mmd",
			Result: parse.Success(),
			Info:   diagram.Info{Kind: "flowchart", Known: true},
		},
		{
			Path:   "docs/bad.mmd",
			Result: parse.Fail("Error: Parse error on line 2:\nExpecting 'AMP', got 'EOF'"),
			Info:   diagram.Info{Kind: diagram.KindUnknown},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		raw      string
		expected Format
		wantErr  bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"TEXT", FormatText, false},
		{"markdown", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{"html", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseFormat(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleEntries())

	assert.Equal(t, Summary{Total: 2, Passed: 1, Failed: 1}, s)
	assert.Equal(t, "2 checked, 1 passed, 1 failed", s.String())
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestRender_TextNoColor(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Format: FormatText, NoColor: true})

	out, err := r.Render(sampleEntries())
	require.NoError(t, err)

	assert.NotContains(t, out, "\x1b[", "no ANSI sequences expected")
	assert.Contains(t, out, "✓ docs/ok.mmd (flowchart)\n")
	assert.Contains(t, out, "✗ docs/bad.mmd\n")
	assert.NotContains(t, out, "(unknown)")
	assert.Contains(t, out, "    Error: Parse error on line 2:")
	assert.Contains(t, out, "    Expecting 'AMP', got 'EOF'")
	assert.True(t, strings.HasSuffix(strings.TrimRight(out, " \n"), "2 checked, 1 passed, 1 failed"))
}

func TestRender_TextWrapsLongMessages(t *testing.T) {
	long := "Error: " + strings.Repeat("word ", 40)
	entries := []Entry{{Path: "long.mmd", Result: parse.Fail(strings.TrimSpace(long))}}

	r := New(&bytes.Buffer{}, Options{NoColor: true, Width: 40})
	out, err := r.Render(entries)
	require.NoError(t, err)

	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len(strings.TrimRight(line, " ")), 40, "line too long: %q", line)
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleEntries())

	assert.Contains(t, md, "# Mermaid check report")
	assert.Contains(t, md, "| `docs/ok.mmd` | flowchart | pass |")
	assert.Contains(t, md, "| `docs/bad.mmd` | unknown | **fail** |")
	assert.Contains(t, md, "## docs/bad.mmd\n\n```text\nError: Parse error on line 2:\nExpecting 'AMP', got 'EOF'\n```")
	assert.NotContains(t, md, "## docs/ok.mmd")
	assert.Contains(t, md, "_2 checked, 1 passed, 1 failed_")
}

func TestRender_Markdown(t *testing.T) {
	r := New(&bytes.Buffer{}, Options{Format: FormatMarkdown, NoColor: true, Width: 120})

	out, err := r.Render(sampleEntries())
	require.NoError(t, err)

	assert.Contains(t, out, "Mermaid check report")
	assert.Contains(t, out, "docs/bad.mmd")
	assert.Contains(t, out, "Expecting 'AMP', got 'EOF'")
}

func TestDetectGlamourStyle_EnvOverride(t *testing.T) {
	t.Setenv("GLAMOUR_STYLE", "light")
	assert.Equal(t, "light", detectGlamourStyle(0))
}
