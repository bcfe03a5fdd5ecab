// Package report renders the results of a batch of diagram checks for the
// terminal, either as styled text or as markdown rendered with glamour.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/diagram"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/parse"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
)

// Format selects the report layout.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

const (
	DefaultWidth  = 100
	messageIndent = 4
)

// ParseFormat validates a --format value.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown report format %q (expected text or markdown)", raw)
	}
}

// Entry is the outcome of checking one file.
type Entry struct {
	Path     string
	Result   parse.Result
	Info     diagram.Info
	Duration time.Duration
}

// Summary counts outcomes.
type Summary struct {
	Total  int
	Passed int
	Failed int
}

// Summarize counts passed and failed entries.
func Summarize(entries []Entry) Summary {
	s := Summary{Total: len(entries)}
	for _, e := range entries {
		if e.Result.OK() {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d checked, %d passed, %d failed", s.Total, s.Passed, s.Failed)
}

// Options configures a Renderer.
type Options struct {
	Format  Format
	NoColor bool
	// Width wraps error messages; zero selects DefaultWidth.
	Width int
}

// Renderer turns entries into a report for one output stream.
type Renderer struct {
	opts   Options
	styles styles
}

type styles struct {
	pass    lipgloss.Style
	fail    lipgloss.Style
	path    lipgloss.Style
	kind    lipgloss.Style
	message lipgloss.Style
	summary lipgloss.Style
}

// New returns a Renderer whose colour profile follows w, or plain ASCII when
// NoColor is set.
func New(w io.Writer, opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Format == "" {
		opts.Format = FormatText
	}

	lr := lipgloss.NewRenderer(w)
	if opts.NoColor {
		lr.SetColorProfile(termenv.Ascii)
	}

	return &Renderer{
		opts: opts,
		styles: styles{
			pass:    lr.NewStyle().Foreground(lipgloss.Color("#00ff5f")).Bold(true),
			fail:    lr.NewStyle().Foreground(lipgloss.Color("#ff005f")).Bold(true),
			path:    lr.NewStyle().Bold(true),
			kind:    lr.NewStyle().Foreground(lipgloss.Color("#626262")),
			message: lr.NewStyle().Foreground(lipgloss.Color("#ff87af")),
			summary: lr.NewStyle().Faint(true).MarginTop(1),
		},
	}
}

// Render returns the report in the configured format.
func (r *Renderer) Render(entries []Entry) (string, error) {
	if r.opts.Format == FormatMarkdown {
		return r.renderMarkdown(entries)
	}
	return r.renderText(entries), nil
}

func (r *Renderer) renderText(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		if e.Result.OK() {
			b.WriteString(r.styles.pass.Render("✓"))
		} else {
			b.WriteString(r.styles.fail.Render("✗"))
		}
		b.WriteString(" ")
		b.WriteString(r.styles.path.Render(e.Path))
		if e.Info.Kind != "" && e.Info.Kind != diagram.KindUnknown {
			b.WriteString(" ")
			b.WriteString(r.styles.kind.Render("(" + e.Info.Kind + ")"))
		}
		b.WriteString("\n")

		if !e.Result.OK() {
			wrapped := wordwrap.String(e.Result.Message, r.opts.Width-messageIndent)
			b.WriteString(r.styles.message.Render(indent.String(wrapped, messageIndent)))
			b.WriteString("\n")
		}
	}
	b.WriteString(r.styles.summary.Render(Summarize(entries).String()))
	b.WriteString("\n")
	return b.String()
}

// Markdown returns the report as a markdown document.
func Markdown(entries []Entry) string {
	var b strings.Builder
	b.WriteString("# Mermaid check report\n\n")
	b.WriteString("| File | Diagram | Result |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, e := range entries {
		status := "pass"
		if !e.Result.OK() {
			status = "**fail**"
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s |\n", e.Path, e.Info.Kind, status)
	}

	for _, e := range entries {
		if e.Result.OK() {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n```text\n%s\n```\n", e.Path, e.Result.Message)
	}

	fmt.Fprintf(&b, "\n_%s_\n", Summarize(entries))
	return b.String()
}

func (r *Renderer) renderMarkdown(entries []Entry) (string, error) {
	style := "notty"
	if !r.opts.NoColor {
		style = detectGlamourStyle(50 * time.Millisecond)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(r.opts.Width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	out, err := renderer.Render(Markdown(entries))
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

// detectGlamourStyle respects GLAMOUR_STYLE when set to a concrete value and
// otherwise asks the terminal for its background, giving up after timeout.
func detectGlamourStyle(timeout time.Duration) string {
	defaultStyle := "dark"

	style := os.Getenv("GLAMOUR_STYLE")
	if style != "" && style != "auto" {
		return style
	}

	ch := make(chan string, 1)
	go func() {
		out := termenv.NewOutput(os.Stdout)
		if out.HasDarkBackground() {
			ch <- "dark"
			return
		}
		ch <- "light"
	}()

	select {
	case s := <-ch:
		return s
	case <-time.After(timeout):
		return defaultStyle
	}
}
