// Package diagram extracts descriptive metadata from Mermaid source.
//
// Nothing here decides whether a diagram is valid; that is the renderer's
// job. The metadata only feeds logs and CLI reports.
package diagram

import (
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"
)

// KindUnknown is reported when no diagram declaration is found.
const KindUnknown = "unknown"

// knownKinds lists the diagram declarations Mermaid understands.
var knownKinds = map[string]bool{
	"flowchart":          true,
	"graph":              true,
	"sequenceDiagram":    true,
	"classDiagram":       true,
	"classDiagram-v2":    true,
	"stateDiagram":       true,
	"stateDiagram-v2":    true,
	"erDiagram":          true,
	"journey":            true,
	"gantt":              true,
	"pie":                true,
	"quadrantChart":      true,
	"requirementDiagram": true,
	"gitGraph":           true,
	"C4Context":          true,
	"C4Container":        true,
	"C4Component":        true,
	"C4Dynamic":          true,
	"C4Deployment":       true,
	"mindmap":            true,
	"timeline":           true,
	"zenuml":             true,
	"sankey-beta":        true,
	"xychart-beta":       true,
	"block-beta":         true,
	"packet-beta":        true,
	"kanban":             true,
	"architecture-beta":  true,
	"radar-beta":         true,
}

// Frontmatter is the YAML header Mermaid accepts before a diagram.
type Frontmatter struct {
	Title  string         `yaml:"title"`
	Config map[string]any `yaml:"config,omitempty"`
}

// Info describes a diagram.
type Info struct {
	Kind           string
	Known          bool
	Title          string
	HasFrontmatter bool
	Lines          int
}

// Describe returns metadata for text. An error is returned only when a
// frontmatter block is present but cannot be decoded; Info is still filled in
// as far as possible.
func Describe(text string) (Info, error) {
	info := Info{Kind: KindUnknown}

	body := strings.TrimLeft(text, " \t\r\n")
	var parseErr error
	if strings.HasPrefix(body, "---") {
		info.HasFrontmatter = true

		var matter Frontmatter
		rest, err := frontmatter.Parse(strings.NewReader(body), &matter)
		if err != nil {
			parseErr = fmt.Errorf("invalid frontmatter: %w", err)
		} else {
			info.Title = strings.TrimSpace(matter.Title)
			body = string(rest)
		}
	}

	if parseErr == nil {
		info.Kind = detectKind(body)
		info.Known = knownKinds[info.Kind]
	}
	info.Lines = countLines(text)

	return info, parseErr
}

// detectKind returns the first token of the first line that is not blank, a
// comment or a directive.
func detectKind(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "%%") {
			continue
		}
		fields := strings.Fields(trimmed)
		// "flowchart:" style typos still tell us what was meant
		return strings.TrimRight(fields[0], ":;")
	}
	return KindUnknown
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(strings.TrimRight(text, "\n"), "\n") + 1
}
