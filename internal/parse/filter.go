package parse

import (
	"regexp"
	"strings"
)

const (
	errorMarker = "Error:"
	npmWarn     = "npm warn"
)

// npmWarnLine matches a whole "npm warn" line including its newline, in any case.
var npmWarnLine = regexp.MustCompile(`(?i)npm warn[^\n]*\n`)

// FilterErrorOutput reduces renderer stderr to the part a user needs to read.
//
// npm warnings are dropped, capture starts at the first line beginning with
// "Error:" and ends at the first stack frame. When no error line is found the
// trimmed input is returned unchanged. Empty input yields "" so the caller can
// choose its own fallback.
func FilterErrorOutput(errorOutput string) string {
	if errorOutput == "" {
		return ""
	}

	filtered := npmWarnLine.ReplaceAllString(errorOutput, "")

	var captured []string
	foundError := false
	for _, line := range strings.Split(filtered, "\n") {
		trimmed := strings.TrimSpace(line)

		// the last line has no trailing newline so the regexp above misses it
		if trimmed == "" || strings.Contains(strings.ToLower(trimmed), npmWarn) {
			continue
		}

		if isStackFrame(trimmed) {
			break
		}

		// A second "Error:" while capturing is kept as continuation.
		if foundError || strings.HasPrefix(trimmed, errorMarker) {
			foundError = true
			captured = append(captured, line)
		}
	}

	result := strings.TrimSpace(errorOutput)
	if len(captured) > 0 {
		result = strings.TrimSpace(strings.Join(captured, "\n"))
	}

	if result == "" {
		return UnknownParsingError
	}
	return result
}

func isStackFrame(trimmed string) bool {
	return strings.HasPrefix(trimmed, "at ") || strings.HasPrefix(trimmed, "at async")
}
