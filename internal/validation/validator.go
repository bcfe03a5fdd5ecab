package validation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Messages returned to MCP clients. They are part of the tool contract.
var (
	ErrNotString  = errors.New("Input must be a string")
	ErrEmptyInput = errors.New("Input cannot be empty or contain only whitespace")
)

// DefaultMaxFileSize caps diagram files read by the CLI.
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

// ValidateInput checks that v is non-blank diagram source and returns it as a string.
// No filesystem or process work happens here.
func ValidateInput(v any) (string, error) {
	text, ok := v.(string)
	if !ok {
		return "", ErrNotString
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}
	return text, nil
}

// ReadDiagramFile reads a diagram file for checking.
// Returns the content, or an error describing why the file cannot be checked.
func ReadDiagramFile(path string, maxSize int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("cannot stat file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return "", fmt.Errorf("file size %d bytes exceeds limit %d bytes", info.Size(), maxSize)
	}

	return ReadDiagram(f, maxSize)
}

// ReadDiagram reads diagram source from r, e.g. stdin, up to maxSize bytes.
func ReadDiagram(r io.Reader, maxSize int64) (string, error) {
	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}

	var b strings.Builder
	reader := bufio.NewReader(r)
	if _, err := io.Copy(&b, reader); err != nil {
		return "", fmt.Errorf("cannot read diagram: %w", err)
	}
	if maxSize > 0 && int64(b.Len()) > maxSize {
		return "", fmt.Errorf("diagram exceeds limit %d bytes", maxSize)
	}
	return b.String(), nil
}
