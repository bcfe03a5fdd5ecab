// Package staging manages the scratch directories diagrams are written to
// before the renderer reads them.
//
// Every check gets its own directory named by a random UUID under the
// workspace root, so concurrent checks never read each other's input.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/logging"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/parse"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/pkg/fileops"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
)

// AppDirName is the directory name used under XDG base directories.
const AppDirName = "mermaid-inspector"

// DefaultRoot returns the default workspace root in the user's cache directory.
func DefaultRoot() string {
	return filepath.Join(xdg.CacheHome, AppDirName, "stage")
}

// Workspace hands out per-check stage directories below a root.
type Workspace struct {
	root   string
	logger *logging.AppLogger

	// swapped in tests
	mkdirAll  func(path string, perm os.FileMode) error
	writeFile func(name string, data []byte, perm os.FileMode) error
	newID     func() string
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithWriteFile replaces the function used to write staged input.
func WithWriteFile(fn func(name string, data []byte, perm os.FileMode) error) Option {
	return func(w *Workspace) { w.writeFile = fn }
}

// NewWorkspace creates the root directory if needed and returns a Workspace on it.
func NewWorkspace(root string, logger *logging.AppLogger, opts ...Option) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		root = DefaultRoot()
	}
	root = filepath.Clean(fileops.ExpandPath(strings.TrimSpace(root)))

	if err := fileops.EnsureDirectoryExists(root); err != nil {
		return nil, fmt.Errorf("cannot create staging directory: %w", err)
	}
	if logger == nil {
		logger = logging.GetDefault()
	}
	logger.Debug("Staging workspace ready", "root", root)

	w := &Workspace{
		root:      root,
		logger:    logger,
		mkdirAll:  os.MkdirAll,
		writeFile: os.WriteFile,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string {
	return w.root
}

// Stage is one check's scratch directory.
type Stage struct {
	ID  string
	Dir string
}

// InputPath is where the diagram source was written.
func (s *Stage) InputPath() string {
	return filepath.Join(s.Dir, parse.DefaultInputFile)
}

// OutputPath is where the renderer writes its artifact.
func (s *Stage) OutputPath() string {
	return filepath.Join(s.Dir, parse.DefaultOutputFile)
}

// Remove deletes the stage directory and everything in it.
func (s *Stage) Remove() error {
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("failed to remove stage %s: %w", s.ID, err)
	}
	return nil
}

// Stage writes text verbatim as the input file of a new stage directory.
// The returned error is the underlying filesystem error, unwrapped, so that
// callers can show its message as-is.
func (w *Workspace) Stage(text string) (*Stage, error) {
	id := w.newID()
	stage := &Stage{ID: id, Dir: filepath.Join(w.root, id)}

	if err := w.mkdirAll(stage.Dir, 0o755); err != nil {
		w.logger.Error("Failed to create stage directory", "dir", stage.Dir, "error", err)
		return nil, err
	}

	if err := w.writeFile(stage.InputPath(), []byte(text), 0o644); err != nil {
		w.logger.Error("Failed to write staged input", "path", stage.InputPath(), "error", err)
		// best effort; the write error is what matters
		_ = os.RemoveAll(stage.Dir)
		return nil, err
	}

	w.logger.Debug("Staged diagram", "stage", id, "bytes", len(text))
	return stage, nil
}
