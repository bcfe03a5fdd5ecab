package staging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	logger, _ := logging.NewTestLogger()
	ws, err := NewWorkspace(filepath.Join(t.TempDir(), "stage"), logger)
	require.NoError(t, err)
	return ws
}

func TestNewWorkspace_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "stage")
	logger, _ := logging.NewTestLogger()

	ws, err := NewWorkspace(root, logger)

	require.NoError(t, err)
	assert.Equal(t, root, ws.Root())
	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewWorkspace_RootIsAFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	logger, _ := logging.NewTestLogger()

	_, err := NewWorkspace(filepath.Join(file, "stage"), logger)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot create staging directory")
}

func TestStage_WritesVerbatim(t *testing.T) {
	ws := newTestWorkspace(t)
	text := "\nflowchart TD\n    A[\"Test Unicode 🌟\"] --> B[\"Ελληνικά αβγ\"]\n    B --> C[\"العربية ١٢٣\"]\n      "

	stage, err := ws.Stage(text)
	require.NoError(t, err)

	data, err := os.ReadFile(stage.InputPath())
	require.NoError(t, err)
	assert.Equal(t, text, string(data))
	assert.Equal(t, "input.mmd", filepath.Base(stage.InputPath()))
	assert.Equal(t, "output.svg", filepath.Base(stage.OutputPath()))
	assert.Equal(t, filepath.Join(ws.Root(), stage.ID), stage.Dir)
}

func TestStage_UniqueDirectories(t *testing.T) {
	ws := newTestWorkspace(t)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		stage, err := ws.Stage("graph LR\n  A --> B")
		require.NoError(t, err)
		assert.False(t, seen[stage.Dir], "stage directory reused: %s", stage.Dir)
		seen[stage.Dir] = true
	}
}

func TestStage_WriteFailure(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.newID = func() string { return "fixed" }
	ws.writeFile = func(string, []byte, os.FileMode) error {
		return errors.New("Permission denied")
	}

	stage, err := ws.Stage("flowchart TD\n    A --> B")

	assert.Nil(t, stage)
	assert.EqualError(t, err, "Permission denied")
	_, statErr := os.Stat(filepath.Join(ws.Root(), "fixed"))
	assert.True(t, os.IsNotExist(statErr), "failed stage should be cleaned up")
}

func TestStage_MkdirFailure(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.mkdirAll = func(string, os.FileMode) error {
		return errors.New("no space left on device")
	}

	_, err := ws.Stage("flowchart TD")

	assert.EqualError(t, err, "no space left on device")
}

func TestStage_Remove(t *testing.T) {
	ws := newTestWorkspace(t)
	stage, err := ws.Stage("pie\n  \"a\": 1")
	require.NoError(t, err)

	require.NoError(t, stage.Remove())

	_, err = os.Stat(stage.Dir)
	assert.True(t, os.IsNotExist(err))
	// removing twice is harmless
	assert.NoError(t, stage.Remove())
}

func TestNewWorkspace_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	ws, err := NewWorkspace("~/stage-root", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "stage-root"), ws.Root())
	info, err := os.Stat(ws.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDefaultRoot(t *testing.T) {
	root := DefaultRoot()
	assert.True(t, strings.HasSuffix(root, filepath.Join(AppDirName, "stage")))
}
