package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/logging"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/parse"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/staging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer stands in for mmdc. It reads the staged input the way the real
// renderer would and decides the outcome from it.
type fakeRenderer struct {
	mu     sync.Mutex
	calls  int
	inputs []string
	paths  []string
	decide func(input string) parse.Output
}

func (f *fakeRenderer) Run(_ context.Context, _ string, args ...string) parse.Output {
	inputPath := argAfter(args, "-i")
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return parse.Output{Err: err, Stderr: "Error: cannot read input"}
	}

	f.mu.Lock()
	f.calls++
	f.inputs = append(f.inputs, string(data))
	f.paths = append(f.paths, inputPath)
	f.mu.Unlock()

	if f.decide == nil {
		return parse.Output{}
	}
	return f.decide(string(data))
}

func (f *fakeRenderer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func newTestChecker(t *testing.T, renderer parse.Runner, wsOpts []staging.Option, opts ...Option) (*Checker, *staging.Workspace) {
	t.Helper()
	logger, _ := logging.NewTestLogger()
	ws, err := staging.NewWorkspace(filepath.Join(t.TempDir(), "stage"), logger, wsOpts...)
	require.NoError(t, err)
	parser := parse.NewParser(parse.WithRunner(renderer), parse.WithLogger(logger))
	return New(parser, ws, logger, opts...), ws
}

func stageEntries(t *testing.T, ws *staging.Workspace) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(ws.Root())
	require.NoError(t, err)
	return entries
}

func TestCheck_ValidDiagram(t *testing.T) {
	renderer := &fakeRenderer{}
	c, _ := newTestChecker(t, renderer, nil)
	text := "\nflowchart TD\n    A[Start] --> B[Process]\n    B --> C[End]\n    "

	result := c.Check(context.Background(), text)

	assert.Equal(t, parse.StatusSuccess, result.Status)
	assert.Empty(t, result.Message)
	require.Equal(t, 1, renderer.callCount())
	assert.Equal(t, text, renderer.inputs[0])
	assert.Equal(t, "input.mmd", filepath.Base(renderer.paths[0]))
}

func TestCheck_InvalidDiagram(t *testing.T) {
	renderer := &fakeRenderer{decide: func(string) parse.Output {
		return parse.Output{
			Err:      errors.New("exit status 1"),
			ExitCode: 1,
			Stderr:   "Error: Parse error\n    at Parser.parse (...)",
		}
	}}
	c, _ := newTestChecker(t, renderer, nil)

	result := c.Check(context.Background(), "flowchart TD\n    A -->")

	assert.Equal(t, parse.Fail("Error: Parse error"), result)
}

func TestCheck_RejectsBeforeIO(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"empty", "", "Input cannot be empty or contain only whitespace"},
		{"whitespace", "   \n\t\r\n   ", "Input cannot be empty or contain only whitespace"},
		{"nil", nil, "Input must be a string"},
		{"number", 42, "Input must be a string"},
		{"bytes", []byte("flowchart TD"), "Input must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := &fakeRenderer{}
			c, ws := newTestChecker(t, renderer, nil)

			result := c.Check(context.Background(), tt.input)

			assert.Equal(t, parse.StatusFail, result.Status)
			assert.Equal(t, tt.expected, result.Message)
			assert.Zero(t, renderer.callCount(), "renderer must not run")
			assert.Empty(t, stageEntries(t, ws), "nothing must be staged")
		})
	}
}

func TestCheck_WriteFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"descriptive error", errors.New("Permission denied"), "Unable to write temporary file: Permission denied"},
		{"blank error", errors.New(""), "Unable to write temporary file: File write failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := &fakeRenderer{}
			failingWrite := staging.WithWriteFile(func(string, []byte, os.FileMode) error { return tt.err })
			c, _ := newTestChecker(t, renderer, []staging.Option{failingWrite})

			result := c.Check(context.Background(), "flowchart TD\n    A --> B")

			assert.Equal(t, parse.StatusFail, result.Status)
			assert.Equal(t, tt.expected, result.Message)
			assert.Zero(t, renderer.callCount())
		})
	}
}

func TestCheck_CleansUpStage(t *testing.T) {
	c, ws := newTestChecker(t, &fakeRenderer{}, nil)

	c.Check(context.Background(), "flowchart TD\n    A --> B")

	assert.Empty(t, stageEntries(t, ws))
}

func TestCheck_KeepArtifactsRoundTrip(t *testing.T) {
	renderer := &fakeRenderer{}
	c, ws := newTestChecker(t, renderer, nil, WithKeepArtifacts(true))
	text := "\nflowchart TD\n    A[\"Test Unicode 🌟\"] --> B[\"Ελληνικά αβγ\"]\n      "

	result := c.CheckText(context.Background(), text)
	require.True(t, result.OK())

	entries := stageEntries(t, ws)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(ws.Root(), entries[0].Name(), parse.DefaultInputFile))
	require.NoError(t, err)
	assert.Equal(t, text, string(data))
}

func TestCheck_Idempotent(t *testing.T) {
	renderer := &fakeRenderer{}
	c, _ := newTestChecker(t, renderer, nil)

	for i := 0; i < 3; i++ {
		result := c.Check(context.Background(), "sequenceDiagram\n  Alice->>Bob: Hi")
		assert.True(t, result.OK(), "run %d", i)
	}
	assert.Equal(t, 3, renderer.callCount())
}

func TestCheck_ConcurrentChecksDoNotShareInput(t *testing.T) {
	// The renderer fails exactly when it is handed a diagram marked "bad",
	// so any cross-talk between staged files shows up as a wrong verdict.
	renderer := &fakeRenderer{decide: func(input string) parse.Output {
		time.Sleep(5 * time.Millisecond)
		if input[len(input)-3:] == "bad" {
			return parse.Output{Err: errors.New("exit status 1"), Stderr: "Error: " + input}
		}
		return parse.Output{}
	}}
	c, _ := newTestChecker(t, renderer, nil)

	var wg sync.WaitGroup
	var wrong atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			suffix := "good"
			if i%2 == 0 {
				suffix = "bad"
			}
			text := fmt.Sprintf("graph TD\n  N%d --> %s", i, suffix)
			result := c.Check(context.Background(), text)

			if suffix == "bad" && result.Message != "Error: "+text {
				wrong.Add(1)
			}
			if suffix == "good" && !result.OK() {
				wrong.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, wrong.Load())
}

func TestCheck_MaxConcurrent(t *testing.T) {
	var running, peak atomic.Int32
	renderer := &fakeRenderer{decide: func(string) parse.Output {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return parse.Output{}
	}}
	c, _ := newTestChecker(t, renderer, nil, WithMaxConcurrent(2))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Check(context.Background(), "graph TD\n  A --> B")
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 8, renderer.callCount())
}

func TestCheck_CancelledWhileWaitingForSlot(t *testing.T) {
	block := make(chan struct{})
	renderer := &fakeRenderer{decide: func(string) parse.Output {
		<-block
		return parse.Output{}
	}}
	c, _ := newTestChecker(t, renderer, nil, WithMaxConcurrent(1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Check(context.Background(), "graph TD\n  A --> B")
	}()
	require.Eventually(t, func() bool { return renderer.callCount() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := c.Check(ctx, "graph TD\n  C --> D")

	assert.Equal(t, "Check cancelled: context canceled", result.Message)
	close(block)
	<-done
}
