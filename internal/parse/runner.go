package parse

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// Output is what a single renderer run produced.
type Output struct {
	Err      error
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes an external command and reports how it finished.
// Implementations must not panic and must honour ctx cancellation.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) Output
}

// RunnerFunc adapts an ordinary function to the Runner interface.
type RunnerFunc func(ctx context.Context, name string, args ...string) Output

func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) Output {
	return f(ctx, name, args...)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct {
	// Dir is the working directory of the child process. Empty means the current one.
	Dir string
	// WaitDelay bounds how long to wait for output pipes after the process is killed.
	WaitDelay time.Duration
}

// Run starts the command and waits for it, capturing stdout and stderr.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) Output {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	configureProcessGroup(cmd)
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 2 * time.Second
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	out := Output{
		Err:      err,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil && ctx.Err() != nil {
		// killed by the context; report that instead of "signal: killed"
		out.Err = ctx.Err()
	}
	return out
}
