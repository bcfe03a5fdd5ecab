// Package check turns untrusted diagram input into a parse.Result.
//
// A Checker validates the input, stages it in a fresh directory, runs the
// renderer on it and, unless artifacts are kept, removes the directory again.
package check

import (
	"context"
	"fmt"
	"time"

	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/logging"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/parse"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/staging"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/validation"
)

const (
	writeFailurePrefix  = "Unable to write temporary file: "
	writeFailureUnknown = "File write failed"
)

// Checker validates Mermaid diagrams.
type Checker struct {
	parser        *parse.Parser
	workspace     *staging.Workspace
	logger        *logging.AppLogger
	keepArtifacts bool
	slots         chan struct{}
}

// Option configures a Checker.
type Option func(*Checker)

// WithKeepArtifacts leaves stage directories on disk after a check.
func WithKeepArtifacts(keep bool) Option {
	return func(c *Checker) { c.keepArtifacts = keep }
}

// WithMaxConcurrent limits how many renderer processes run at once. Zero means unlimited.
func WithMaxConcurrent(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.slots = make(chan struct{}, n)
		} else {
			c.slots = nil
		}
	}
}

// New creates a Checker.
func New(parser *parse.Parser, workspace *staging.Workspace, logger *logging.AppLogger, opts ...Option) *Checker {
	if logger == nil {
		logger = logging.GetDefault()
	}
	c := &Checker{
		parser:    parser,
		workspace: workspace,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckText validates diagram source text.
func (c *Checker) CheckText(ctx context.Context, text string) parse.Result {
	return c.Check(ctx, text)
}

// Check validates input, which is normally a string taken straight from a
// tool call. Anything that is not a non-blank string is rejected before any
// file is written.
func (c *Checker) Check(ctx context.Context, input any) parse.Result {
	text, err := validation.ValidateInput(input)
	if err != nil {
		c.logger.Debug("Rejected input", "reason", err)
		return parse.Fail(err.Error())
	}

	if err := c.acquire(ctx); err != nil {
		return parse.Fail(fmt.Sprintf("Check cancelled: %v", err))
	}
	defer c.release()

	start := time.Now()
	defer c.logger.LogPerformance("check", start)

	stage, err := c.workspace.Stage(text)
	if err != nil {
		return parse.Fail(writeFailureMessage(err))
	}
	if !c.keepArtifacts {
		defer func() {
			if err := stage.Remove(); err != nil {
				c.logger.Warn("Failed to clean up stage", "stage", stage.ID, "error", err)
			}
		}()
	}

	result := c.parser.Parse(ctx, stage.InputPath(), stage.OutputPath())
	c.logger.Debug("Check finished", "stage", stage.ID, "status", result.Status)
	return result
}

func writeFailureMessage(err error) string {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = writeFailureUnknown
	}
	return writeFailurePrefix + msg
}

func (c *Checker) acquire(ctx context.Context) error {
	if c.slots == nil {
		return nil
	}
	select {
	case c.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Checker) release() {
	if c.slots != nil {
		<-c.slots
	}
}
