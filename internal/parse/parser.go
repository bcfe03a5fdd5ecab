package parse

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/logging"
)

// Default file names used when the caller does not supply its own.
const (
	DefaultInputFile  = "input.mmd"
	DefaultOutputFile = "output.svg"
)

// DefaultCommand runs the Mermaid CLI through npx.
var DefaultCommand = []string{"npx", "mmdc"}

// Parser validates a staged diagram file by running the Mermaid CLI on it.
type Parser struct {
	command []string
	workDir string
	timeout time.Duration
	runner  Runner
	logger  *logging.AppLogger
}

// Option configures a Parser.
type Option func(*Parser)

// WithCommand sets the renderer executable and any leading arguments.
func WithCommand(name string, args ...string) Option {
	return func(p *Parser) {
		if strings.TrimSpace(name) == "" {
			return
		}
		p.command = append([]string{name}, args...)
	}
}

// WithWorkDir sets the directory relative file names are resolved against.
func WithWorkDir(dir string) Option {
	return func(p *Parser) { p.workDir = dir }
}

// WithTimeout bounds a single renderer run. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(p *Parser) { p.timeout = d }
}

// WithRunner replaces the process runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(p *Parser) { p.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *logging.AppLogger) Option {
	return func(p *Parser) { p.logger = l }
}

// NewParser creates a Parser running `npx mmdc` unless configured otherwise.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		command: append([]string(nil), DefaultCommand...),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.runner == nil {
		p.runner = ExecRunner{Dir: p.workDir}
	}
	if p.logger == nil {
		p.logger = logging.GetDefault()
	}
	return p
}

// Command returns the argv that would validate inputPath into outputPath.
func (p *Parser) Command(inputPath, outputPath string) []string {
	argv := make([]string, 0, len(p.command)+4)
	argv = append(argv, p.command...)
	return append(argv, "-i", inputPath, "-o", outputPath)
}

// Parse runs the renderer on inputFile, writing the artifact to outputFile.
// Empty names fall back to DefaultInputFile and DefaultOutputFile; relative
// names are resolved against the work dir. Parse never fails: every problem
// is reported through the returned Result.
func (p *Parser) Parse(ctx context.Context, inputFile, outputFile string) Result {
	if inputFile == "" {
		inputFile = DefaultInputFile
	}
	if outputFile == "" {
		outputFile = DefaultOutputFile
	}
	inputPath := p.resolve(inputFile)
	outputPath := p.resolve(outputFile)

	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	argv := p.Command(inputPath, outputPath)
	start := time.Now()
	out := p.runner.Run(runCtx, argv[0], argv[1:]...)
	p.logger.Debug("Renderer finished",
		"command", strings.Join(argv, " "),
		"exitCode", out.ExitCode,
		"duration", time.Since(start),
	)

	if out.Err == nil {
		return Success()
	}

	// Distinguish our own deadline from a cancellation by the caller.
	if errors.Is(out.Err, context.DeadlineExceeded) && ctx.Err() == nil {
		return Fail(fmt.Sprintf("Renderer timed out after %s", p.timeout))
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Fail(fmt.Sprintf("Check cancelled: %v", ctxErr))
	}

	return Fail(failureMessage(out))
}

// failureMessage picks the most useful text from a failed run.
func failureMessage(out Output) string {
	processMessage := ""
	if out.Err != nil {
		processMessage = out.Err.Error()
	}

	errorOutput := out.Stderr
	if errorOutput == "" {
		errorOutput = processMessage
	}

	if filtered := FilterErrorOutput(errorOutput); filtered != "" {
		return filtered
	}
	if processMessage != "" {
		return processMessage
	}
	return UnknownError
}

func (p *Parser) resolve(name string) string {
	if filepath.IsAbs(name) || p.workDir == "" {
		return name
	}
	return filepath.Join(p.workDir, name)
}
