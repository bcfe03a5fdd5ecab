// Package main is the entry point for the mermaid-inspector binary.
//
// Without a subcommand the binary serves the Mermaid syntax checker over MCP,
// on stdio by default or over streamable HTTP with --http. The check
// subcommand runs the same checker on local files and prints a report.
//
// Startup sequence:
//
// 1. Initialize logging on stderr (debug level with --debug)
// 2. Load configuration from disk, then environment, then flags
// 3. Build the checker: staging workspace, renderer, concurrency limit
// 4. Serve MCP or check files until done or interrupted
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/check"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/config"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/diagram"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/logging"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/mcp"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/parse"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/report"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/staging"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/validation"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/pkg/fileops"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

// errChecksFailed makes the check command exit 1 without printing an error.
var errChecksFailed = errors.New("one or more diagrams failed")

type options struct {
	http       bool
	port       string
	host       string
	configPath string

	renderer      string
	timeout       time.Duration
	workDir       string
	keepArtifacts bool
	debug         bool

	format  string
	noColor bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&options{}, stdin, stdout, stderr)
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errChecksFailed) {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(opts *options, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           config.AppName,
		Short:         "Mermaid diagram syntax checker served over MCP",
		Long:          "Serves a single MCP tool, check, that reports whether text is a valid Mermaid diagram.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts, stderr)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.Flags().BoolVar(&opts.http, "http", false, "use the streamable HTTP transport instead of stdio")
	root.Flags().StringVarP(&opts.port, "port", "p", "3000", "HTTP server port")
	root.Flags().StringVar(&opts.host, "host", config.DefaultHost, "HTTP server host")

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default "+config.ConfigPath()+")")
	pf.StringVar(&opts.renderer, "renderer", "", "renderer command, e.g. \"npx -y @mermaid-js/mermaid-cli\"")
	pf.DurationVar(&opts.timeout, "timeout", config.DefaultTimeout, "maximum time for one renderer run (0 disables)")
	pf.StringVar(&opts.workDir, "work-dir", "", "directory for staged diagrams")
	pf.BoolVar(&opts.keepArtifacts, "keep-artifacts", false, "keep staged input and rendered output after each check")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(newCheckCmd(opts, stdin, stdout, stderr))
	root.AddCommand(newVersionCmd(stdout))

	return root
}

func newCheckCmd(opts *options, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Check Mermaid files, directories or stdin (-)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, args, stdin, stdout, stderr)
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", string(report.FormatText), "report format: text or markdown")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	return cmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(stdout, "%s %s\n", config.AppName, version)
		},
	}
}

func newLogger(opts *options, stderr io.Writer) *logging.AppLogger {
	if opts.debug {
		return logging.NewAppLoggerWithOptions(stderr, log.DebugLevel, true)
	}
	logger := logging.NewAppLogger()
	if opts.http && !logger.IsDebug() {
		// HTTP mode owns no stdio, so the startup line is worth showing.
		return logging.NewAppLoggerWithOptions(stderr, log.InfoLevel, false)
	}
	return logger
}

// loadConfig layers the config file, environment and explicitly set flags.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFrom(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("renderer") {
		r, ok := config.ParseRenderer(opts.renderer)
		if !ok {
			return nil, fmt.Errorf("%w: --renderer cannot be empty", config.ErrInvalidConfig)
		}
		cfg.Renderer = r
	}
	if flags.Changed("timeout") {
		cfg.Timeout = config.Duration(opts.timeout)
	}
	if flags.Changed("work-dir") {
		cfg.WorkDir = opts.workDir
	}
	if flags.Changed("keep-artifacts") {
		cfg.KeepArtifacts = opts.keepArtifacts
	}
	if flags.Changed("host") {
		cfg.HTTP.Host = opts.host
	}
	if flags.Changed("port") {
		cfg.HTTP.Port = config.ParsePort(opts.port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newChecker wires the renderer, staging workspace and concurrency limit.
func newChecker(cfg *config.Config, logger *logging.AppLogger) (*check.Checker, error) {
	ws, err := staging.NewWorkspace(cfg.StageDir(), logger)
	if err != nil {
		return nil, err
	}

	argv := cfg.Renderer.Argv()
	parser := parse.NewParser(
		parse.WithCommand(argv[0], argv[1:]...),
		parse.WithWorkDir(cfg.WorkDir),
		parse.WithTimeout(cfg.Timeout.Std()),
		parse.WithLogger(logger),
	)

	return check.New(parser, ws, logger,
		check.WithKeepArtifacts(cfg.KeepArtifacts),
		check.WithMaxConcurrent(cfg.MaxConcurrent),
	), nil
}

func runServe(cmd *cobra.Command, opts *options, stderr io.Writer) error {
	logger := newLogger(opts, stderr)

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		logger.Error("Error loading config", "error", err)
		return err
	}
	logger.Debug("Configuration loaded", "renderer", cfg.Renderer.Argv(), "timeout", cfg.Timeout, "workDir", cfg.WorkDir)

	checker, err := newChecker(cfg, logger)
	if err != nil {
		logger.Error("Error preparing checker", "error", err)
		return err
	}

	server := mcp.NewServer(cfg, logger, checker, mcp.WithVersion(version))
	ctx := cmd.Context()

	if opts.http {
		if err := server.ServeHTTP(ctx, cfg.HTTP.Addr()); err != nil {
			logger.Error("MCP server failed", "error", err)
			return err
		}
		return nil
	}

	if err := server.ServeStdio(ctx); err != nil {
		logger.Error("MCP server failed", "error", err)
		return err
	}
	return nil
}

func runCheck(cmd *cobra.Command, opts *options, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	logger := newLogger(opts, stderr)

	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	files, err := fileops.CollectDiagramFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no Mermaid files (.mmd, .mermaid) found")
	}

	checker, err := newChecker(cfg, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	entries := make([]report.Entry, 0, len(files))
	for _, file := range files {
		entries = append(entries, checkFile(ctx, checker, file, stdin))
	}

	r := report.New(stdout, report.Options{
		Format:  format,
		NoColor: opts.noColor || os.Getenv("NO_COLOR") != "",
	})
	out, err := r.Render(entries)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, out)

	if report.Summarize(entries).Failed > 0 {
		return errChecksFailed
	}
	return nil
}

func checkFile(ctx context.Context, checker *check.Checker, file string, stdin io.Reader) report.Entry {
	start := time.Now()
	entry := report.Entry{Path: displayPath(file)}

	var (
		text string
		err  error
	)
	if file == fileops.StdinPath {
		text, err = validation.ReadDiagram(stdin, validation.DefaultMaxFileSize)
	} else {
		text, err = validation.ReadDiagramFile(file, validation.DefaultMaxFileSize)
	}
	if err != nil {
		entry.Result = parse.Fail(err.Error())
		return entry
	}

	entry.Info, _ = diagram.Describe(text)
	entry.Result = checker.CheckText(ctx, text)
	entry.Duration = time.Since(start)
	return entry
}

// displayPath shortens paths below the working directory.
func displayPath(file string) string {
	if file == fileops.StdinPath {
		return "<stdin>"
	}
	cwd, err := os.Getwd()
	if err != nil {
		return file
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return file
	}
	rel, err := filepath.Rel(cwd, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return file
	}
	return rel
}
