package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/config"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/diagram"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/logging"
	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/parse"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ToolName        = "check"
	ToolDescription = "Check if the text is a valid mermaid diagram. Returns an empty string if valid, otherwise returns the error message."
	TextParam       = "text"

	EndpointPath   = "/mcp"
	DefaultVersion = "1.0.0"

	internalErrorPrefix = "Internal error: "
	unexpectedPanic     = "Unexpected error occurred"

	shutdownTimeout = 5 * time.Second
)

// Checker runs one syntax check. check.Checker satisfies it.
type Checker interface {
	Check(ctx context.Context, input any) parse.Result
}

// Server represents an MCP server instance using mcp-go
type Server struct {
	config    *config.Config
	logger    *logging.AppLogger
	checker   Checker
	version   string
	mcpServer *server.MCPServer

	mu         sync.Mutex
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version advertised during MCP initialization.
func WithVersion(version string) Option {
	return func(s *Server) {
		if version != "" {
			s.version = version
		}
	}
}

// NewServer creates a new MCP server instance with the check tool registered.
func NewServer(cfg *config.Config, logger *logging.AppLogger, checker Checker, opts ...Option) *Server {
	if logger == nil {
		logger = logging.GetDefault()
	}
	s := &Server{
		config:  cfg,
		logger:  logger,
		checker: checker,
		version: DefaultVersion,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcpServer = server.NewMCPServer(
		config.AppName,
		s.version,
		server.WithToolCapabilities(false),
	)
	s.mcpServer.AddTool(CheckTool(), s.handleCheck)

	return s
}

// CheckTool returns the tool definition for check.
func CheckTool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription(ToolDescription),
		mcp.WithString(TextParam,
			mcp.Required(),
			mcp.Description("Mermaid diagram source to check"),
		),
	)
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Version returns the advertised server version.
func (s *Server) Version() string {
	return s.version
}

// handleCheck is the tool handler. It never returns a Go error: every outcome
// is reported as tool text.
func (s *Server) handleCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requestID := uuid.NewString()
	logger := s.logger.With("request", requestID)

	// A missing argument reaches the checker as nil and is rejected there.
	text := req.GetArguments()[TextParam]
	if str, ok := text.(string); ok && logger.IsDebug() {
		if info, err := diagram.Describe(str); err == nil {
			logger.Debug("Check requested", "kind", info.Kind, "known", info.Known, "lines", info.Lines)
		} else {
			logger.Debug("Check requested", "error", err)
		}
	}

	return mcp.NewToolResultText(s.runCheck(ctx, logger, text)), nil
}

// runCheck maps a check outcome to tool text, converting panics into
// internal error messages.
func (s *Server) runCheck(ctx context.Context, logger *logging.AppLogger, text any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			msg := unexpectedPanic
			if err, ok := r.(error); ok {
				msg = err.Error()
			}
			logger.Error("Error in check tool", "error", msg)
			out = internalErrorPrefix + msg
		}
	}()

	result := s.checker.Check(ctx, text)
	if result.Status == parse.StatusSuccess {
		logger.Debug("Check passed")
		return ""
	}
	if result.Message == "" {
		return parse.UnknownError
	}
	logger.Debug("Check failed", "message", result.Message)
	return result.Message
}

// ServeStdio serves MCP over stdin/stdout until ctx is cancelled or stdin
// is closed.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("MCP server started (stdio mode)", "version", s.version)

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(s.logger.StdLogger())

	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server failed: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler serving the streamable transport at
// EndpointPath.
func (s *Server) Handler() http.Handler {
	streamable := server.NewStreamableHTTPServer(s.mcpServer, server.WithEndpointPath(EndpointPath))
	mux := http.NewServeMux()
	mux.Handle(EndpointPath, streamable)
	return mux
}

// ServeHTTP serves the streamable HTTP transport on addr until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("MCP server started (HTTP mode)", "port", portOf(ln.Addr()), "endpoint", EndpointPath)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("MCP HTTP server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

// Stop gracefully shuts down an active HTTP transport. It is a no-op for
// stdio, which stops when its context is cancelled.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.logger.Info("Stopping MCP server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop MCP server: %w", err)
	}
	return nil
}

func portOf(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return strconv.Itoa(tcp.Port)
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return port
}
