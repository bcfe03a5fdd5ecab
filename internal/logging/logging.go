package logging

import (
	"bytes"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// LogFileName is the debug log written into the working directory when DEBUG is set.
const LogFileName = "mermaid-inspector.log"

type AppLogger struct {
	logger *log.Logger
	debug  bool
}

var (
	defaultLogger *AppLogger
	once          sync.Once
)

// GetDefault returns the default logger instance (singleton-like for convenience)
func GetDefault() *AppLogger {
	once.Do(func() {
		defaultLogger = NewAppLogger()
	})
	return defaultLogger
}

// Package-level convenience functions for quick logging
func Info(msg string, keyvals ...interface{}) {
	GetDefault().Info(msg, keyvals...)
}

func Warn(msg string, keyvals ...interface{}) {
	GetDefault().Warn(msg, keyvals...)
}

func Error(msg string, keyvals ...interface{}) {
	GetDefault().Error(msg, keyvals...)
}

func Debug(msg string, keyvals ...interface{}) {
	GetDefault().Debug(msg, keyvals...)
}

func LogPerformance(operation string, start time.Time) {
	GetDefault().LogPerformance(operation, start)
}

// debugRequested reports whether debug logging was asked for through the environment.
func debugRequested() bool {
	return os.Getenv("DEBUG") != "" || os.Getenv("MERMAID_INSPECTOR_DEBUG") != ""
}

// NewAppLogger builds the process logger. Nothing is ever written to stdout:
// in stdio mode stdout carries MCP frames.
func NewAppLogger() *AppLogger {
	if !debugRequested() {
		// Production: warnings and errors to stderr only
		return NewAppLoggerWithOptions(os.Stderr, log.WarnLevel, false)
	}

	// Development: Log to file, clear on each run
	cwd, err := os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("Failed to get current working directory: %v", err))
	}

	logPath := filepath.Join(cwd, LogFileName)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		// Fall back to stderr rather than refusing to start the server
		al := NewAppLoggerWithOptions(os.Stderr, log.DebugLevel, true)
		al.Warn("Cannot open debug log file, logging to stderr", "path", logPath, "error", err)
		return al
	}

	al := NewAppLoggerWithOptions(logFile, log.DebugLevel, true)
	al.logger.SetReportCaller(true)
	al.logger.SetTimeFormat(time.Kitchen)
	al.Info("Debug logging enabled", "log_file", logPath)
	return al
}

// NewAppLoggerWithOptions creates a logger writing to w at the given level.
// Used by the CLI --debug flag which routes debug output to stderr.
func NewAppLoggerWithOptions(w io.Writer, level log.Level, debug bool) *AppLogger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "mermaid-inspector",
	})
	logger.SetLevel(level)

	return &AppLogger{
		logger: logger,
		debug:  debug,
	}
}

// Log application events
func (al *AppLogger) Info(msg string, keyvals ...interface{}) {
	al.logger.Info(msg, keyvals...)
}

func (al *AppLogger) Warn(msg string, keyvals ...interface{}) {
	al.logger.Warn(msg, keyvals...)
}

func (al *AppLogger) Error(msg string, keyvals ...interface{}) {
	al.logger.Error(msg, keyvals...)
}

func (al *AppLogger) Debug(msg string, keyvals ...interface{}) {
	if al.debug {
		al.logger.Debug(msg, keyvals...)
	}
}

// With returns a child logger carrying the given key/value pairs on every line.
func (al *AppLogger) With(keyvals ...interface{}) *AppLogger {
	return &AppLogger{
		logger: al.logger.With(keyvals...),
		debug:  al.debug,
	}
}

// IsDebug reports whether debug output is enabled.
func (al *AppLogger) IsDebug() bool {
	return al.debug
}

// Log performance metrics
func (al *AppLogger) LogPerformance(operation string, start time.Time) {
	if al.debug {
		duration := time.Since(start)
		al.logger.Debug("Performance",
			"operation", operation,
			"duration", duration,
		)
	}
}

// StdLogger adapts the logger for libraries that want a standard library *log.Logger.
// Lines are emitted at error level.
func (al *AppLogger) StdLogger() *stdlog.Logger {
	return al.logger.StandardLog(log.StandardLogOptions{
		ForceLevel: log.ErrorLevel,
	})
}

// Testing Helper - NewTestLogger creates a logger that writes to a buffer for testing
func NewTestLogger() (*AppLogger, *bytes.Buffer) {
	var buf bytes.Buffer

	logger := log.NewWithOptions(&buf, log.Options{
		ReportTimestamp: false, // Easier to test without timestamps
		ReportCaller:    false,
		Prefix:          "Test",
	})
	logger.SetLevel(log.DebugLevel)

	return &AppLogger{
		logger: logger,
		debug:  true,
	}, &buf
}
