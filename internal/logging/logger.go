// Package logging provides structured logging for the Pokéchat console with
// configurable levels, output formats and redaction of sensitive values.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel represents the severity of log messages.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel maps a level name to a LogLevel, defaulting to info.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(name) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides structured logging with component context.
type Logger struct {
	logger    *slog.Logger
	level     LogLevel
	component string
}

// Config represents logging configuration.
type Config struct {
	Level     LogLevel
	Format    string // "json" or "text"
	Output    string // "stdout", "stderr", or file path
	Component string
}

// DefaultConfig returns a sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:     InfoLevel,
		Format:    "text",
		Output:    "stderr",
		Component: "pokechat",
	}
}

// NewLogger creates a new logger with the specified configuration.
func NewLogger(config Config) (*Logger, error) {
	var output *os.File
	switch config.Output {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
		output = file
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel(config.Level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Credentials never reach the log output.
			key := strings.ToLower(a.Key)
			if key == "token" || strings.Contains(key, "password") || strings.Contains(key, "authorization") {
				return slog.String(a.Key, "[REDACTED]")
			}
			return a
		},
	}

	var handler slog.Handler
	switch config.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		logger:    slog.New(handler),
		level:     config.Level,
		component: config.Component,
	}, nil
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent creates a new logger for a specific component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		logger:    l.logger.With(slog.String("component", component)),
		level:     l.level,
		component: component,
	}
}

// WithField adds a field to the logger context.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{
		logger:    l.logger.With(slog.Any(key, value)),
		level:     l.level,
		component: l.component,
	}
}

// Debug logs a debug level message.
func (l *Logger) Debug(msg string, args ...any) {
	if l.level <= DebugLevel {
		l.logger.Debug(msg, args...)
	}
}

// Info logs an info level message.
func (l *Logger) Info(msg string, args ...any) {
	if l.level <= InfoLevel {
		l.logger.Info(msg, args...)
	}
}

// Warn logs a warning level message.
func (l *Logger) Warn(msg string, args ...any) {
	if l.level <= WarnLevel {
		l.logger.Warn(msg, args...)
	}
}

// Error logs an error level message.
func (l *Logger) Error(msg string, args ...any) {
	if l.level <= ErrorLevel {
		l.logger.Error(msg, args...)
	}
}

// LogHTTPRequest logs HTTP request details (without sensitive data).
func (l *Logger) LogHTTPRequest(method string, path string, statusCode int, duration time.Duration) {
	l.Debug("HTTP request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status_code", statusCode),
		slog.Duration("duration", duration))
}

// LogRenewalStart logs the beginning of a token renewal.
func (l *Logger) LogRenewalStart() {
	l.Info("Token renewal started")
}

// LogRenewalResult logs the outcome of a token renewal and the number of
// queued calls drained because of it.
func (l *Logger) LogRenewalResult(err error, drained int, duration time.Duration) {
	if err != nil {
		l.Warn("Token renewal failed",
			slog.String("error", err.Error()),
			slog.Int("queued_calls_failed", drained),
			slog.Duration("duration", duration))
		return
	}
	l.Info("Token renewed",
		slog.Int("queued_calls_replayed", drained),
		slog.Duration("duration", duration))
}

// LogAuthOperation logs authentication-related operations.
func (l *Logger) LogAuthOperation(operation string, username string) {
	l.Debug("Authentication operation",
		slog.String("operation", operation),
		slog.String("username", username))
}

// LogOptimisticSend logs the lifecycle of an optimistic message send.
func (l *Logger) LogOptimisticSend(tempID string, conversationID int64, outcome string) {
	l.Debug("Optimistic send",
		slog.String("temp_id", tempID),
		slog.Int64("conversation_id", conversationID),
		slog.String("outcome", outcome))
}

// LogHealthCheck logs backend reachability probe results.
func (l *Logger) LogHealthCheck(status string, responseTime time.Duration, err error) {
	if err != nil {
		l.Warn("Health check failed",
			slog.String("status", status),
			slog.Duration("response_time", responseTime),
			slog.String("error", err.Error()))
		return
	}
	l.Debug("Health check completed",
		slog.String("status", status),
		slog.Duration("response_time", responseTime))
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger with the specified configuration.
func InitGlobalLogger(config Config) error {
	logger, err := NewLogger(config)
	if err != nil {
		return fmt.Errorf("failed to initialize global logger: %w", err)
	}
	globalLogger = logger
	return nil
}

// GetGlobalLogger returns the global logger instance.
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		globalLogger, _ = NewLogger(DefaultConfig())
	}
	return globalLogger
}

// Component-specific logger creators
func GetTransportLogger() *Logger {
	return GetGlobalLogger().WithComponent("transport")
}

func GetAuthLogger() *Logger {
	return GetGlobalLogger().WithComponent("auth")
}

func GetSessionLogger() *Logger {
	return GetGlobalLogger().WithComponent("session")
}

func GetChatLogger() *Logger {
	return GetGlobalLogger().WithComponent("chat")
}

func GetConfigLogger() *Logger {
	return GetGlobalLogger().WithComponent("config")
}

func GetHealthLogger() *Logger {
	return GetGlobalLogger().WithComponent("health")
}

func GetUILogger() *Logger {
	return GetGlobalLogger().WithComponent("ui")
}
