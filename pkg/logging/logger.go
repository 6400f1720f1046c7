package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// LevelTrace sits below debug for per-row output
const LevelTrace = slog.LevelDebug - 4

type contextKey string

const requestIDKey contextKey = "requestID"

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(NewCompactHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

func current() *slog.Logger {
	return logger.Load()
}

// SetLevel switches to the compact console handler at level
func SetLevel(level slog.Level) {
	logger.Store(slog.New(NewCompactHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// SetJSONOutput switches to JSON lines at level
func SetJSONOutput(level slog.Level) {
	logger.Store(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// SetOutput sends compact output to w; used by tests
func SetOutput(w io.Writer, level slog.Level) {
	logger.Store(slog.New(NewCompactHandler(w, &slog.HandlerOptions{Level: level})))
}

// ParseLevel maps a verbosity name to a level. An empty name falls back to the -v count:
// 0 info, 1 debug, 2+ trace.
func ParseLevel(name string, verboseCount int) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		switch {
		case verboseCount >= 2:
			return LevelTrace, nil
		case verboseCount == 1:
			return slog.LevelDebug, nil
		default:
			return slog.LevelInfo, nil
		}
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown verbosity %q", name)
	}
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func withRequestID(ctx context.Context, args []any) []any {
	if requestID := GetRequestID(ctx); requestID != "" {
		return append([]any{"requestID", requestID}, args...)
	}
	return args
}

// Trace logs per-row detail
func Trace(msg string, args ...any) {
	current().Log(context.Background(), LevelTrace, msg, args...)
}

// Debug logs internal component behaviour
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// DebugContext logs at debug level with the request ID from ctx
func DebugContext(ctx context.Context, msg string, args ...any) {
	current().DebugContext(ctx, msg, withRequestID(ctx, args)...)
}

// Info logs user-facing operations
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// InfoContext logs at info level with the request ID from ctx
func InfoContext(ctx context.Context, msg string, args ...any) {
	current().InfoContext(ctx, msg, withRequestID(ctx, args)...)
}

// Warn logs conditions worth looking at, such as a workbook that failed to reload
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// WarnContext logs at warn level with the request ID from ctx
func WarnContext(ctx context.Context, msg string, args ...any) {
	current().WarnContext(ctx, msg, withRequestID(ctx, args)...)
}

// Error logs failures
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// ErrorContext logs at error level with the request ID from ctx
func ErrorContext(ctx context.Context, msg string, args ...any) {
	current().ErrorContext(ctx, msg, withRequestID(ctx, args)...)
}

// Fatal logs at error level and exits
func Fatal(msg string, args ...any) {
	current().Error(msg, args...)
	os.Exit(1)
}
