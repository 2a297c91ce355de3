package nclustgen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/orneryd/nclustgen/pkg/config"
)

// Logger wraps slog.Logger with generator-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON records to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%w: unknown log level %q", config.ErrInvalidConfig, s)
	}
	return level, nil
}

// LoggerFromConfig builds a Logger from the logging configuration. The
// returned closer releases the output file and is a no-op for stderr and
// stdout.
func LoggerFromConfig(cfg config.LoggingConfig) (*Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
	)
	switch cfg.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log output: %w", err)
		}
		out, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return NewLogger(slog.NewTextHandler(out, opts)), closer, nil
	case "json":
		return NewLogger(slog.NewJSONHandler(out, opts)), closer, nil
	}
	_ = closer.Close()
	return nil, nil, fmt.Errorf("%w: unknown log format %q", config.ErrInvalidConfig, cfg.Format)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// LogGenerate logs an engine invocation.
func (l *Logger) LogGenerate(ctx context.Context, dims config.Dimensionality, shape []int, nclusters int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "generate failed",
			"dims", int(dims),
			"shape", shape,
			"clusters", nclusters,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "generate completed",
		"dims", int(dims),
		"shape", shape,
		"clusters", nclusters,
		"elapsed", elapsed,
	)
}

// LogMaterialize logs a dense or sparse decode.
func (l *Logger) LogMaterialize(ctx context.Context, mode Mode, shape []int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "materialize failed",
			"mode", mode,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "materialize completed",
		"mode", mode,
		"shape", shape,
		"elapsed", elapsed,
	)
}

// LogGraph logs graph construction.
func (l *Logger) LogGraph(ctx context.Context, backend string, edges map[string]int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "graph build failed",
			"backend", backend,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "graph built",
		"backend", backend,
		"edges", edges,
	)
}

// LogSave logs a persistence call.
func (l *Logger) LogSave(ctx context.Context, dir, name string, files int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"dir", dir,
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "dataset saved",
		"dir", dir,
		"name", name,
		"files", files,
	)
}
