package hexdiv

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/hexdiv/model"
)

// Logger wraps slog.Logger with hexdiv-specific context.
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
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithResolution adds a resolution field to the logger.
func (l *Logger) WithResolution(res model.Resolution) *Logger {
	return &Logger{
		Logger: l.Logger.With("resolution", res.String()),
	}
}

// WithBand adds a depth band field to the logger.
func (l *Logger) WithBand(band model.DepthBand) *Logger {
	return &Logger{
		Logger: l.Logger.With("band", band.String()),
	}
}

// WithPartition adds a partition key field to the logger.
func (l *Logger) WithPartition(key model.PartitionKey) *Logger {
	return &Logger{
		Logger: l.Logger.With("partition", string(key)),
	}
}

// LogIngest logs an ingest pass.
func (l *Logger) LogIngest(ctx context.Context, rows, dropped uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingest failed",
			"rows", rows,
			"dropped", dropped,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "ingest completed",
			"rows", rows,
			"dropped", dropped,
		)
	}
}

// LogAggregate logs an aggregation pass.
func (l *Logger) LogAggregate(ctx context.Context, res model.Resolution, band model.DepthBand, cells int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "aggregation failed",
			"resolution", res.String(),
			"band", band.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "aggregation completed",
			"resolution", res.String(),
			"band", band.String(),
			"cells", cells,
		)
	}
}

// LogSnapshot logs a results snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"name", name,
		)
	}
}
