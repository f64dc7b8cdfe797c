package lineage

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with cache-specific helpers.
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
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithWidth adds a width field to the logger.
func (l *Logger) WithWidth(width int) *Logger {
	return &Logger{
		Logger: l.Logger.With("width", width),
	}
}

// WithName adds a name field to the logger (useful for tagging branched caches).
func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("cache", name),
	}
}

// LogWrite logs a completed write.
func (l *Logger) LogWrite(ctx context.Context, t, particles int, duration time.Duration) {
	l.DebugContext(ctx, "write completed",
		"t", t,
		"particles", particles,
		"usecs", duration.Microseconds(),
	)
}

// LogPrune logs a reachability sweep.
func (l *Logger) LogPrune(ctx context.Context, generation uint32, occupied, slots int) {
	l.DebugContext(ctx, "prune completed",
		"generation", generation,
		"occupied", occupied,
		"slots", slots,
	)
}

// LogGrow logs slot storage growth.
func (l *Logger) LogGrow(ctx context.Context, oldSlots, newSlots int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "grow failed",
			"old_slots", oldSlots,
			"new_slots", newSlots,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "grow completed",
			"old_slots", oldSlots,
			"new_slots", newSlots,
		)
	}
}

// LogSnapshot logs a snapshot write.
func (l *Logger) LogSnapshot(ctx context.Context, target string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"target", target,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"target", target,
			"bytes", bytes,
		)
	}
}

// LogRestore logs a snapshot restore.
func (l *Logger) LogRestore(ctx context.Context, source string, steps int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"source", source,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot restored",
			"source", source,
			"steps", steps,
		)
	}
}
