package transfers

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with transfer-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithRun adds the run ID to the logger.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", runID),
	}
}

// WithAccession adds the accession key to the logger.
func (l *Logger) WithAccession(key string) *Logger {
	return &Logger{
		Logger: l.Logger.With("accession", key),
	}
}

// LogResolve logs record-directory resolution.
func (l *Logger) LogResolve(ctx context.Context, recordDir string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "resolve failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "record resolved",
			"record_dir", recordDir,
		)
	}
}

// LogSelect logs file selection against a record listing.
func (l *Logger) LogSelect(ctx context.Context, listed, selected int) {
	if selected == 0 {
		l.InfoContext(ctx, "no matching files in record",
			"listed", listed,
		)
	} else {
		l.DebugContext(ctx, "files selected",
			"listed", listed,
			"selected", selected,
		)
	}
}

// LogStage logs the staging outcome for one accession.
func (l *Logger) LogStage(ctx context.Context, staged, failed int, dir string) {
	if failed > 0 {
		l.WarnContext(ctx, "staging completed with failures",
			"staged", staged,
			"failed", failed,
			"scratch_dir", dir,
		)
	} else {
		l.DebugContext(ctx, "staging completed",
			"staged", staged,
			"scratch_dir", dir,
		)
	}
}

// LogPublish logs a per-file publish outcome.
func (l *Logger) LogPublish(ctx context.Context, key, status string, size int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "publish failed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "object published",
			"key", key,
			"status", status,
			"bytes", size,
		)
	}
}

// LogReplaced warns about an existing object that contradicted its manifest
// digest and was re-uploaded.
func (l *Logger) LogReplaced(ctx context.Context, key string) {
	l.WarnContext(ctx, "existing object mismatched manifest digest, replaced",
		"key", key,
	)
}

// LogTransfer logs the final outcome for one accession.
func (l *Logger) LogTransfer(ctx context.Context, stage string, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "transfer failed",
			"stage", stage,
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "transfer completed",
			"elapsed", elapsed,
		)
	}
}

// LogBatch logs the batch summary.
func (l *Logger) LogBatch(ctx context.Context, succeeded, failed int, elapsed time.Duration) {
	if failed > 0 {
		l.WarnContext(ctx, "batch completed with failures",
			"succeeded", succeeded,
			"failed", failed,
			"elapsed", elapsed,
		)
	} else {
		l.InfoContext(ctx, "batch completed",
			"succeeded", succeeded,
			"elapsed", elapsed,
		)
	}
}
