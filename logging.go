package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// newLogger builds the diagnostic logger. It writes to w (stderr in main) so
// stdout carries only the human report.
func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger(), nil
}

// newRunContext tags a logger with a fresh run id and attaches it to ctx.
func newRunContext(ctx context.Context, w io.Writer, level string) (context.Context, string, error) {
	logger, err := newLogger(w, level)
	if err != nil {
		return ctx, "", err
	}
	runID := uuid.NewString()
	logger = logger.With().Str("run_id", runID).Logger()
	return logger.WithContext(ctx), runID, nil
}

// loggerFromContext returns the run logger, or a disabled logger when none is
// attached (tests call workflow functions with a bare context).
func loggerFromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
