package observability

import (
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger that stamps trace and span ids from the
// active span. Debug output is enabled in dev.
func NewLogger(env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewTraceHandler(handler))
}
