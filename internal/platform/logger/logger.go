package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger: JSON to stdout, info level. Services take
// it as *slog.Logger so tests can substitute a discarding handler.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
