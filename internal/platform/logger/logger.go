package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout; the deployment's log
// shipper expects one JSON object per line.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
