package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New creates the process-wide JSON logger. LOG_LEVEL=debug turns on debug
// output; anything else means info.
func New() *slog.Logger {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}
