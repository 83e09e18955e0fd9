package logging

import (
	"io"
	"log/slog"
	"os"
)

var stdout io.Writer = os.Stdout

// Setup installs a JSON slog logger on stdout as the process default.
func Setup() *slog.Logger {
	logger := slog.New(NewJSONHandler(stdout))
	slog.SetDefault(logger)
	return logger
}

func NewJSONHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
}
