package common

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the JSON logger from the global flags. --quiet keeps only
// errors; --log-file additionally writes to a rotated file.
func NewLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if c.Bool("quiet") {
		level = slog.LevelError
	}

	var w io.Writer = os.Stderr
	if path := c.String("log-file"); path != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		})
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
