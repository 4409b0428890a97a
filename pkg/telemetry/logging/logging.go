// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Config controls logger construction.
type Config struct {
	// Level is debug, info, warn, or error. Default info.
	Level string `yaml:"level"`

	// Format is json or console. Default console.
	Format string `yaml:"format"`

	// Output defaults to stderr.
	Output io.Writer `yaml:"-"`

	// NoRedact disables credential masking. Masking is on by default so
	// provider API keys never reach the log output.
	NoRedact bool `yaml:"no_redact"`
}

// New builds a slog.Logger from the config.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	level := parseLevel(cfg.Level)

	var replace func(groups []string, a slog.Attr) slog.Attr
	if !cfg.NoRedact {
		replace = NewRedactor().ReplaceAttr
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level, ReplaceAttr: replace})
	default:
		handler = tint.NewHandler(out, &tint.Options{
			Level:       level,
			TimeFormat:  time.TimeOnly,
			ReplaceAttr: replace,
		})
	}
	return slog.New(handler)
}

// Setup builds the logger and installs it as slog's default.
func Setup(cfg Config) *slog.Logger {
	logger := New(cfg)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
