package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type settings struct {
	json   bool
	output io.Writer
}

// Option adjusts the logger built by NewLogger.
type Option func(*settings)

// WithFormat selects "json" or "text" encoding; anything else means text.
func WithFormat(format string) Option {
	return func(s *settings) {
		s.json = strings.EqualFold(strings.TrimSpace(format), "json")
	}
}

// WithOutput redirects log lines away from stdout.
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.output = w
		}
	}
}

// NewLogger initialises an slog.Logger with the provided level string.
func NewLogger(levelStr string, opts ...Option) *slog.Logger {
	s := settings{output: os.Stdout}
	for _, opt := range opts {
		opt(&s)
	}
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(levelStr)}

	var handler slog.Handler
	if s.json {
		handler = slog.NewJSONHandler(s.output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(s.output, handlerOpts)
	}
	return slog.New(handler)
}

func parseLevel(levelStr string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
