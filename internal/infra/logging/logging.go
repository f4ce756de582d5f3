package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// UnmarshalText lets envconf read LOG_FORMAT.
func (f *Format) UnmarshalText(b []byte) error {
	switch v := Format(strings.ToLower(strings.TrimSpace(string(b)))); v {
	case FormatJSON, FormatText:
		*f = v

		return nil
	default:
		return fmt.Errorf("unknown log format %q", string(b))
	}
}

// New builds a logger writing to w in the given format. An empty format
// means JSON.
func New(w io.Writer, format Format, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	if format == FormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}

	return slog.New(slog.NewJSONHandler(w, opts))
}

// Setup sets slog's default logger to write to stdout and returns it.
func Setup(format Format, level slog.Level) *slog.Logger {
	logger := New(os.Stdout, format, level)
	slog.SetDefault(logger)

	return logger
}

// SetupJSON sets slog's default logger to use JSON output at the given level.
func SetupJSON(level slog.Level) *slog.Logger {
	return Setup(FormatJSON, level)
}
