package internal

import (
	"io"
	"log/slog"
)

// NewLogger builds the process logger: text by default, JSON when
// configured.
func NewLogger(app ApplicationConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: app.LogLevel}
	if app.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
