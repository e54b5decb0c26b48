package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// coloredHandler wraps a slog.TextHandler and adds ANSI color codes based on log level.
type coloredHandler struct {
	handler slog.Handler
}

func newColoredHandler(w io.Writer, opts *slog.HandlerOptions) *coloredHandler {
	return &coloredHandler{
		handler: slog.NewTextHandler(&colorWriter{writer: w, enabled: isTerminal(w)}, opts),
	}
}

func (h *coloredHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *coloredHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.handler.Handle(ctx, record)
}

func (h *coloredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &coloredHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *coloredHandler) WithGroup(name string) slog.Handler {
	return &coloredHandler{handler: h.handler.WithGroup(name)}
}

// colorWriter wraps an io.Writer and adds color codes around the level string.
type colorWriter struct {
	writer  io.Writer
	enabled bool
}

var levelColors = strings.NewReplacer(
	"level=DEBUG", colorCyan+"level=DEBUG"+colorReset,
	"level=INFO", colorGreen+"level=INFO"+colorReset,
	"level=WARN", colorYellow+"level=WARN"+colorReset,
	"level=ERROR", colorRed+"level=ERROR"+colorReset,
)

func (cw *colorWriter) Write(p []byte) (n int, err error) {
	if !cw.enabled {
		return cw.writer.Write(p)
	}
	_, err = io.WriteString(cw.writer, levelColors.Replace(string(p)))
	return len(p), err
}

// isTerminal checks if the writer is a terminal (TTY).
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// New builds a structured slog logger honoring the configured level and environment.
// For development environments (local, dev, development), it uses colored text output.
// Any other environment gets JSON output. Logs go to stderr so CLI output stays clean.
func New(appName, level, environment string) *slog.Logger {
	return NewWithWriter(os.Stderr, appName, level, environment)
}

// NewWithWriter is New writing to w.
func NewWithWriter(w io.Writer, appName, level, environment string) *slog.Logger {
	env := strings.ToLower(strings.TrimSpace(environment))
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if env == "local" || env == "dev" || env == "development" {
		handler = newColoredHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("app", appName)
}

// Discard returns a logger that drops everything; used by tests and quiet CLI runs.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
