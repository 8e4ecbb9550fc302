package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a minimal structured logger facade over slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

type slogLogger struct{ l *slog.Logger }

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }
func (s *slogLogger) With(args ...any) Logger       { return &slogLogger{l: s.l.With(args...)} }

// NewText creates a text-handler logger writing to w with the given level.
func NewText(w io.Writer, level slog.Leveler) Logger {
	if w == nil {
		w = os.Stdout
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &slogLogger{l: slog.New(h)}
}

// NewJSON creates a json-handler logger writing to w with the given level.
func NewJSON(w io.Writer, level slog.Leveler) Logger {
	if w == nil {
		w = os.Stdout
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &slogLogger{l: slog.New(h)}
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// WithMinLevel wraps a logger so records below level are dropped. Handlers
// behind the Logger interface cannot be re-leveled after construction; this
// filter is how per-vault verbosity settings take effect.
func WithMinLevel(l Logger, level slog.Level) Logger {
	return &leveledLogger{inner: l, min: level}
}

type leveledLogger struct {
	inner Logger
	min   slog.Level
}

func (l *leveledLogger) Debug(msg string, args ...any) {
	if l.min <= slog.LevelDebug {
		l.inner.Debug(msg, args...)
	}
}

func (l *leveledLogger) Info(msg string, args ...any) {
	if l.min <= slog.LevelInfo {
		l.inner.Info(msg, args...)
	}
}

func (l *leveledLogger) Warn(msg string, args ...any) {
	if l.min <= slog.LevelWarn {
		l.inner.Warn(msg, args...)
	}
}

func (l *leveledLogger) Error(msg string, args ...any) {
	if l.min <= slog.LevelError {
		l.inner.Error(msg, args...)
	}
}

func (l *leveledLogger) With(args ...any) Logger {
	return &leveledLogger{inner: l.inner.With(args...), min: l.min}
}

// Nop returns a no-op logger.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (n nopLogger) With(...any) Logger { return n }
