// Package logger configures log/slog for the listorder binary.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey struct{}

// Setup installs a text or JSON handler writing to w at the given level
// and makes it the default logger. A nil w means stderr, which keeps
// command output on stdout clean.
func Setup(w io.Writer, level, format string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// WithList returns a context whose logger tags records with the list name.
func WithList(ctx context.Context, list string) context.Context {
	return context.WithValue(ctx, contextKey{}, list)
}

// FromContext returns the default logger, tagged with the list name when
// the context carries one.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if list, ok := ctx.Value(contextKey{}).(string); ok {
		l = l.With("list", list)
	}
	return l
}

// WithComponent returns the default logger tagged with component.
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
