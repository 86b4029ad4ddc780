// Package logging provides the process logger and routes lifecycle
// events into it.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/pagegen/gqlrun/internal/eventbus"
	"github.com/pagegen/gqlrun/internal/events"
)

// Logger is the narrow logging surface used across the module.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// New returns a text logger at the given level writing to stderr.
func New(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// AttachBus subscribes l to runner lifecycle events on the global bus.
// The returned function detaches the subscriptions.
func AttachBus(l Logger) (detach func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.CacheCleared) {
			l.Info("query cache cleared", "reason", e.Reason, "entries", e.Entries)
		}),
		eventbus.Subscribe(func(_ context.Context, e events.QueryFinish) {
			if e.ErrorCount > 0 {
				l.Warn("query finished with errors",
					"queryName", e.QueryName,
					"operationName", e.OperationName,
					"errors", e.ErrorCount,
					"duration", e.Duration)
				return
			}
			l.Debug("query finished",
				"queryName", e.QueryName,
				"operationName", e.OperationName,
				"duration", e.Duration)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
