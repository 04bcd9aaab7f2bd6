package connection

import (
	"context"
	"log/slog"
)

// Toast is a short user-facing notice raised by an inbound message.
type Toast struct {
	Level   string // info, success, warning, error
	Title   string
	Message string
}

// Notifier surfaces toasts to the user.
type Notifier interface {
	Notify(Toast)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Toast)

// Notify implements Notifier.
func (f NotifierFunc) Notify(t Toast) { f(t) }

// LogNotifier writes toasts to a logger. It is the default Notifier.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(t Toast) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch t.Level {
	case "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, "toast", "title", t.Title, "message", t.Message)
}
