package shared

import (
	"context"
	"log/slog"
)

// Severity grades user-facing notifications.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier delivers user-facing messages about background outcomes, such as
// a failed remote save or a resolved sync conflict.
type Notifier interface {
	Notify(ctx context.Context, severity Severity, message string)
}

// LogNotifier writes notifications to the structured log. It stands in for
// a real delivery channel in the worker and in tests.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, severity Severity, message string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notify", slog.String("severity", string(severity)), slog.String("message", message))
}
