package dialog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bbrooks37/vscode-mssql/model"
)

// Event is one diagnostic event emitted by the controller. It carries the
// input and auth mode of the attempt but never raw profile values.
type Event struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Action    string          `json:"action"`
	InputMode model.InputMode `json:"input_mode"`
	AuthMode  string          `json:"auth_mode"`
	Success   bool            `json:"success"`
	Outcome   string          `json:"outcome"`
	Duration  time.Duration   `json:"duration"`
	Error     string          `json:"error,omitempty"`
}

// Observer receives diagnostic events from the controller. Implementations
// may record telemetry or audit logs.
type Observer interface {
	OnDialogEvent(ctx context.Context, event Event)
}

// LoggingObserver writes diagnostic events to the structured log.
type LoggingObserver struct {
	logger *zap.Logger
}

// NewLoggingObserver creates an observer that logs every event.
func NewLoggingObserver(logger *zap.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

// OnDialogEvent implements Observer.
func (o *LoggingObserver) OnDialogEvent(_ context.Context, event Event) {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("session_id", event.SessionID),
		zap.String("action", event.Action),
		zap.String("input_mode", string(event.InputMode)),
		zap.String("auth_mode", event.AuthMode),
		zap.String("outcome", event.Outcome),
		zap.Duration("duration", event.Duration),
	}
	if event.Success {
		o.logger.Info("dialog event", fields...)
		return
	}
	fields = append(fields, zap.String("error", event.Error))
	o.logger.Warn("dialog event", fields...)
}
