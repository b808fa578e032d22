// Package notify delivers dashboard notifications produced by the import
// wizard.
//
// Sinks implement core.Notifier. The server combines a Hub, which streams to
// browsers over SSE, with an optional AMQP publisher for other dashboard
// services.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/logging"
	"github.com/google/uuid"
)

// Message is a delivered notification.
type Message struct {
	ID        string                `json:"id"`
	Message   string                `json:"message"`
	Kind      core.NotificationKind `json:"kind"`
	ProjectID string                `json:"project_id,omitempty"`
	SessionID string                `json:"session_id,omitempty"`
	Time      time.Time             `json:"time"`
}

// NewMessage builds a Message, taking project and session from the import
// context on ctx when present.
func NewMessage(ctx context.Context, message string, kind core.NotificationKind) Message {
	m := Message{
		ID:      uuid.NewString(),
		Message: message,
		Kind:    kind,
		Time:    time.Now().UTC(),
	}
	if ic, ok := core.ImportContextFrom(ctx); ok {
		m.ProjectID = ic.ProjectID
		m.SessionID = ic.SessionID
	}
	return m
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, message string, kind core.NotificationKind) error {
	logging.FromContext(ctx).Info("notification", "kind", kind, "message", message)
	return nil
}

// Multi delivers to every notifier and joins their errors.
type Multi []core.Notifier

func (m Multi) Notify(ctx context.Context, message string, kind core.NotificationKind) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, message, kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
