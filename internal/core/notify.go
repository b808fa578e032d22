package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/bulkimport/internal/logging"
)

// NotificationKind is the severity of a user notification.
type NotificationKind string

const (
	KindSuccess NotificationKind = "success"
	KindError   NotificationKind = "error"
)

// Notifier delivers a message to the dashboard shell.
type Notifier interface {
	Notify(ctx context.Context, message string, kind NotificationKind) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, message string, kind NotificationKind) error

func (f NotifierFunc) Notify(ctx context.Context, message string, kind NotificationKind) error {
	return f(ctx, message, kind)
}

// TemplateDownloadedMessage is sent after the CSV template is downloaded.
const TemplateDownloadedMessage = "CSV template downloaded successfully"

// NotificationEmitter translates wizard events into notifications. Delivery
// failures are logged and never change the import outcome.
type NotificationEmitter struct {
	notifier Notifier
}

// NewNotificationEmitter returns an emitter. A nil notifier drops everything.
func NewNotificationEmitter(n Notifier) *NotificationEmitter {
	return &NotificationEmitter{notifier: n}
}

// ImportSucceeded announces a finished import.
func (e *NotificationEmitter) ImportSucceeded(ctx context.Context, res ImportResult) {
	kind := KindSuccess
	if len(res.Succeeded) == 0 && len(res.Failed) > 0 {
		kind = KindError
	}
	e.emit(ctx, SuccessMessage(res), kind)
}

// ImportFailed announces an import that ended in Failed.
func (e *NotificationEmitter) ImportFailed(ctx context.Context, res ImportResult, reason string) {
	e.emit(ctx, FailureMessage(res, reason), KindError)
}

// TemplateDownloaded announces a template download.
func (e *NotificationEmitter) TemplateDownloaded(ctx context.Context) {
	e.emit(ctx, TemplateDownloadedMessage, KindSuccess)
}

func (e *NotificationEmitter) emit(ctx context.Context, message string, kind NotificationKind) {
	if e == nil || e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, message, kind); err != nil {
		logging.FromContext(ctx).Warn("notification not delivered",
			"message", message,
			"kind", kind,
			"error", err,
		)
	}
}

// SuccessMessage renders "N processes imported", adding the failed count
// for a partial import.
func SuccessMessage(res ImportResult) string {
	msg := pluralProcesses(len(res.Succeeded)) + " imported"
	if n := len(res.Failed); n > 0 {
		msg += fmt.Sprintf(", %d failed", n)
	}
	return msg
}

// FailureMessage renders "Import failed: <reason>" with the number of rows
// that were created before the failure, if any.
func FailureMessage(res ImportResult, reason string) string {
	if reason == "" {
		reason = "unknown error"
	}
	msg := "Import failed: " + reason
	if n := len(res.Succeeded); n > 0 {
		msg += fmt.Sprintf(" (%s of %d imported)", pluralProcesses(n), res.Total())
	}
	return msg
}

func pluralProcesses(n int) string {
	if n == 1 {
		return "1 process"
	}
	return fmt.Sprintf("%d processes", n)
}
