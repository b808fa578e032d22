package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeStore is an in-memory RecordStore with scripted failures.
type fakeStore struct {
	mu      sync.Mutex
	created []ProcessRecord
	calls   int

	failNames map[string]error // per-record failures
	failAfter int              // when > 0, every call after this many returns failErr
	failErr   error
	delay     time.Duration
	block     chan struct{} // when set, Create waits on it or ctx
}

func (s *fakeStore) Create(ctx context.Context, rec ProcessRecord) (string, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.failAfter > 0 && call > s.failAfter {
		return "", s.failErr
	}
	if err, ok := s.failNames[rec.Name]; ok {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, rec)
	return fmt.Sprintf("id-%s", rec.Name), nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

// recordingNotifier collects notifications.
type recordingNotifier struct {
	mu    sync.Mutex
	sent  []sentNotification
	err   error
	ctxIC []ImportContext
}

type sentNotification struct {
	Message string
	Kind    NotificationKind
}

func (n *recordingNotifier) Notify(ctx context.Context, message string, kind NotificationKind) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Message: message, Kind: kind})
	if ic, ok := ImportContextFrom(ctx); ok {
		n.ctxIC = append(n.ctxIC, ic)
	}
	return n.err
}

func (n *recordingNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}
