package notify

import (
	"context"
	"sync"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// Hub fans notifications out to subscribers. Slow subscribers miss
// messages rather than blocking delivery.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Message]struct{}
	closed bool
}

var _ core.Notifier = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Message]struct{})}
}

// Subscribe registers a listener. Call the returned function to unsubscribe.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, 16)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *Hub) Notify(ctx context.Context, message string, kind core.NotificationKind) error {
	h.Publish(NewMessage(ctx, message, kind))
	return nil
}

// Publish sends m to every subscriber without blocking.
func (h *Hub) Publish(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- m:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Later subscribers get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		close(ch)
	}
	h.subs = map[chan Message]struct{}{}
	h.closed = true
}
