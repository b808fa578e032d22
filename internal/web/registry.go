package web

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// ErrWizardNotFound is returned for an unknown or expired session id.
var ErrWizardNotFound = errors.New("wizard session not found")

// minSweepInterval bounds how often Run scans for idle sessions.
const minSweepInterval = time.Second

// Registry holds the open wizards of the server, keyed by session id.
// Wizards idle for longer than the TTL are closed and dropped; importing
// wizards are never swept.
type Registry struct {
	mu      sync.Mutex
	wizards map[string]*core.Wizard
	open    func(core.ImportContext) *core.Wizard
	ttl     time.Duration
	now     func() time.Time
}

// NewRegistry returns a registry that creates wizards with open.
// A zero ttl disables expiry.
func NewRegistry(ttl time.Duration, open func(core.ImportContext) *core.Wizard) *Registry {
	return &Registry{
		wizards: make(map[string]*core.Wizard),
		open:    open,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Open creates and registers a wizard for ic.
func (r *Registry) Open(ic core.ImportContext) *core.Wizard {
	w := r.open(ic)

	r.mu.Lock()
	r.wizards[w.ID()] = w
	r.mu.Unlock()
	return w
}

// Get returns the wizard with the given id.
func (r *Registry) Get(id string) (*core.Wizard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.wizards[id]
	if !ok {
		return nil, ErrWizardNotFound
	}
	return w, nil
}

// Remove closes the wizard and drops it from the registry.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	w, ok := r.wizards[id]
	delete(r.wizards, id)
	r.mu.Unlock()

	if !ok {
		return ErrWizardNotFound
	}
	return w.Close()
}

// Len returns the number of open wizards.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wizards)
}

// Sweep closes wizards idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	var expired []*core.Wizard
	r.mu.Lock()
	for id, w := range r.wizards {
		if w.CurrentStep() == core.StepImporting {
			continue
		}
		if w.LastActivity().Before(cutoff) {
			expired = append(expired, w)
			delete(r.wizards, id)
		}
	}
	r.mu.Unlock()

	for _, w := range expired {
		_ = w.Close()
	}
	return len(expired)
}

// Run sweeps periodically until ctx ends.
func (r *Registry) Run(ctx context.Context) {
	if r.ttl <= 0 {
		return
	}
	interval := max(r.ttl/2, minSweepInterval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				slog.Info("expired wizard sessions", "count", n)
			}
		}
	}
}

// CloseAll closes every wizard and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	wizards := r.wizards
	r.wizards = make(map[string]*core.Wizard)
	r.mu.Unlock()

	for _, w := range wizards {
		_ = w.Close()
	}
}
