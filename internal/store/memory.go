package store

import (
	"context"
	"slices"
	"sync"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// MemoryStore keeps records in process memory. It backs development runs
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []StoredRecord
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(ctx context.Context, rec core.ProcessRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stored := newStoredRecord(ctx, rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, stored)
	return stored.ID, nil
}

// Records returns a copy of everything created so far, in creation order.
func (s *MemoryStore) Records() []StoredRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
