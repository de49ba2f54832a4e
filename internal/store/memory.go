package store

import (
	"context"
	"sync"

	"github.com/papertrade/perp-engine/internal/model"
)

// MemoryStore implements Store in memory. Used for testing and for runs
// where persistence is not configured (state does not survive a restart).
type MemoryStore struct {
	mu       sync.RWMutex
	snapshot *model.Snapshot
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	copied := *snap
	copied.Orders = append([]model.Order(nil), snap.Orders...)
	copied.Trades = append([]model.Trade(nil), snap.Trades...)
	s.snapshot = &copied
	return nil
}

func (s *MemoryStore) LoadSnapshot(_ context.Context) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return nil, ErrNoSnapshot
	}
	copied := *s.snapshot
	copied.Orders = append([]model.Order(nil), s.snapshot.Orders...)
	copied.Trades = append([]model.Trade(nil), s.snapshot.Trades...)
	return &copied, nil
}
