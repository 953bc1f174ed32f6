// Package store persists audit chain entries.
package store

import (
	"context"
	"sync"

	"haazri/internal/audit/models"
)

// MemoryStore keeps the chain in a slice, append order = chain order.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*models.Entry
}

func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *entry
	copied.Seq = int64(len(s.entries) + 1)
	s.entries = append(s.entries, &copied)
	return nil
}

// Tail returns the most recent entry, or nil for an empty chain.
func (s *MemoryStore) Tail(_ context.Context) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	copied := *s.entries[len(s.entries)-1]
	return &copied, nil
}

// ListAll returns the full chain in order. Used by verification.
func (s *MemoryStore) ListAll(_ context.Context) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

// Tamper overwrites the entry at index i. Test helper for verification
// scenarios; the production interface has no mutation path.
func (s *MemoryStore) Tamper(i int, mutate func(*models.Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(s.entries[i])
}
