// Package store persists fraud signals.
package store

import (
	"context"
	"sync"

	"haazri/internal/fraud/models"
	"haazri/pkg/domain"
)

// MemoryStore keeps signals per user, append order = creation order.
type MemoryStore struct {
	mu      sync.RWMutex
	signals map[domain.WorkerID][]*models.Signal
}

func NewMemory() *MemoryStore {
	return &MemoryStore{signals: make(map[domain.WorkerID][]*models.Signal)}
}

func (s *MemoryStore) Append(_ context.Context, signal *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *signal
	s.signals[signal.UserID] = append(s.signals[signal.UserID], &copied)
	return nil
}

// LatestCheckIn returns the most recent check_in signal for the user that
// carries a coordinate, or nil when none exists. Only the tail of the
// user's history is inspected, never a full scan across users.
func (s *MemoryStore) LatestCheckIn(_ context.Context, userID domain.WorkerID) (*models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.signals[userID]
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Action == models.ActionCheckIn && history[i].Location != nil {
			copied := *history[i]
			return &copied, nil
		}
	}
	return nil, nil
}

// ListByUser returns all signals for a user in append order. Admin/test use.
func (s *MemoryStore) ListByUser(_ context.Context, userID domain.WorkerID) ([]*models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Signal, 0, len(s.signals[userID]))
	for _, sig := range s.signals[userID] {
		copied := *sig
		out = append(out, &copied)
	}
	return out, nil
}
