// Package store persists device trust records.
package store

import (
	"context"
	"sync"
	"time"

	"haazri/internal/device/models"
	"haazri/pkg/domain"
)

type deviceKey struct {
	user   domain.WorkerID
	device string
}

// MemoryStore keeps trust records keyed by (user, device).
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[deviceKey]*models.Trust
}

func NewMemory() *MemoryStore {
	return &MemoryStore{devices: make(map[deviceKey]*models.Trust)}
}

func (s *MemoryStore) Find(_ context.Context, userID domain.WorkerID, deviceID string) (*models.Trust, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.devices[deviceKey{userID, deviceID}]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, nil
}

func (s *MemoryStore) Create(_ context.Context, trust *models.Trust) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *trust
	s.devices[deviceKey{trust.UserID, trust.DeviceID}] = &copied
	return nil
}

func (s *MemoryStore) TouchLastSeen(_ context.Context, userID domain.WorkerID, deviceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.devices[deviceKey{userID, deviceID}]; ok {
		t.LastSeen = at
	}
	return nil
}

// SetBlocked flips the block flag. Admin/test operation.
func (s *MemoryStore) SetBlocked(_ context.Context, userID domain.WorkerID, deviceID string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.devices[deviceKey{userID, deviceID}]; ok {
		t.Blocked = blocked
	}
	return nil
}
