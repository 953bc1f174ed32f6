// Package secrets is the keyed store for per-device HMAC signing secrets.
//
// Secrets are provisioned out of band (device enrollment) and expire after a
// TTL so a lost device stops being able to sign batches. The store is keyed
// by (worker, device); a missing entry is not an error, callers fall back to
// the configured development secret.
package secrets

import (
	"context"
	"sync"
	"time"

	"haazri/pkg/domain"
)

// Store looks up and provisions device signing secrets.
type Store interface {
	// SecretFor returns the secret for (worker, device), or "" when none is
	// provisioned or the entry has expired.
	SecretFor(ctx context.Context, workerID domain.WorkerID, deviceID string) (string, error)
	// Provision stores a secret with a TTL, replacing any existing one.
	Provision(ctx context.Context, workerID domain.WorkerID, deviceID, secret string, ttl time.Duration) error
}

type memoryEntry struct {
	secret    string
	expiresAt time.Time
}

// MemoryStore is the single-process fallback used in dev and tests. Expired
// entries are dropped lazily on read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func secretKey(workerID domain.WorkerID, deviceID string) string {
	return workerID.String() + ":" + deviceID
}

func (s *MemoryStore) SecretFor(_ context.Context, workerID domain.WorkerID, deviceID string) (string, error) {
	key := secretKey(workerID, deviceID)

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && s.now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", nil
	}
	return entry.secret, nil
}

func (s *MemoryStore) Provision(_ context.Context, workerID domain.WorkerID, deviceID, secret string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[secretKey(workerID, deviceID)] = memoryEntry{
		secret:    secret,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}
