// Package store persists the engine's read model of jobs.
package store

import (
	"context"
	"sync"

	"haazri/internal/job/models"
	"haazri/pkg/domain"
)

// MemoryStore is an in-memory job store for tests and dev wiring.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[domain.JobID]*models.Job
}

func NewMemory() *MemoryStore {
	return &MemoryStore{jobs: make(map[domain.JobID]*models.Job)}
}

// Put upserts a job. Test seeding helper.
func (s *MemoryStore) Put(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

// FindByID returns the job or nil when absent.
func (s *MemoryStore) FindByID(_ context.Context, id domain.JobID) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if job, ok := s.jobs[id]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, nil
}
