package store

import (
	"context"
	"sync"
	"time"

	"haazri/internal/attendance/models"
	"haazri/pkg/domain"
)

type dayKey struct {
	worker domain.WorkerID
	job    domain.JobID
	day    string // UTC calendar day, YYYY-MM-DD
}

// MemoryStore keeps records per worker plus a same-day uniqueness index, so
// the race behavior matches the Postgres unique constraint.
type MemoryStore struct {
	mu       sync.RWMutex
	byWorker map[domain.WorkerID][]*models.Record
	byDay    map[dayKey]*models.Record
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		byWorker: make(map[domain.WorkerID][]*models.Record),
		byDay:    make(map[dayKey]*models.Record),
	}
}

func (s *MemoryStore) Create(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dayKey{rec.WorkerID, rec.JobID, rec.Date.UTC().Format("2006-01-02")}
	if _, exists := s.byDay[key]; exists {
		return ErrDuplicateDay
	}

	copied := *rec
	s.byDay[key] = &copied
	s.byWorker[rec.WorkerID] = append(s.byWorker[rec.WorkerID], &copied)
	return nil
}

// FindSameDay returns a record for (worker, job) dated on or after dayStart.
func (s *MemoryStore) FindSameDay(_ context.Context, workerID domain.WorkerID, jobID domain.JobID, dayStart time.Time) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.byWorker[workerID] {
		if rec.JobID == jobID && !rec.Date.Before(dayStart) {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, nil
}

// FindNearTimestamp returns a record for the worker whose date falls within
// ±window of ts. Idempotency probe for offline reconciliation.
func (s *MemoryStore) FindNearTimestamp(_ context.Context, workerID domain.WorkerID, ts time.Time, window time.Duration) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := ts.Add(-window), ts.Add(window)
	for _, rec := range s.byWorker[workerID] {
		if !rec.Date.Before(lo) && !rec.Date.After(hi) {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, nil
}

// Delete removes the worker's record for a job. Administrative helper;
// returns the number of records removed.
func (s *MemoryStore) Delete(_ context.Context, workerID domain.WorkerID, jobID domain.JobID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*models.Record
	removed := 0
	for _, rec := range s.byWorker[workerID] {
		if rec.JobID == jobID {
			removed++
			delete(s.byDay, dayKey{rec.WorkerID, rec.JobID, rec.Date.UTC().Format("2006-01-02")})
			continue
		}
		kept = append(kept, rec)
	}
	s.byWorker[workerID] = kept
	return removed, nil
}

// ListByWorker returns all records for a worker in creation order.
func (s *MemoryStore) ListByWorker(_ context.Context, workerID domain.WorkerID) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Record, 0, len(s.byWorker[workerID]))
	for _, rec := range s.byWorker[workerID] {
		copied := *rec
		out = append(out, &copied)
	}
	return out, nil
}
