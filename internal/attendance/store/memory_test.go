package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haazri/internal/attendance/models"
	"haazri/pkg/domain"
)

func record(worker domain.WorkerID, job domain.JobID, at time.Time) *models.Record {
	return &models.Record{
		ID:          domain.NewAttendanceID(),
		WorkerID:    worker,
		JobID:       job,
		Date:        at,
		CheckInTime: at,
		Status:      models.StatusPresent,
	}
}

func TestMemoryStoreCreate(t *testing.T) {
	ctx := context.Background()
	worker := domain.NewWorkerID()
	job := domain.NewJobID()
	morning := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	t.Run("rejects second record for same worker, job and day", func(t *testing.T) {
		s := NewMemory()
		require.NoError(t, s.Create(ctx, record(worker, job, morning)))
		err := s.Create(ctx, record(worker, job, morning.Add(6*time.Hour)))
		assert.ErrorIs(t, err, ErrDuplicateDay)
	})

	t.Run("other job or other day is independent", func(t *testing.T) {
		s := NewMemory()
		require.NoError(t, s.Create(ctx, record(worker, job, morning)))
		assert.NoError(t, s.Create(ctx, record(worker, domain.NewJobID(), morning)))
		assert.NoError(t, s.Create(ctx, record(worker, job, morning.Add(24*time.Hour))))
	})
}

func TestMemoryStoreFindSameDay(t *testing.T) {
	ctx := context.Background()
	worker := domain.NewWorkerID()
	job := domain.NewJobID()
	morning := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	dayStart := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	s := NewMemory()
	require.NoError(t, s.Create(ctx, record(worker, job, morning)))

	found, err := s.FindSameDay(ctx, worker, job, dayStart)
	require.NoError(t, err)
	assert.NotNil(t, found)

	found, err = s.FindSameDay(ctx, worker, domain.NewJobID(), dayStart)
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = s.FindSameDay(ctx, worker, job, dayStart.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, found, "yesterday's record must not match today")
}

func TestMemoryStoreFindNearTimestamp(t *testing.T) {
	ctx := context.Background()
	worker := domain.NewWorkerID()
	job := domain.NewJobID()
	ts := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	s := NewMemory()
	require.NoError(t, s.Create(ctx, record(worker, job, ts)))

	found, err := s.FindNearTimestamp(ctx, worker, ts.Add(45*time.Second), time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, found, "inside the window")

	found, err = s.FindNearTimestamp(ctx, worker, ts.Add(-time.Minute), time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, found, "window is symmetric")

	found, err = s.FindNearTimestamp(ctx, worker, ts.Add(2*time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Nil(t, found, "outside the window")

	found, err = s.FindNearTimestamp(ctx, domain.NewWorkerID(), ts, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, found, "other workers never match")
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	worker := domain.NewWorkerID()
	job := domain.NewJobID()
	other := domain.NewJobID()
	morning := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	s := NewMemory()
	require.NoError(t, s.Create(ctx, record(worker, job, morning)))
	require.NoError(t, s.Create(ctx, record(worker, other, morning)))

	removed, err := s.Delete(ctx, worker, job)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// Deleting frees the day slot for re-creation.
	assert.NoError(t, s.Create(ctx, record(worker, job, morning)))

	records, err := s.ListByWorker(ctx, worker)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
