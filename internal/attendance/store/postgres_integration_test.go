//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"haazri/internal/attendance/models"
	"haazri/internal/attendance/store"
	"haazri/internal/geo"
	"haazri/pkg/domain"
	"haazri/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "attendance_records"))
}

func (s *PostgresStoreSuite) newRecord(worker domain.WorkerID, job domain.JobID, at time.Time) *models.Record {
	return &models.Record{
		ID:                 domain.NewAttendanceID(),
		WorkerID:           worker,
		JobID:              job,
		Date:               at,
		CheckInTime:        at,
		Location:           &geo.Point{Lat: 28.6, Lng: 77.2},
		Status:             models.StatusPresent,
		VerificationMethod: models.MethodGeoFace,
		IsSynced:           true,
		CreatedAt:          at,
	}
}

func (s *PostgresStoreSuite) TestUniqueIndexRejectsSameDay() {
	ctx := context.Background()
	worker := domain.NewWorkerID()
	job := domain.NewJobID()
	morning := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Create(ctx, s.newRecord(worker, job, morning)))

	// Different time, same UTC calendar day: the index is authoritative.
	err := s.store.Create(ctx, s.newRecord(worker, job, morning.Add(8*time.Hour)))
	s.ErrorIs(err, store.ErrDuplicateDay)

	s.NoError(s.store.Create(ctx, s.newRecord(worker, job, morning.Add(24*time.Hour))))
	s.NoError(s.store.Create(ctx, s.newRecord(worker, domain.NewJobID(), morning)))
}

func (s *PostgresStoreSuite) TestFindSameDay() {
	ctx := context.Background()
	worker := domain.NewWorkerID()
	job := domain.NewJobID()
	morning := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	dayStart := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Create(ctx, s.newRecord(worker, job, morning)))

	found, err := s.store.FindSameDay(ctx, worker, job, dayStart)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(worker, found.WorkerID)
	s.Require().NotNil(found.Location)
	s.InDelta(28.6, found.Location.Lat, 1e-9)

	found, err = s.store.FindSameDay(ctx, worker, job, dayStart.Add(24*time.Hour))
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *PostgresStoreSuite) TestFindNearTimestamp() {
	ctx := context.Background()
	worker := domain.NewWorkerID()
	ts := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Create(ctx, s.newRecord(worker, domain.NewJobID(), ts)))

	found, err := s.store.FindNearTimestamp(ctx, worker, ts.Add(30*time.Second), time.Minute)
	s.Require().NoError(err)
	s.NotNil(found)

	found, err = s.store.FindNearTimestamp(ctx, worker, ts.Add(5*time.Minute), time.Minute)
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *PostgresStoreSuite) TestDelete() {
	ctx := context.Background()
	worker := domain.NewWorkerID()
	job := domain.NewJobID()
	morning := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Create(ctx, s.newRecord(worker, job, morning)))

	removed, err := s.store.Delete(ctx, worker, job)
	s.Require().NoError(err)
	s.Equal(1, removed)

	records, err := s.store.ListByWorker(ctx, worker)
	s.Require().NoError(err)
	s.Empty(records)
}
