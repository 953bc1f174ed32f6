//go:build integration

package store_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"haazri/internal/audit/models"
	"haazri/internal/audit/service"
	"haazri/internal/audit/store"
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
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_entries"))
}

func (s *PostgresStoreSuite) TestSequenceAssignment() {
	ctx := context.Background()

	tail, err := s.store.Tail(ctx)
	s.Require().NoError(err)
	s.Nil(tail, "empty chain has no tail")

	actor := domain.NewWorkerID()
	for i := range 3 {
		entry := &models.Entry{
			Action:     "attendance_accepted",
			ActorID:    &actor,
			Details:    fmt.Sprintf(`{"n":%d}`, i),
			IP:         "10.0.0.1",
			PrevDigest: "prev",
			Digest:     "digest",
			Timestamp:  time.Now().UTC().Truncate(time.Microsecond),
		}
		s.Require().NoError(s.store.Append(ctx, entry))
	}

	tail, err = s.store.Tail(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(tail)
	s.Equal(int64(3), tail.Seq)

	entries, err := s.store.ListAll(ctx)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	for i, entry := range entries {
		s.Equal(int64(i+1), entry.Seq)
		s.Require().NotNil(entry.ActorID)
		s.Equal(actor, *entry.ActorID)
	}
}

// TestChainSurvivesRoundTrip appends through the real writer and verifies the
// chain from the stored rows, which exercises digest stability across the
// timestamp and details round-trip through Postgres.
func (s *PostgresStoreSuite) TestChainSurvivesRoundTrip() {
	ctx := context.Background()
	writer := service.New(s.store, slog.New(slog.DiscardHandler), nil)

	actor := domain.NewWorkerID()
	writer.Append(ctx, "attendance_accepted", &actor, map[string]any{"job_id": "j1"})
	writer.Append(ctx, "attendance_rejected_high_risk", &actor, map[string]any{"risk_score": 180})
	writer.Append(ctx, "offline_batch_synced", nil, map[string]any{"synced": 2})

	count, err := writer.Verify(ctx)
	s.Require().NoError(err)
	s.Equal(3, count)

	entries, err := s.store.ListAll(ctx)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.Equal(models.GenesisDigest, entries[0].PrevDigest)
	s.Equal(entries[0].Digest, entries[1].PrevDigest)
	s.Equal("system", entries[2].ActorField())
}
