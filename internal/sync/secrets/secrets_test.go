package secrets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haazri/pkg/domain"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	worker := domain.NewWorkerID()

	t.Run("unprovisioned device yields empty secret", func(t *testing.T) {
		s := NewMemory()
		secret, err := s.SecretFor(ctx, worker, "device-a")
		require.NoError(t, err)
		assert.Empty(t, secret)
	})

	t.Run("provisioned secret is returned until expiry", func(t *testing.T) {
		s := NewMemory()
		now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return now }

		require.NoError(t, s.Provision(ctx, worker, "device-a", "s3cret", time.Hour))

		secret, err := s.SecretFor(ctx, worker, "device-a")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", secret)

		now = now.Add(2 * time.Hour)
		secret, err = s.SecretFor(ctx, worker, "device-a")
		require.NoError(t, err)
		assert.Empty(t, secret, "expired entries read as unprovisioned")
	})

	t.Run("secrets are scoped per worker and device", func(t *testing.T) {
		s := NewMemory()
		require.NoError(t, s.Provision(ctx, worker, "device-a", "s3cret", time.Hour))

		secret, err := s.SecretFor(ctx, worker, "device-b")
		require.NoError(t, err)
		assert.Empty(t, secret)

		secret, err = s.SecretFor(ctx, domain.NewWorkerID(), "device-a")
		require.NoError(t, err)
		assert.Empty(t, secret)
	})

	t.Run("reprovision replaces the secret", func(t *testing.T) {
		s := NewMemory()
		require.NoError(t, s.Provision(ctx, worker, "device-a", "old", time.Hour))
		require.NoError(t, s.Provision(ctx, worker, "device-a", "new", time.Hour))

		secret, err := s.SecretFor(ctx, worker, "device-a")
		require.NoError(t, err)
		assert.Equal(t, "new", secret)
	})
}
