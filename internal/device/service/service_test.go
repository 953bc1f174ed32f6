package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haazri/internal/device/models"
	"haazri/internal/device/store"
	"haazri/pkg/domain"
	dErrors "haazri/pkg/domain-errors"
	"haazri/pkg/requestcontext"
)

const chromeUA = "Mozilla/5.0 (Linux; Android 13; SM-A135F) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"

func gateCtx(deviceID string) context.Context {
	ctx := requestcontext.WithDeviceID(context.Background(), deviceID)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", chromeUA)
	return requestcontext.WithTime(ctx, time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC))
}

func TestGateEvaluate(t *testing.T) {
	log := slog.New(slog.DiscardHandler)

	t.Run("first sighting registers at trust 90", func(t *testing.T) {
		mem := store.NewMemory()
		gate := New(mem, log, nil)
		worker := domain.NewWorkerID()

		verdict, err := gate.Evaluate(gateCtx("dev-1"), worker)
		require.NoError(t, err)
		assert.Equal(t, models.InitialTrustScore, verdict.TrustScore)
		assert.False(t, verdict.Blocked)

		saved, err := mem.Find(context.Background(), worker, "dev-1")
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, "Android", saved.Fingerprint.OS)
		assert.Equal(t, "Chrome", saved.Fingerprint.Browser)
		assert.Equal(t, "203.0.113.7", saved.Fingerprint.IP)
	})

	t.Run("missing device id maps to unknown_device", func(t *testing.T) {
		mem := store.NewMemory()
		gate := New(mem, log, nil)
		worker := domain.NewWorkerID()

		verdict, err := gate.Evaluate(gateCtx(""), worker)
		require.NoError(t, err)
		assert.Equal(t, models.UnknownDeviceID, verdict.DeviceID)
	})

	t.Run("known device refreshes last_seen", func(t *testing.T) {
		mem := store.NewMemory()
		gate := New(mem, log, nil)
		worker := domain.NewWorkerID()

		earlier := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
		require.NoError(t, mem.Create(context.Background(), &models.Trust{
			UserID: worker, DeviceID: "dev-2",
			TrustScore: 75, LastSeen: earlier, CreatedAt: earlier,
		}))

		verdict, err := gate.Evaluate(gateCtx("dev-2"), worker)
		require.NoError(t, err)
		assert.Equal(t, 75, verdict.TrustScore, "existing score is preserved, not reset")

		saved, err := mem.Find(context.Background(), worker, "dev-2")
		require.NoError(t, err)
		assert.True(t, saved.LastSeen.After(earlier))
	})

	t.Run("blocked device is rejected with forbidden", func(t *testing.T) {
		mem := store.NewMemory()
		gate := New(mem, log, nil)
		worker := domain.NewWorkerID()

		require.NoError(t, mem.Create(context.Background(), &models.Trust{
			UserID: worker, DeviceID: "dev-3", TrustScore: 10, Blocked: true,
		}))

		verdict, err := gate.Evaluate(gateCtx("dev-3"), worker)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeForbidden))
		assert.True(t, verdict.Blocked)
	})

	t.Run("store failure fails open", func(t *testing.T) {
		gate := New(brokenStore{}, log, nil)

		verdict, err := gate.Evaluate(gateCtx("dev-4"), domain.NewWorkerID())
		require.NoError(t, err, "gate errors must not block the request")
		assert.False(t, verdict.Blocked)
		assert.Zero(t, verdict.TrustScore)
	})
}

type brokenStore struct{}

func (brokenStore) Find(context.Context, domain.WorkerID, string) (*models.Trust, error) {
	return nil, errors.New("store down")
}
func (brokenStore) Create(context.Context, *models.Trust) error {
	return errors.New("store down")
}
func (brokenStore) TouchLastSeen(context.Context, domain.WorkerID, string, time.Time) error {
	return errors.New("store down")
}
