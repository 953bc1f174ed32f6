package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	attStore "haazri/internal/attendance/store"
	auditService "haazri/internal/audit/service"
	auditStore "haazri/internal/audit/store"
	"haazri/internal/sync/secrets"
	"haazri/pkg/domain"
	"haazri/pkg/requestcontext"
)

const fallbackSecret = "default_secret_dev"

var syncTime = time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

type syncFixture struct {
	rec        *Reconciler
	attendance *attStore.MemoryStore
	secrets    *secrets.MemoryStore
	audit      *auditStore.MemoryStore
	worker     domain.WorkerID
	job        domain.JobID
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	log := slog.New(slog.DiscardHandler)

	f := &syncFixture{
		attendance: attStore.NewMemory(),
		secrets:    secrets.NewMemory(),
		audit:      auditStore.NewMemory(),
		worker:     domain.NewWorkerID(),
		job:        domain.NewJobID(),
	}
	f.rec = New(f.attendance, f.secrets, auditService.New(f.audit, log, nil), fallbackSecret, log)
	return f
}

func (f *syncFixture) signedItem(t *testing.T, localID, secret string, ts time.Time) BatchItem {
	t.Helper()
	payload := json.RawMessage(fmt.Sprintf(
		`{"jobId":%q,"lat":28.6,"timestamp":%d}`, f.job.String(), ts.UnixMilli()))
	sig, err := Sign(payload, secret)
	require.NoError(t, err)
	return BatchItem{LocalID: localID, Payload: payload, Signature: sig}
}

func syncCtx() context.Context {
	ctx := requestcontext.WithTime(context.Background(), syncTime)
	return requestcontext.WithDeviceID(ctx, "device-a")
}

func TestProcessBatch(t *testing.T) {
	t.Run("commits a validly signed item", func(t *testing.T) {
		f := newSyncFixture(t)
		eventTime := syncTime.Add(-2 * time.Hour)

		res := f.rec.ProcessBatch(syncCtx(), f.worker, []BatchItem{
			f.signedItem(t, "local-1", fallbackSecret, eventTime),
		})
		assert.Equal(t, 1, res.SuccessCount)
		assert.Zero(t, res.FailedCount)
		assert.Empty(t, res.Errors)

		records, err := f.attendance.ListByWorker(context.Background(), f.worker)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, eventTime, records[0].Date, "payload timestamp is authoritative")
		assert.True(t, records[0].IsSynced)
	})

	t.Run("rejects a tampered payload without aborting the batch", func(t *testing.T) {
		f := newSyncFixture(t)

		good := f.signedItem(t, "local-1", fallbackSecret, syncTime.Add(-2*time.Hour))
		bad := f.signedItem(t, "local-2", fallbackSecret, syncTime.Add(-time.Hour))
		bad.Payload = json.RawMessage(fmt.Sprintf(
			`{"jobId":%q,"lat":19.07,"timestamp":%d}`, f.job.String(), syncTime.Add(-time.Hour).UnixMilli()))

		res := f.rec.ProcessBatch(syncCtx(), f.worker, []BatchItem{bad, good})
		assert.Equal(t, 1, res.SuccessCount)
		assert.Equal(t, 1, res.FailedCount)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "local-2", res.Errors[0].ItemID)
		assert.Equal(t, "invalid signature: potential tampering", res.Errors[0].Reason)

		records, err := f.attendance.ListByWorker(context.Background(), f.worker)
		require.NoError(t, err)
		assert.Len(t, records, 1, "tampered item must not produce a record")
	})

	t.Run("signature is key-order independent", func(t *testing.T) {
		f := newSyncFixture(t)
		ts := syncTime.Add(-time.Hour)

		// Sign the sorted form, submit the keys shuffled.
		sorted := json.RawMessage(fmt.Sprintf(
			`{"jobId":%q,"lat":28.6,"timestamp":%d}`, f.job.String(), ts.UnixMilli()))
		sig, err := Sign(sorted, fallbackSecret)
		require.NoError(t, err)
		shuffled := json.RawMessage(fmt.Sprintf(
			`{"timestamp":%d,"lat":28.6,"jobId":%q}`, ts.UnixMilli(), f.job.String()))

		res := f.rec.ProcessBatch(syncCtx(), f.worker, []BatchItem{
			{LocalID: "local-1", Payload: shuffled, Signature: sig},
		})
		assert.Equal(t, 1, res.SuccessCount)
	})

	t.Run("replay inside the window counts as success without a duplicate row", func(t *testing.T) {
		f := newSyncFixture(t)
		item := f.signedItem(t, "local-1", fallbackSecret, syncTime.Add(-2*time.Hour))

		first := f.rec.ProcessBatch(syncCtx(), f.worker, []BatchItem{item})
		second := f.rec.ProcessBatch(syncCtx(), f.worker, []BatchItem{item})
		assert.Equal(t, 1, first.SuccessCount)
		assert.Equal(t, 1, second.SuccessCount, "replays clear the client queue")
		assert.Zero(t, second.FailedCount)

		records, err := f.attendance.ListByWorker(context.Background(), f.worker)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("uses the provisioned device secret over the fallback", func(t *testing.T) {
		f := newSyncFixture(t)
		require.NoError(t, f.secrets.Provision(
			context.Background(), f.worker, "device-a", "device-secret", time.Hour))

		withFallback := f.signedItem(t, "local-1", fallbackSecret, syncTime.Add(-2*time.Hour))
		withDevice := f.signedItem(t, "local-2", "device-secret", syncTime.Add(-time.Hour))

		res := f.rec.ProcessBatch(syncCtx(), f.worker, []BatchItem{withFallback, withDevice})
		assert.Equal(t, 1, res.SuccessCount)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "local-1", res.Errors[0].ItemID,
			"fallback-signed item must fail once a device secret exists")
	})

	t.Run("malformed items fail individually", func(t *testing.T) {
		f := newSyncFixture(t)

		noTimestamp := json.RawMessage(fmt.Sprintf(`{"jobId":%q}`, f.job.String()))
		noTimestampSig, err := Sign(noTimestamp, fallbackSecret)
		require.NoError(t, err)
		badJob := json.RawMessage(fmt.Sprintf(`{"jobId":"not-a-uuid","timestamp":%d}`, syncTime.UnixMilli()))
		badJobSig, err := Sign(badJob, fallbackSecret)
		require.NoError(t, err)

		res := f.rec.ProcessBatch(syncCtx(), f.worker, []BatchItem{
			{LocalID: "a", Payload: nil, Signature: "deadbeef"},
			{LocalID: "b", Payload: noTimestamp, Signature: ""},
			{LocalID: "c", Payload: noTimestamp, Signature: noTimestampSig},
			{LocalID: "d", Payload: badJob, Signature: badJobSig},
		})
		assert.Zero(t, res.SuccessCount)
		assert.Equal(t, 4, res.FailedCount)
		reasons := map[string]string{}
		for _, e := range res.Errors {
			reasons[e.ItemID] = e.Reason
		}
		assert.Equal(t, "missing payload", reasons["a"])
		assert.Equal(t, "missing signature", reasons["b"])
		assert.Equal(t, "missing timestamp", reasons["c"])
		assert.Equal(t, "invalid job id", reasons["d"])
	})

	t.Run("batch outcome is audited", func(t *testing.T) {
		f := newSyncFixture(t)

		f.rec.ProcessBatch(syncCtx(), f.worker, []BatchItem{
			f.signedItem(t, "local-1", fallbackSecret, syncTime.Add(-time.Hour)),
			{LocalID: "local-2", Payload: nil, Signature: "x"},
		})

		entries, err := f.audit.ListAll(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "offline_batch_synced", entries[0].Action)
		assert.Contains(t, entries[0].Details, `"synced":1`)
		assert.Contains(t, entries[0].Details, `"failed":1`)
	})
}

func TestEnrollDevice(t *testing.T) {
	t.Run("enrolled secret signs subsequent batches", func(t *testing.T) {
		f := newSyncFixture(t)
		ctx := syncCtx()

		secret, err := f.rec.EnrollDevice(ctx, f.worker)
		require.NoError(t, err)
		require.Len(t, secret, 64)

		res := f.rec.ProcessBatch(ctx, f.worker, []BatchItem{
			f.signedItem(t, "local-1", secret, syncTime.Add(-2*time.Hour)),
		})
		assert.Equal(t, 1, res.SuccessCount)

		// Enrollment retires the fallback for this device.
		res = f.rec.ProcessBatch(ctx, f.worker, []BatchItem{
			f.signedItem(t, "local-2", fallbackSecret, syncTime.Add(-time.Hour)),
		})
		assert.Equal(t, 1, res.FailedCount)
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0].Reason, "invalid signature")
	})

	t.Run("provisioning is audited with its ttl", func(t *testing.T) {
		f := newSyncFixture(t)
		log := slog.New(slog.DiscardHandler)
		rec := New(f.attendance, f.secrets, auditService.New(f.audit, log, nil),
			fallbackSecret, log, WithSecretTTL(48*time.Hour))

		_, err := rec.EnrollDevice(syncCtx(), f.worker)
		require.NoError(t, err)

		entries, err := f.audit.ListAll(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "device_secret_provisioned", entries[0].Action)
		assert.Contains(t, entries[0].Details, `"device_id":"device-a"`)
		assert.Contains(t, entries[0].Details, `"ttl_hours":48`)
	})

	t.Run("re-enrollment replaces the secret", func(t *testing.T) {
		f := newSyncFixture(t)
		ctx := syncCtx()

		first, err := f.rec.EnrollDevice(ctx, f.worker)
		require.NoError(t, err)
		second, err := f.rec.EnrollDevice(ctx, f.worker)
		require.NoError(t, err)
		require.NotEqual(t, first, second)

		res := f.rec.ProcessBatch(ctx, f.worker, []BatchItem{
			f.signedItem(t, "local-1", first, syncTime.Add(-2*time.Hour)),
			f.signedItem(t, "local-2", second, syncTime.Add(-time.Hour)),
		})
		assert.Equal(t, 1, res.SuccessCount)
		assert.Equal(t, 1, res.FailedCount)
	})
}

func TestVerifySignature(t *testing.T) {
	payload := json.RawMessage(`{"b":2,"a":1}`)
	sig, err := Sign(payload, "secret")
	require.NoError(t, err)

	assert.True(t, VerifySignature(payload, sig, "secret"))
	assert.False(t, VerifySignature(payload, sig, "other-secret"))
	assert.False(t, VerifySignature(json.RawMessage(`{"b":3,"a":1}`), sig, "secret"))
	assert.False(t, VerifySignature(json.RawMessage(`not json`), sig, "secret"))
}
