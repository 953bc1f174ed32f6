// Package service reconciles offline-queued attendance batches.
//
// Each batch item was signed on the device against a per-device secret. The
// reconciler re-derives the signature from a canonical serialization of the
// payload, deduplicates replays inside a fixed time window, and commits the
// survivors as offline_sync attendance records. Items are independent: one
// bad item never aborts the batch.
package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	attModel "haazri/internal/attendance/models"
	attStore "haazri/internal/attendance/store"
	"haazri/internal/geo"
	"haazri/internal/platform/logger"
	"haazri/internal/platform/metrics"
	"haazri/internal/sync/secrets"
	"haazri/pkg/domain"
	dErrors "haazri/pkg/domain-errors"
	"haazri/pkg/requestcontext"
)

// IdempotencyWindow bounds the replay check: a record for the same worker
// dated within this distance of an item's timestamp marks the item as
// already synced.
const IdempotencyWindow = 60 * time.Second

// DefaultSecretTTL bounds the life of a provisioned per-device secret when
// no deployment-specific TTL is configured.
const DefaultSecretTTL = 30 * 24 * time.Hour

// BatchItem is one client-queued record. Payload stays raw until its
// signature has been checked against the exact submitted bytes.
type BatchItem struct {
	LocalID   string          `json:"localId"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// itemPayload is the semantic content of a signed payload.
type itemPayload struct {
	JobID     string     `json:"jobId"`
	Timestamp int64      `json:"timestamp"` // epoch milliseconds, device clock
	Location  *geo.Point `json:"location"`
	SelfieURL string     `json:"selfieUrl"`
}

// ItemError reports one failed batch item.
type ItemError struct {
	ItemID string `json:"itemId"`
	Reason string `json:"reason"`
}

// Result summarizes one processed batch. Replayed items count as successes
// so the client clears its local queue.
type Result struct {
	SuccessCount int         `json:"successCount"`
	FailedCount  int         `json:"failedCount"`
	Errors       []ItemError `json:"errors"`
}

// AttendanceStore is the persistence surface the reconciler needs.
type AttendanceStore interface {
	Create(ctx context.Context, rec *attModel.Record) error
	FindNearTimestamp(ctx context.Context, workerID domain.WorkerID, ts time.Time, window time.Duration) (*attModel.Record, error)
}

// AuditWriter records the batch outcome. Append never fails.
type AuditWriter interface {
	Append(ctx context.Context, action string, actor *domain.WorkerID, details map[string]any)
}

// Reconciler verifies and commits signed offline batches.
type Reconciler struct {
	attendance     AttendanceStore
	secrets        secrets.Store
	audit          AuditWriter
	fallbackSecret string
	secretTTL      time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(*Reconciler)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithSecretTTL overrides how long enrolled device secrets stay valid.
func WithSecretTTL(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.secretTTL = d
		}
	}
}

// New builds a Reconciler. fallbackSecret is used for devices with no
// provisioned secret; it must only carry a weak default in development.
func New(attendance AttendanceStore, secretStore secrets.Store, audit AuditWriter,
	fallbackSecret string, log *slog.Logger, opts ...Option) *Reconciler {

	r := &Reconciler{
		attendance:     attendance,
		secrets:        secretStore,
		audit:          audit,
		fallbackSecret: fallbackSecret,
		secretTTL:      DefaultSecretTTL,
		logger:         log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnrollDevice mints a fresh HMAC secret for the calling device and stores
// it under the configured TTL, replacing any prior secret for the same
// (worker, device) pair. The plaintext is returned exactly once; the server
// keeps only the stored copy.
func (r *Reconciler) EnrollDevice(ctx context.Context, workerID domain.WorkerID) (string, error) {
	deviceID := requestcontext.DeviceID(ctx)

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate device secret")
	}
	secret := hex.EncodeToString(buf)

	if err := r.secrets.Provision(ctx, workerID, deviceID, secret, r.secretTTL); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store device secret")
	}

	r.logger.InfoContext(ctx, "device secret provisioned",
		"worker_id", workerID.String(),
		"device_id", deviceID,
		"ttl", r.secretTTL.String(),
	)
	r.audit.Append(ctx, "device_secret_provisioned", &workerID, map[string]any{
		"device_id": deviceID,
		"ttl_hours": int(r.secretTTL.Hours()),
	})
	return secret, nil
}

// ProcessBatch runs the per-item pipeline: signature, replay window, commit.
// Items are processed sequentially so the replay probe sees earlier commits
// from the same batch.
func (r *Reconciler) ProcessBatch(ctx context.Context, workerID domain.WorkerID, batch []BatchItem) Result {
	deviceID := requestcontext.DeviceID(ctx)
	result := Result{Errors: []ItemError{}}

	for _, item := range batch {
		if err := r.processItem(ctx, workerID, deviceID, item); err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, ItemError{ItemID: item.LocalID, Reason: err.Error()})
			r.countItem("failed")
			continue
		}
		result.SuccessCount++
	}

	// The offline path applies no geofence or anomaly pass; the signature is
	// the only integrity control. Surfaced on every batch so the gap stays
	// visible in logs and metrics.
	if result.SuccessCount > 0 {
		r.logger.WarnContext(ctx, "offline batch committed without geofence or anomaly checks",
			"worker_id", workerID.String(),
			"device_id", deviceID,
			"synced", result.SuccessCount,
		)
		if r.metrics != nil {
			r.metrics.ControlDegraded.WithLabelValues("offline_fraud_pass").Inc()
		}
	}

	r.audit.Append(ctx, "offline_batch_synced", &workerID, map[string]any{
		"device_id": deviceID,
		"synced":    result.SuccessCount,
		"failed":    result.FailedCount,
	})
	return result
}

func (r *Reconciler) processItem(ctx context.Context, workerID domain.WorkerID, deviceID string, item BatchItem) error {
	if len(item.Payload) == 0 {
		return errors.New("missing payload")
	}
	if item.Signature == "" {
		return errors.New("missing signature")
	}

	secret, err := r.secrets.SecretFor(ctx, workerID, deviceID)
	if err != nil {
		// Fail closed: without the real secret the fallback would let a
		// stolen-fallback signature through for a provisioned device.
		logger.Degraded(r.logger, "device secret lookup failed",
			"error", err, "worker_id", workerID.String(), "device_id", deviceID)
		return errors.New("device secret unavailable")
	}
	if secret == "" {
		secret = r.fallbackSecret
	}

	if !VerifySignature(item.Payload, item.Signature, secret) {
		return errors.New("invalid signature: potential tampering")
	}

	var payload itemPayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		return errors.New("malformed payload")
	}
	jobID, err := domain.ParseJobID(payload.JobID)
	if err != nil {
		return errors.New("invalid job id")
	}
	if payload.Timestamp <= 0 {
		return errors.New("missing timestamp")
	}
	ts := time.UnixMilli(payload.Timestamp).UTC()

	existing, err := r.attendance.FindNearTimestamp(ctx, workerID, ts, IdempotencyWindow)
	if err != nil {
		return errors.New("replay check failed")
	}
	if existing != nil {
		// Already synced: count as success so the client dequeues the item.
		r.countItem("replayed")
		return nil
	}

	record := &attModel.Record{
		ID:                 domain.NewAttendanceID(),
		WorkerID:           workerID,
		JobID:              jobID,
		Date:               ts,
		CheckInTime:        ts,
		Location:           payload.Location,
		SelfieURL:          payload.SelfieURL,
		Status:             attModel.StatusPresent,
		VerificationMethod: attModel.MethodOfflineSync,
		IsSynced:           true,
		CreatedAt:          requestcontext.Now(ctx),
	}
	if err := r.attendance.Create(ctx, record); err != nil {
		if errors.Is(err, attStore.ErrDuplicateDay) {
			return errors.New("attendance already marked for that day")
		}
		return errors.New("failed to store record")
	}
	r.countItem("synced")
	return nil
}

func (r *Reconciler) countItem(outcome string) {
	if r.metrics != nil {
		r.metrics.SyncItems.WithLabelValues(outcome).Inc()
	}
}

// VerifySignature recomputes the HMAC over the canonical form of payload and
// compares it to the submitted hex signature in constant time. The canonical
// form is the JSON serialization with object keys sorted lexicographically,
// which is what the device signed.
func VerifySignature(payload json.RawMessage, signature, secret string) bool {
	canonical, err := canonicalize(payload)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonical)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// canonicalize round-trips the raw JSON through a map; encoding/json
// serializes map keys in sorted order, which yields the canonical form.
func canonicalize(payload json.RawMessage) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Sign computes the signature a device would attach to payload. Exported for
// enrollment tooling and tests.
func Sign(payload json.RawMessage, secret string) (string, error) {
	canonical, err := canonicalize(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
