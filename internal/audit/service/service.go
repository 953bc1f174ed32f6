// Package service implements the append-only audit chain writer.
//
// Each entry's digest commits to the previous entry's digest, so the chain
// is verifiable end-to-end by recomputation. Appends are serialized through
// a single writer: the tail read and the insert must not interleave, or two
// entries would claim the same previous digest.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"haazri/internal/audit/models"
	"haazri/internal/platform/logger"
	"haazri/internal/platform/metrics"
	"haazri/pkg/domain"
	"haazri/pkg/requestcontext"
)

// Store is the persistence surface the writer needs.
type Store interface {
	Append(ctx context.Context, entry *models.Entry) error
	Tail(ctx context.Context) (*models.Entry, error)
	ListAll(ctx context.Context) ([]*models.Entry, error)
}

// Writer appends entries to the audit chain.
type Writer struct {
	mu      sync.Mutex
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(store Store, log *slog.Logger, m *metrics.Metrics) *Writer {
	return &Writer{store: store, logger: log, metrics: m}
}

// Append records a security-relevant action. It never returns an error:
// audit failures must not block the primary business action. Failures are
// logged as control-plane degradation and counted, so a weakened chain is
// visible rather than silent.
func (w *Writer) Append(ctx context.Context, action string, actor *domain.WorkerID, details map[string]any) {
	if err := w.append(ctx, action, actor, details); err != nil {
		logger.Degraded(w.logger, "audit append failed",
			"error", err,
			"action", action,
			"request_id", requestcontext.RequestID(ctx),
		)
		if w.metrics != nil {
			w.metrics.ControlDegraded.WithLabelValues("audit").Inc()
		}
		return
	}
	if w.metrics != nil {
		w.metrics.AuditAppends.Inc()
	}
}

func (w *Writer) append(ctx context.Context, action string, actor *domain.WorkerID, details map[string]any) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	ip := requestcontext.ClientIP(ctx)
	if ip == "" {
		ip = "internal"
	}

	// Microsecond truncation keeps the digest input reproducible after a
	// round trip through timestamptz.
	ts := requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)

	w.mu.Lock()
	defer w.mu.Unlock()

	tail, err := w.store.Tail(ctx)
	if err != nil {
		return fmt.Errorf("read audit tail: %w", err)
	}
	prevDigest := models.GenesisDigest
	if tail != nil {
		prevDigest = tail.Digest
	}

	entry := &models.Entry{
		Action:     action,
		ActorID:    actor,
		Details:    string(detailsJSON),
		IP:         ip,
		PrevDigest: prevDigest,
		Timestamp:  ts,
	}
	entry.Digest = ComputeDigest(entry)

	if err := w.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ComputeDigest derives an entry's digest from its stored fields.
// Input: prevDigest | action | actor | details | RFC3339Nano timestamp.
func ComputeDigest(e *models.Entry) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s",
		e.PrevDigest, e.Action, e.ActorField(), e.Details,
		e.Timestamp.UTC().Format(time.RFC3339Nano))
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// VerifyError reports the first broken link found during verification.
type VerifyError struct {
	Seq    int64
	Reason string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("audit chain broken at seq %d: %s", e.Seq, e.Reason)
}

// Verify walks the chain from genesis, recomputing every digest and checking
// every previous-digest link. Returns the number of verified entries and the
// first mismatch, if any. Exposed as a maintenance operation.
func (w *Writer) Verify(ctx context.Context) (int, error) {
	entries, err := w.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list audit entries: %w", err)
	}

	prevDigest := models.GenesisDigest
	for i, entry := range entries {
		if entry.PrevDigest != prevDigest {
			return i, &VerifyError{Seq: entry.Seq, Reason: "prev_digest does not match previous entry"}
		}
		if ComputeDigest(entry) != entry.Digest {
			return i, &VerifyError{Seq: entry.Seq, Reason: "stored digest does not match recomputation"}
		}
		prevDigest = entry.Digest
	}
	return len(entries), nil
}
