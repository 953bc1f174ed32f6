// Package service orchestrates live check-in submission.
//
// A check-in moves through fixed stages: job lookup, geofence, same-day
// duplicate check, anomaly analysis, then persistence. The fraud signal is
// written before the attendance record because future anomaly comparisons
// key off signal history, not attendance history. When the backing store is
// transactional both writes plus the audit append share one transaction.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	attModel "haazri/internal/attendance/models"
	"haazri/internal/attendance/store"
	fraudModel "haazri/internal/fraud/models"
	fraudService "haazri/internal/fraud/service"
	"haazri/internal/geo"
	jobModel "haazri/internal/job/models"
	"haazri/internal/platform/metrics"
	"haazri/pkg/domain"
	dErrors "haazri/pkg/domain-errors"
	"haazri/pkg/requestcontext"
)

// highRiskThreshold rejects only the high-confidence impossible-speed tier.
// A bare fence violation (80) is already rejected at the geofence stage;
// lower-severity flags are recorded but do not block.
const highRiskThreshold = 100

// AttendanceStore is the persistence surface the orchestrator needs.
type AttendanceStore interface {
	Create(ctx context.Context, rec *attModel.Record) error
	FindSameDay(ctx context.Context, workerID domain.WorkerID, jobID domain.JobID, dayStart time.Time) (*attModel.Record, error)
	Delete(ctx context.Context, workerID domain.WorkerID, jobID domain.JobID) (int, error)
}

// JobStore resolves the referenced job.
type JobStore interface {
	FindByID(ctx context.Context, id domain.JobID) (*jobModel.Job, error)
}

// SignalStore persists fraud signals.
type SignalStore interface {
	Append(ctx context.Context, signal *fraudModel.Signal) error
}

// Analyzer scores a check-in for anomalies.
type Analyzer interface {
	AnalyzeCheckIn(ctx context.Context, userID domain.WorkerID, job *jobModel.Job, candidate *geo.Point, fenceRadiusKm float64) fraudService.Outcome
}

// AuditWriter records trust-relevant decisions. Append never fails.
type AuditWriter interface {
	Append(ctx context.Context, action string, actor *domain.WorkerID, details map[string]any)
}

// TxRunner scopes fn to one storage transaction. NoopTx is used when the
// backing store has no transaction support (memory mode).
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoopTx runs fn directly.
type NoopTx struct{}

func (NoopTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// CheckInInput is a live check-in submission.
type CheckInInput struct {
	JobID     domain.JobID
	Status    attModel.Status
	Location  *geo.Point
	SelfieURL string
}

// Service is the attendance submission orchestrator.
type Service struct {
	attendance AttendanceStore
	jobs       JobStore
	signals    SignalStore
	analyzer   Analyzer
	audit      AuditWriter
	tx         TxRunner
	logger     *slog.Logger
	metrics    *metrics.Metrics

	fenceRadiusKm float64
}

type Option func(*Service)

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithFenceRadius overrides the deployment-wide fence radius applied to jobs
// that have none of their own.
func WithFenceRadius(km float64) Option {
	return func(s *Service) {
		if km > 0 {
			s.fenceRadiusKm = km
		}
	}
}

func New(attendance AttendanceStore, jobs JobStore, signals SignalStore,
	analyzer Analyzer, audit AuditWriter, log *slog.Logger, opts ...Option) *Service {

	s := &Service{
		attendance: attendance,
		jobs:       jobs,
		signals:    signals,
		analyzer:   analyzer,
		audit:      audit,
		tx:         NoopTx{},
		logger:     log,

		fenceRadiusKm: geo.DefaultFenceRadiusKm,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckIn runs the live submission flow and returns the created record.
func (s *Service) CheckIn(ctx context.Context, workerID domain.WorkerID, input CheckInInput) (*attModel.Record, error) {
	now := requestcontext.Now(ctx)

	if !input.Status.Valid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid status")
	}

	job, err := s.jobs.FindByID(ctx, input.JobID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load job")
	}
	if job == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "job not found")
	}

	radius := job.FenceRadiusKm
	if radius <= 0 {
		radius = s.fenceRadiusKm
	}
	ev := geo.Evaluate(input.Location, job.Site, radius)
	if ev.Verdict == geo.Outside {
		s.reject(ctx, workerID, input.JobID, "geofence")
		return nil, dErrors.Newf(dErrors.CodeBadRequest,
			"location mismatch: you are %.2fkm away from site", ev.DistanceKm)
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	existing, err := s.attendance.FindSameDay(ctx, workerID, input.JobID, dayStart)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing attendance")
	}
	if existing != nil {
		s.reject(ctx, workerID, input.JobID, "duplicate")
		return nil, dErrors.New(dErrors.CodeBadRequest, "attendance already marked for today")
	}

	outcome := s.analyzer.AnalyzeCheckIn(ctx, workerID, job, input.Location, radius)
	if outcome.Degraded && s.metrics != nil {
		s.metrics.ControlDegraded.WithLabelValues("fraud_analysis").Inc()
	}
	analysis := outcome.Analysis

	signalMeta := map[string]any{"job_id": input.JobID.String()}
	if deviceID := requestcontext.DeviceID(ctx); deviceID != "" {
		signalMeta["device_id"] = deviceID
	}

	if analysis.IsFraud && analysis.RiskScore >= highRiskThreshold {
		// Record the evidence, then reject. Reasons stay internal: the
		// client sees a generic message so it cannot calibrate spoofing.
		signal := fraudService.NewSignal(workerID, analysis, input.Location, signalMeta, now)
		if err := s.signals.Append(ctx, signal); err != nil {
			s.logger.ErrorContext(ctx, "failed to record fraud signal for rejected check-in",
				"error", err, "worker_id", workerID.String())
		}
		s.logger.WarnContext(ctx, "high-risk check-in rejected",
			"worker_id", workerID.String(),
			"job_id", input.JobID.String(),
			"risk_score", analysis.RiskScore,
			"reasons", analysis.Reasons,
			"request_id", requestcontext.RequestID(ctx),
		)
		s.audit.Append(ctx, "attendance_rejected_high_risk", &workerID, map[string]any{
			"job_id":     input.JobID.String(),
			"risk_score": analysis.RiskScore,
		})
		s.reject(ctx, workerID, input.JobID, "high_risk")
		if s.metrics != nil {
			s.metrics.FraudSignals.WithLabelValues("high").Inc()
		}
		return nil, dErrors.New(dErrors.CodeBadRequest,
			"suspicious activity detected, please check in normally")
	}

	method := attModel.MethodManual
	if input.Location != nil && input.SelfieURL != "" {
		method = attModel.MethodGeoFace
	}

	record := &attModel.Record{
		ID:                 domain.NewAttendanceID(),
		WorkerID:           workerID,
		JobID:              input.JobID,
		Date:               now,
		CheckInTime:        now,
		Location:           input.Location,
		SelfieURL:          input.SelfieURL,
		Status:             input.Status,
		VerificationMethod: method,
		IsSynced:           true,
		CreatedAt:          now,
	}

	// Signal first, then record, then audit, in one transaction when the
	// store supports it: a record without its seed signal (or vice versa)
	// must not survive a partial failure.
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		signal := fraudService.NewSignal(workerID, analysis, input.Location, signalMeta, now)
		if err := s.signals.Append(ctx, signal); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record check-in signal")
		}
		if err := s.attendance.Create(ctx, record); err != nil {
			if errors.Is(err, store.ErrDuplicateDay) {
				return dErrors.New(dErrors.CodeBadRequest, "attendance already marked for today")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create attendance record")
		}
		s.audit.Append(ctx, "attendance_accepted", &workerID, map[string]any{
			"job_id":              input.JobID.String(),
			"attendance_id":       record.ID.String(),
			"verification_method": string(method),
			"risk_score":          analysis.RiskScore,
		})
		return nil
	})
	if err != nil {
		if dErrors.Is(err, dErrors.CodeBadRequest) {
			s.reject(ctx, workerID, input.JobID, "duplicate")
		}
		return nil, err
	}

	if analysis.RiskScore > 0 && s.metrics != nil {
		s.metrics.FraudSignals.WithLabelValues("low").Inc()
	}
	if s.metrics != nil {
		s.metrics.CheckInsAccepted.Inc()
	}
	return record, nil
}

func (s *Service) reject(ctx context.Context, workerID domain.WorkerID, jobID domain.JobID, reason string) {
	if s.metrics != nil {
		s.metrics.CheckInsRejected.WithLabelValues(reason).Inc()
	}
	s.logger.InfoContext(ctx, "check-in rejected",
		"reason", reason,
		"worker_id", workerID.String(),
		"job_id", jobID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
}

// Delete removes the caller's attendance for a job. Administrative/test
// helper kept for payroll reconciliation; the removal itself is audited.
func (s *Service) Delete(ctx context.Context, workerID domain.WorkerID, jobID domain.JobID) error {
	removed, err := s.attendance.Delete(ctx, workerID, jobID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete attendance")
	}
	s.audit.Append(ctx, "attendance_deleted", &workerID, map[string]any{
		"job_id":  jobID.String(),
		"removed": removed,
	})
	return nil
}

// LegacyRecord is one item of the unsigned legacy sync payload.
type LegacyRecord struct {
	JobID     domain.JobID
	Timestamp time.Time
	Location  *geo.Point
	SelfieURL string
}

// LegacyItemError reports one failed legacy sync item.
type LegacyItemError struct {
	JobID  string `json:"id"`
	Reason string `json:"error"`
}

// SyncLegacy commits unsigned offline records submitted through the legacy
// endpoint. Items are independent: one failure does not abort the batch.
// Unlike the signed path there is no signature or idempotency handling;
// the same-day storage constraint is the only duplicate protection.
func (s *Service) SyncLegacy(ctx context.Context, workerID domain.WorkerID, records []LegacyRecord) (int, []LegacyItemError) {
	synced := 0
	var itemErrors []LegacyItemError

	for _, rec := range records {
		job, err := s.jobs.FindByID(ctx, rec.JobID)
		if err != nil {
			itemErrors = append(itemErrors, LegacyItemError{rec.JobID.String(), "failed to load job"})
			continue
		}
		if job == nil {
			itemErrors = append(itemErrors, LegacyItemError{rec.JobID.String(), "job not found"})
			continue
		}

		record := &attModel.Record{
			ID:                 domain.NewAttendanceID(),
			WorkerID:           workerID,
			JobID:              rec.JobID,
			Date:               rec.Timestamp,
			CheckInTime:        rec.Timestamp,
			Location:           rec.Location,
			SelfieURL:          rec.SelfieURL,
			Status:             attModel.StatusPresent,
			VerificationMethod: attModel.MethodOfflineSync,
			IsSynced:           true,
			CreatedAt:          requestcontext.Now(ctx),
		}
		if err := s.attendance.Create(ctx, record); err != nil {
			reason := "failed to create attendance record"
			if errors.Is(err, store.ErrDuplicateDay) {
				reason = "attendance already marked for that day"
			}
			itemErrors = append(itemErrors, LegacyItemError{rec.JobID.String(), reason})
			continue
		}
		synced++
	}

	s.audit.Append(ctx, "legacy_batch_synced", &workerID, map[string]any{
		"synced": synced,
		"failed": len(itemErrors),
	})
	return synced, itemErrors
}
