// Package handler exposes the attendance HTTP surface.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	attModel "haazri/internal/attendance/models"
	"haazri/internal/attendance/service"
	devMiddleware "haazri/internal/device/middleware"
	"haazri/internal/geo"
	"haazri/internal/platform/middleware"
	"haazri/pkg/domain"
	dErrors "haazri/pkg/domain-errors"
	"haazri/pkg/httputil"
	"haazri/pkg/requestcontext"
)

// Service defines the attendance operations the handler needs.
type Service interface {
	CheckIn(ctx context.Context, workerID domain.WorkerID, input service.CheckInInput) (*attModel.Record, error)
	Delete(ctx context.Context, workerID domain.WorkerID, jobID domain.JobID) error
	SyncLegacy(ctx context.Context, workerID domain.WorkerID, records []service.LegacyRecord) (int, []service.LegacyItemError)
}

// Handler handles attendance endpoints.
type Handler struct {
	logger     *slog.Logger
	attendance Service
	validator  *middleware.TokenValidator
	gate       devMiddleware.Gate
}

func New(attendance Service, validator *middleware.TokenValidator, gate devMiddleware.Gate, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		attendance: attendance,
		validator:  validator,
		gate:       gate,
	}
}

// Register mounts the attendance routes. All routes require a worker token;
// only check-in runs the device gate.
func (h *Handler) Register(r chi.Router) {
	ar := chi.NewRouter()
	ar.Use(middleware.RequireWorker(h.validator, h.logger))
	ar.With(devMiddleware.Evaluate(h.gate)).Post("/check-in", h.handleCheckIn)
	ar.Post("/sync", h.handleSync)
	ar.Delete("/{jobID}", h.handleDelete)

	r.Mount("/attendance", ar)
}

type checkInRequest struct {
	JobID     string     `json:"jobId"`
	Status    string     `json:"status"`
	Location  *geo.Point `json:"location"`
	SelfieURL string     `json:"selfieUrl"`
}

type recordResponse struct {
	ID                 string     `json:"id"`
	WorkerID           string     `json:"workerId"`
	JobID              string     `json:"jobId"`
	Date               time.Time  `json:"date"`
	CheckInTime        time.Time  `json:"checkInTime"`
	Location           *geo.Point `json:"location,omitempty"`
	SelfieURL          string     `json:"selfieUrl,omitempty"`
	Status             string     `json:"status"`
	VerificationMethod string     `json:"verificationMethod"`
	IsSynced           bool       `json:"isSynced"`
}

func toRecordResponse(rec *attModel.Record) recordResponse {
	return recordResponse{
		ID:                 rec.ID.String(),
		WorkerID:           rec.WorkerID.String(),
		JobID:              rec.JobID.String(),
		Date:               rec.Date,
		CheckInTime:        rec.CheckInTime,
		Location:           rec.Location,
		SelfieURL:          rec.SelfieURL,
		Status:             string(rec.Status),
		VerificationMethod: string(rec.VerificationMethod),
		IsSynced:           rec.IsSynced,
	}
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workerID := requestcontext.WorkerID(ctx)

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.JobID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "jobId is required"))
		return
	}
	jobID, err := domain.ParseJobID(req.JobID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid jobId"))
		return
	}
	if req.Status == "" {
		req.Status = string(attModel.StatusPresent)
	}

	rec, err := h.attendance.CheckIn(ctx, workerID, service.CheckInInput{
		JobID:     jobID,
		Status:    attModel.Status(req.Status),
		Location:  req.Location,
		SelfieURL: req.SelfieURL,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRecordResponse(rec))
}

type syncRequest struct {
	Records []syncRecord `json:"records"`
}

type syncRecord struct {
	JobID     string     `json:"jobId"`
	Timestamp int64      `json:"timestamp"` // epoch milliseconds
	Location  *geo.Point `json:"location"`
	SelfieURL string     `json:"selfieUrl"`
}

type syncResponse struct {
	SyncedCount int                       `json:"syncedCount"`
	Errors      []service.LegacyItemError `json:"errors"`
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workerID := requestcontext.WorkerID(ctx)

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Records == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "records is required"))
		return
	}

	records := make([]service.LegacyRecord, 0, len(req.Records))
	var itemErrors []service.LegacyItemError
	for _, rec := range req.Records {
		jobID, err := domain.ParseJobID(rec.JobID)
		if err != nil {
			itemErrors = append(itemErrors, service.LegacyItemError{JobID: rec.JobID, Reason: "invalid job id"})
			continue
		}
		records = append(records, service.LegacyRecord{
			JobID:     jobID,
			Timestamp: time.UnixMilli(rec.Timestamp).UTC(),
			Location:  rec.Location,
			SelfieURL: rec.SelfieURL,
		})
	}

	synced, serviceErrors := h.attendance.SyncLegacy(ctx, workerID, records)
	itemErrors = append(itemErrors, serviceErrors...)
	if itemErrors == nil {
		itemErrors = []service.LegacyItemError{}
	}
	httputil.WriteJSON(w, http.StatusOK, syncResponse{SyncedCount: synced, Errors: itemErrors})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workerID := requestcontext.WorkerID(ctx)

	jobID, err := domain.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid jobId"))
		return
	}
	if err := h.attendance.Delete(ctx, workerID, jobID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
