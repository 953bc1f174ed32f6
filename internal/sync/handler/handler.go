// Package handler exposes the signed offline sync endpoint.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	devMiddleware "haazri/internal/device/middleware"
	"haazri/internal/platform/middleware"
	"haazri/internal/sync/service"
	"haazri/pkg/domain"
	dErrors "haazri/pkg/domain-errors"
	"haazri/pkg/httputil"
	"haazri/pkg/requestcontext"
)

// Reconciler processes one signed batch and enrolls devices into the
// per-device secret store.
type Reconciler interface {
	ProcessBatch(ctx context.Context, workerID domain.WorkerID, batch []service.BatchItem) service.Result
	EnrollDevice(ctx context.Context, workerID domain.WorkerID) (string, error)
}

// Handler handles the v5 sync endpoint.
type Handler struct {
	logger     *slog.Logger
	reconciler Reconciler
	validator  *middleware.TokenValidator
	gate       devMiddleware.Gate
}

func New(reconciler Reconciler, validator *middleware.TokenValidator, gate devMiddleware.Gate, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		reconciler: reconciler,
		validator:  validator,
		gate:       gate,
	}
}

// Register mounts the signed sync route behind worker auth and the device
// gate; the gate also pins the device ID the secret lookup keys off.
func (h *Handler) Register(r chi.Router) {
	sr := chi.NewRouter()
	sr.Use(middleware.RequireWorker(h.validator, h.logger))
	sr.Use(devMiddleware.Evaluate(h.gate))
	sr.Post("/sync", h.handleSync)
	sr.Post("/device/secret", h.handleEnroll)

	r.Mount("/v5", sr)
}

type syncRequest struct {
	AttendanceBatch []service.BatchItem `json:"attendanceBatch"`
}

type syncResponse struct {
	Success    bool           `json:"success"`
	Data       service.Result `json:"data"`
	ServerTime int64          `json:"serverTime"` // epoch milliseconds
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workerID := requestcontext.WorkerID(ctx)

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid batch format"))
		return
	}
	if req.AttendanceBatch == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "attendanceBatch is required"))
		return
	}

	result := h.reconciler.ProcessBatch(ctx, workerID, req.AttendanceBatch)
	httputil.WriteJSON(w, http.StatusOK, syncResponse{
		Success:    true,
		Data:       result,
		ServerTime: requestcontext.Now(ctx).UnixMilli(),
	})
}

type enrollResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Secret string `json:"secret"`
	} `json:"data"`
	ServerTime int64 `json:"serverTime"` // epoch milliseconds
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	secret, err := h.reconciler.EnrollDevice(ctx, requestcontext.WorkerID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := enrollResponse{Success: true, ServerTime: requestcontext.Now(ctx).UnixMilli()}
	resp.Data.Secret = secret
	httputil.WriteJSON(w, http.StatusOK, resp)
}
