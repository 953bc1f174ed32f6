// Package handler exposes the audit chain maintenance endpoint.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"haazri/internal/audit/service"
	"haazri/pkg/httputil"
	"haazri/pkg/requestcontext"
)

// Verifier walks the audit chain and reports the first inconsistency.
type Verifier interface {
	Verify(ctx context.Context) (int, error)
}

// Handler handles audit maintenance endpoints. Mount it on an internal
// listener or behind operator auth; it exposes chain integrity, not entries.
type Handler struct {
	logger *slog.Logger
	audit  Verifier
}

func New(audit Verifier, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, audit: audit}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/internal/audit/verify", h.handleVerify)
}

type verifyResponse struct {
	Valid   bool   `json:"valid"`
	Entries int    `json:"entries"`
	Seq     int64  `json:"seq,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.audit.Verify(ctx)
	if err != nil {
		var verifyErr *service.VerifyError
		if errors.As(err, &verifyErr) {
			h.logger.ErrorContext(ctx, "audit chain verification failed",
				"seq", verifyErr.Seq,
				"reason", verifyErr.Reason,
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteJSON(w, http.StatusConflict, verifyResponse{
				Valid:   false,
				Entries: entries,
				Seq:     verifyErr.Seq,
				Reason:  verifyErr.Reason,
			})
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verifyResponse{Valid: true, Entries: entries})
}
