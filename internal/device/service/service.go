// Package service implements the device trust gate.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mssola/useragent"

	"haazri/internal/device/models"
	"haazri/internal/platform/logger"
	"haazri/internal/platform/metrics"
	"haazri/pkg/domain"
	dErrors "haazri/pkg/domain-errors"
	"haazri/pkg/requestcontext"
)

// Store is the persistence surface the gate needs.
type Store interface {
	Find(ctx context.Context, userID domain.WorkerID, deviceID string) (*models.Trust, error)
	Create(ctx context.Context, trust *models.Trust) error
	TouchLastSeen(ctx context.Context, userID domain.WorkerID, deviceID string, at time.Time) error
}

// Gate evaluates device trust before sensitive operations.
type Gate struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(store Store, log *slog.Logger, m *metrics.Metrics) *Gate {
	return &Gate{store: store, logger: log, metrics: m}
}

// Evaluate looks up (or lazily registers) the trust record for the device in
// the request context and returns the verdict downstream components consume.
//
// A blocked device yields a forbidden domain error; that is the only error
// the gate returns. Storage failures are fail-open: the request proceeds
// without trust info, logged as degradation, mirroring the stance that a
// broken secondary control must not take down check-ins.
func (g *Gate) Evaluate(ctx context.Context, userID domain.WorkerID) (requestcontext.DeviceTrust, error) {
	deviceID := requestcontext.DeviceID(ctx)
	if deviceID == "" {
		deviceID = models.UnknownDeviceID
	}
	now := requestcontext.Now(ctx)

	trust, err := g.store.Find(ctx, userID, deviceID)
	if err != nil {
		return g.degrade(ctx, deviceID, "device trust lookup failed", err)
	}

	if trust == nil {
		trust = &models.Trust{
			UserID:      userID,
			DeviceID:    deviceID,
			Fingerprint: fingerprintFrom(ctx),
			TrustScore:  models.InitialTrustScore,
			LastSeen:    now,
			CreatedAt:   now,
		}
		if err := g.store.Create(ctx, trust); err != nil {
			return g.degrade(ctx, deviceID, "device trust registration failed", err)
		}
	} else {
		if err := g.store.TouchLastSeen(ctx, userID, deviceID, now); err != nil {
			// Stale last_seen is tolerable; the verdict below still stands.
			logger.Degraded(g.logger, "device last_seen update failed",
				"error", err,
				"device_id", deviceID,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}

	verdict := requestcontext.DeviceTrust{
		DeviceID:   trust.DeviceID,
		TrustScore: trust.TrustScore,
		Blocked:    trust.Blocked,
	}
	if trust.Blocked {
		return verdict, dErrors.New(dErrors.CodeForbidden, "device blocked due to suspicious activity")
	}
	return verdict, nil
}

func (g *Gate) degrade(ctx context.Context, deviceID, msg string, err error) (requestcontext.DeviceTrust, error) {
	logger.Degraded(g.logger, msg,
		"error", err,
		"device_id", deviceID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if g.metrics != nil {
		g.metrics.ControlDegraded.WithLabelValues("device_gate").Inc()
	}
	return requestcontext.DeviceTrust{DeviceID: deviceID, TrustScore: 0, Blocked: false}, nil
}

func fingerprintFrom(ctx context.Context) models.Fingerprint {
	rawUA := requestcontext.UserAgent(ctx)
	fp := models.Fingerprint{
		UserAgent: rawUA,
		IP:        requestcontext.ClientIP(ctx),
	}
	if rawUA != "" {
		ua := useragent.New(rawUA)
		fp.OS = ua.OSInfo().Name
		fp.Browser, _ = ua.Browser()
	}
	return fp
}
