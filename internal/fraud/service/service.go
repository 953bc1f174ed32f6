// Package service implements the anomaly detector for check-in fraud.
//
// The detector compares a check-in against exactly one prior event: the
// user's most recent check_in signal that carries a coordinate. Cost per
// check-in is therefore bounded regardless of history length.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"haazri/internal/fraud/models"
	"haazri/internal/geo"
	jobModel "haazri/internal/job/models"
	"haazri/internal/platform/logger"
	"haazri/pkg/domain"
	"haazri/pkg/requestcontext"
)

const (
	// fenceRiskWeight is added when the check-in lands outside the job fence.
	fenceRiskWeight = 80
	// speedRiskWeight is added when implied travel speed is impossible.
	speedRiskWeight = 100
	// fraudThreshold is the score at or above which a check-in is flagged.
	fraudThreshold = 50

	// maxPlausibleSpeedKmh separates real travel from spoofed jumps.
	maxPlausibleSpeedKmh = 100.0
	// jitterDistanceKm filters GPS drift: tiny displacements over tiny time
	// deltas produce huge naive speeds but move the user nowhere.
	jitterDistanceKm = 1.0
)

// Store is the subset of the fraud store the analyzer reads.
type Store interface {
	LatestCheckIn(ctx context.Context, userID domain.WorkerID) (*models.Signal, error)
}

// Outcome separates the business verdict from control-plane health.
// Degraded means the prior-signal lookup failed and the speed check could
// not run; the check-in still proceeds (fail-open) but the gap is visible
// to callers, logs, and metrics.
type Outcome struct {
	Analysis models.Analysis
	Degraded bool
}

// Analyzer flags physically implausible movement between check-ins.
type Analyzer struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, log *slog.Logger) *Analyzer {
	return &Analyzer{store: store, logger: log}
}

// AnalyzeCheckIn scores a candidate check-in. Pure with respect to storage:
// it reads the latest prior signal but persists nothing; the caller writes
// the resulting Signal so write ordering stays under the orchestrator's
// control.
//
// fenceRadiusKm is the effective radius the geofence stage applied to this
// job, so both stages agree on what "outside" means.
func (a *Analyzer) AnalyzeCheckIn(ctx context.Context, userID domain.WorkerID, job *jobModel.Job, candidate *geo.Point, fenceRadiusKm float64) Outcome {
	now := requestcontext.Now(ctx)

	var (
		score   int
		reasons []string
	)

	ev := geo.Evaluate(candidate, job.Site, fenceRadiusKm)
	if ev.Verdict == geo.Outside {
		score += fenceRiskWeight
		reasons = append(reasons, fmt.Sprintf("check-in %.1fkm away from site", ev.DistanceKm))
	}

	degraded := false
	if candidate != nil {
		prior, err := a.store.LatestCheckIn(ctx, userID)
		if err != nil {
			// Fail-open: a broken lookup must not block the check-in flow.
			logger.Degraded(a.logger, "fraud prior-signal lookup failed",
				"error", err,
				"user_id", userID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
			degraded = true
		} else if prior != nil && prior.Location != nil {
			elapsedMinutes := now.Sub(prior.CreatedAt).Minutes()
			distanceKm := geo.DistanceKm(*candidate, *prior.Location)
			speedKmh := impliedSpeedKmh(distanceKm, elapsedMinutes)

			if abs(speedKmh) > maxPlausibleSpeedKmh && distanceKm > jitterDistanceKm {
				score += speedRiskWeight
				reasons = append(reasons, fmt.Sprintf(
					"speed fraud: %.0f km/h detected (moved %.1fkm in %.1f mins)",
					speedKmh, distanceKm, elapsedMinutes))
			}
		}
	}

	return Outcome{
		Analysis: models.Analysis{
			IsFraud:   score >= fraudThreshold,
			RiskScore: score,
			Reasons:   reasons,
		},
		Degraded: degraded,
	}
}

// NewSignal builds the signal that records this analysis. The candidate
// coordinate rides along even at zero risk so it seeds the next comparison;
// metadata carries the surrounding request context (job, device).
func NewSignal(userID domain.WorkerID, analysis models.Analysis, location *geo.Point, metadata map[string]any, at time.Time) *models.Signal {
	return &models.Signal{
		ID:        domain.NewSignalID(),
		UserID:    userID,
		Action:    models.ActionCheckIn,
		RiskScore: analysis.RiskScore,
		Reasons:   analysis.Reasons,
		Location:  location,
		Metadata:  metadata,
		CreatedAt: at,
	}
}

func impliedSpeedKmh(distanceKm, elapsedMinutes float64) float64 {
	if elapsedMinutes == 0 {
		// Same-instant events: treat any real displacement as infinite speed,
		// zero displacement as stationary.
		if distanceKm > 0 {
			return maxPlausibleSpeedKmh * 1000
		}
		return 0
	}
	return (distanceKm / elapsedMinutes) * 60
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
