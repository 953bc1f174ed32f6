// Package models defines the Job contract as consumed by the trust engine.
// Job CRUD is owned by the marketplace service; this engine only reads the
// site location and fence radius.
package models

import (
	"haazri/internal/geo"
	"haazri/pkg/domain"
)

// Job is the subset of a job posting the trust engine depends on.
type Job struct {
	ID    domain.JobID
	Title string

	// Site is nil when the posting has no registered coordinates, in which
	// case geofence checks are skipped.
	Site *geo.Point

	// FenceRadiusKm overrides the default fence radius when positive.
	FenceRadiusKm float64
}
