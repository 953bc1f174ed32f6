// Package geo computes great-circle distances and geofence verdicts.
// Everything here is pure compute; no I/O.
package geo

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371

// DefaultFenceRadiusKm applies when a job site has no configured radius.
const DefaultFenceRadiusKm = 0.5

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Verdict is the outcome of a fence evaluation.
type Verdict int

const (
	// Inside means the candidate is within the fence radius.
	Inside Verdict = iota
	// Outside means the candidate is evaluable and beyond the radius.
	Outside
	// Skipped means the check could not run because a coordinate was
	// missing. Distinct from Outside: missing data must not block a
	// legitimate check-in when a job has no registered coordinates.
	Skipped
)

func (v Verdict) String() string {
	switch v {
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// DistanceKm returns the haversine great-circle distance between two points.
func DistanceKm(a, b Point) float64 {
	dLat := rad(b.Lat - a.Lat)
	dLng := rad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

func rad(deg float64) float64 { return deg * (math.Pi / 180) }

// Evaluation is a fence verdict plus the computed distance when evaluable.
type Evaluation struct {
	Verdict    Verdict
	DistanceKm float64
}

// Evaluate checks a candidate point against a site fence. Either point being
// nil yields Skipped. A non-positive radius falls back to the default.
func Evaluate(candidate, site *Point, radiusKm float64) Evaluation {
	if candidate == nil || site == nil {
		return Evaluation{Verdict: Skipped}
	}
	if radiusKm <= 0 {
		radiusKm = DefaultFenceRadiusKm
	}

	d := DistanceKm(*candidate, *site)
	if d > radiusKm {
		return Evaluation{Verdict: Outside, DistanceKm: d}
	}
	return Evaluation{Verdict: Inside, DistanceKm: d}
}
