// Package models defines fraud signal records and analysis results.
package models

import (
	"time"

	"haazri/internal/geo"
	"haazri/pkg/domain"
)

// Action names the user activity a signal was recorded against.
type Action string

const (
	ActionCheckIn Action = "check_in"
	ActionBid     Action = "bid"
	ActionPayout  Action = "payout"
)

// Signal is an immutable, append-only fraud record. A signal is written for
// every analyzed check-in, including zero-risk ones: its Location seeds the
// speed comparison for the user's next check-in.
type Signal struct {
	ID        domain.SignalID
	UserID    domain.WorkerID
	Action    Action
	RiskScore int
	Reasons   []string

	// Location is the coordinate the analyzed action was performed at.
	// Nil when the client submitted no location.
	Location *geo.Point

	// Metadata holds arbitrary context beyond the coordinate.
	Metadata map[string]any

	CreatedAt time.Time
}

// Analysis is the detector's verdict for a single check-in.
type Analysis struct {
	IsFraud   bool
	RiskScore int
	Reasons   []string
}
