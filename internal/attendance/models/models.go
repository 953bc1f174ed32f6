// Package models defines attendance records.
package models

import (
	"time"

	"haazri/internal/geo"
	"haazri/pkg/domain"
)

// Status is the attendance status claimed by the worker.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusHalfDay Status = "half_day"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusHalfDay:
		return true
	}
	return false
}

// Method records how an attendance claim was verified.
type Method string

const (
	// MethodManual means no location or selfie evidence was attached.
	MethodManual Method = "manual"
	// MethodGeoFace means both location and selfie were supplied live.
	MethodGeoFace Method = "geo_face"
	// MethodOfflineSync means the record arrived via offline reconciliation.
	MethodOfflineSync Method = "offline_sync"
)

// Record is a single attendance claim. Never mutated after creation except
// by administrative override; retained indefinitely for payroll.
type Record struct {
	ID       domain.AttendanceID
	WorkerID domain.WorkerID
	JobID    domain.JobID

	// Date is the authoritative event time. For offline records this is the
	// client's original timestamp, not server receipt time.
	Date        time.Time
	CheckInTime time.Time

	Location  *geo.Point
	SelfieURL string

	Status             Status
	VerificationMethod Method
	IsSynced           bool

	CreatedAt time.Time
}
