// Package models defines per-(user, device) trust records.
package models

import (
	"time"

	"haazri/pkg/domain"
)

// UnknownDeviceID is used when the client supplies no device identifier.
// Absent header is not a hard failure; the unknown device just accrues its
// own trust record.
const UnknownDeviceID = "unknown_device"

// InitialTrustScore is assigned on first sighting of a device. New devices
// start slightly below the 100 ceiling so a fresh device is distinguishable
// from an established one.
const InitialTrustScore = 90

// Fingerprint captures client attributes observed alongside a device ID.
type Fingerprint struct {
	OS        string
	Browser   string
	UserAgent string
	IP        string
}

// Trust is the per-(user, device) record consulted before sensitive
// operations. Score range is 0-100; Blocked short-circuits requests.
type Trust struct {
	UserID      domain.WorkerID
	DeviceID    string
	Fingerprint Fingerprint
	TrustScore  int
	Blocked     bool
	LastSeen    time.Time
	CreatedAt   time.Time
}
