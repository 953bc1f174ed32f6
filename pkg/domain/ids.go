// Package domain holds typed identifiers shared across modules.
//
// IDs are distinct types over uuid.UUID so a WorkerID can never be passed
// where a JobID is expected. Parse helpers return domain errors so handlers
// can translate them straight to HTTP responses.
package domain

import (
	"github.com/google/uuid"

	dErrors "haazri/pkg/domain-errors"
)

type (
	// WorkerID identifies a worker (the User entity is owned elsewhere).
	WorkerID uuid.UUID
	// JobID identifies a job posting (the Job entity is owned elsewhere).
	JobID uuid.UUID
	// AttendanceID identifies an attendance record.
	AttendanceID uuid.UUID
	// SignalID identifies a fraud signal.
	SignalID uuid.UUID
)

func (id WorkerID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id JobID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id AttendanceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id WorkerID) String() string     { return uuid.UUID(id).String() }
func (id JobID) String() string        { return uuid.UUID(id).String() }
func (id AttendanceID) String() string { return uuid.UUID(id).String() }
func (id SignalID) String() string     { return uuid.UUID(id).String() }

// NewWorkerID returns a fresh random worker ID.
func NewWorkerID() WorkerID { return WorkerID(uuid.New()) }

// NewJobID returns a fresh random job ID.
func NewJobID() JobID { return JobID(uuid.New()) }

// NewAttendanceID returns a fresh random attendance ID.
func NewAttendanceID() AttendanceID { return AttendanceID(uuid.New()) }

// NewSignalID returns a fresh random signal ID.
func NewSignalID() SignalID { return SignalID(uuid.New()) }

// ParseWorkerID parses a worker ID or returns a bad_request domain error.
func ParseWorkerID(s string) (WorkerID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return WorkerID{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid worker id")
	}
	return WorkerID(u), nil
}

// ParseJobID parses a job ID or returns a bad_request domain error.
func ParseJobID(s string) (JobID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return JobID{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid job id")
	}
	return JobID(u), nil
}
