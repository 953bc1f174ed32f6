// Package models defines the hash-chained audit entry.
package models

import (
	"time"

	"haazri/pkg/domain"
)

// GenesisDigest is the fixed sentinel used as the previous digest of the
// chain's first entry.
const GenesisDigest = "GENESIS_HASH_0000"

// Entry is one link of the append-only audit chain. Entries are immutable;
// Digest commits to every field plus the previous entry's digest, so any
// after-the-fact edit breaks verification from that point forward.
type Entry struct {
	// Seq is the storage-assigned position in the chain, starting at 1.
	Seq int64

	Action string

	// ActorID is nil for system-initiated actions.
	ActorID *domain.WorkerID

	// Details is the exact JSON payload that was digested. Stored verbatim
	// (not re-encoded) so verification recomputes over identical bytes.
	Details string

	IP         string
	PrevDigest string
	Digest     string
	Timestamp  time.Time
}

// ActorField renders the actor the way it enters the digest input: the
// worker ID, or "system" when no user initiated the action.
func (e *Entry) ActorField() string {
	if e.ActorID == nil {
		return "system"
	}
	return e.ActorID.String()
}
