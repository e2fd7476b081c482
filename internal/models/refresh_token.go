package models

import (
	"time"
)

// RefreshToken is a persisted refresh record. The ID itself is the opaque
// bearer credential: possession of the id grants exactly one rotation.
type RefreshToken struct {
	ID        string
	UserID    string
	ExpiresAt time.Time // fixed at login, copied forward through every rotation
	Revoked   bool
	CreatedAt time.Time
}

// RotationKind classifies the outcome of a rotation attempt. The reuse
// detector depends on unknown, expired and replayed staying distinct.
type RotationKind int

const (
	RotationOK RotationKind = iota
	RotationUnknown
	RotationExpired
	RotationReplayed
)

func (k RotationKind) String() string {
	switch k {
	case RotationOK:
		return "ok"
	case RotationUnknown:
		return "unknown"
	case RotationExpired:
		return "expired"
	case RotationReplayed:
		return "replayed"
	default:
		return "invalid"
	}
}

// RotationResult is the tagged outcome of exchanging a presented refresh id.
// NewID, UserID and ExpiresAt are only meaningful when Kind == RotationOK,
// except UserID which is also set for RotationReplayed so the reuse detector
// can revoke the whole family.
type RotationResult struct {
	Kind      RotationKind
	NewID     string
	UserID    string
	ExpiresAt time.Time
}
