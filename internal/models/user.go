package models

import (
	"time"
)

type User struct {
	ID              string
	Email           string
	PasswordHash    string
	PasswordVersion int // bumped on every password change; embedded in access tokens
	FailedAttempts  int
	LockedUntil     *time.Time // nil when the account is not locked
	EmailVerified   bool
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsLocked reports whether the account lock is still in effect at the given time.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
