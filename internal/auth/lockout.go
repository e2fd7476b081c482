package auth

import (
	"time"
)

// LockoutPolicy is pure decision logic for brute-force lockout. Given the
// number of consecutive failed attempts it computes whether the account
// should be locked and for how long. Exponential backoff, capped.
type LockoutPolicy struct {
	Threshold int           // failures at which locking starts
	Cap       time.Duration // upper bound on any single lock window
}

// DefaultLockoutPolicy returns the standard policy: lock from the fifth
// failure, backoff 2^(failures-threshold) minutes, capped at one hour.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold: 5,
		Cap:       60 * time.Minute,
	}
}

// LockDuration returns the lock window for the given consecutive failure
// count, or zero when the count is below the threshold.
func (p LockoutPolicy) LockDuration(failures int) time.Duration {
	if failures < p.Threshold {
		return 0
	}

	exp := failures - p.Threshold
	// 2^exp minutes overflows quickly; anything past the cap is the cap.
	if exp > 20 {
		return p.Cap
	}

	d := time.Duration(1<<uint(exp)) * time.Minute
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// NextLockedUntil computes the lock expiry after a failure, or nil when the
// failure count has not reached the threshold.
func (p LockoutPolicy) NextLockedUntil(failures int, now time.Time) *time.Time {
	d := p.LockDuration(failures)
	if d == 0 {
		return nil
	}
	until := now.Add(d)
	return &until
}
