package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login outcomes
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrEmailNotVerified   = errors.New("email address not verified")
	ErrInactiveAccount    = errors.New("account is not active")
	ErrWeakPassword       = errors.New("password does not meet strength requirements")
	ErrEmailExists        = errors.New("email already registered")

	// Refresh rejection kinds. These map 1:1 onto RotationKind; they exist
	// as errors so service callers can use errors.Is at the HTTP boundary.
	ErrRefreshUnknown  = errors.New("refresh token unknown")
	ErrRefreshExpired  = errors.New("refresh token expired")
	ErrRefreshReplayed = errors.New("refresh token already rotated")
)

// AccountLockedError carries the lock expiry so callers can surface a
// human-readable retry time. errors.Is(err, ErrAccountLocked) matches.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account is temporarily locked until %s", e.Until.Format(time.RFC3339))
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}
