// Package refresh coordinates access-token renewal across multiple client
// instances (browser tabs, worker processes) that share one refresh session.
//
// The server rotates the refresh id on every renewal and treats a second use
// of a rotated-away id as theft, revoking the whole session family. Two
// clients refreshing concurrently would therefore log everyone out. The
// coordinator prevents that: one client acquires a lease over a shared
// store, performs the refresh and publishes the result; the others poll the
// store and adopt the published session.
//
// The shared store is assumed to be non-atomic (localStorage-like): no
// compare-and-swap, only get/set/delete. The lease protocol compensates with
// write-then-read-back verification and TTL self-expiry, which shrinks the
// race window instead of eliminating it. The server's row lock is the real
// arbiter; a client that loses that race observes a replay rejection and
// recovers from the store rather than treating it as theft.
package refresh

import (
	"errors"
	"time"
)

// State is the coordinator's view of the session.
type State int

const (
	// StateUnknown is the initial state before any refresh attempt.
	StateUnknown State = iota
	// StateRefreshing means a renewal is in flight (locally or in another client).
	StateRefreshing
	// StateValid means a usable access token is held.
	StateValid
	// StateInvalid means the session is gone and a new login is required.
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateRefreshing:
		return "refreshing"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Outcome classifies the result of waiting for a session.
type Outcome int

const (
	// Ready means a valid session is available.
	Ready Outcome = iota
	// TimedOut means no session appeared within the wait budget; the caller
	// may retry, nothing is known to be wrong.
	TimedOut
	// Failed means the session is conclusively unusable and a new login is
	// required.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed_out"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is a usable access credential published through the shared store.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Usable reports whether the session's token is still worth presenting,
// keeping a safety margin so a token does not expire mid-request.
func (s Session) Usable(now time.Time, margin time.Duration) bool {
	return s.AccessToken != "" && now.Add(margin).Before(s.ExpiresAt)
}

// Result carries the outcome of an EnsureFresh or Poll call.
type Result struct {
	Outcome Outcome
	Session Session
	Err     error
}

// Sentinel errors the Refresher implementation reports. The coordinator's
// recovery depends on which one it sees.
var (
	// ErrSessionRevoked covers unknown, expired and replayed rejections: the
	// presented refresh id will never rotate successfully again.
	ErrSessionRevoked = errors.New("refresh session revoked")
	// ErrReplayed is the replay rejection specifically. When another client
	// published a fresh session concurrently this was a benign race loss,
	// otherwise the family was revoked for real.
	ErrReplayed = errors.New("refresh token already used")
)
