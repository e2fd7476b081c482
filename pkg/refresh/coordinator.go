package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Refresher performs the actual renewal against the auth server and returns
// the fresh session. Implementations must map the server's terminal
// rejections to ErrReplayed (replay specifically) or ErrSessionRevoked
// (unknown/expired); any other error is treated as transient.
type Refresher interface {
	Refresh(ctx context.Context) (Session, error)
}

// Config configures a Coordinator. Zero values get sensible defaults.
type Config struct {
	Store     Store
	Refresher Refresher
	// Namespace prefixes the shared keys so several apps can share a store.
	Namespace string
	// LeaseTTL bounds how long a crashed holder can block others.
	LeaseTTL time.Duration
	// PollInterval and PollTimeout govern waiting on another client's refresh.
	PollInterval time.Duration
	PollTimeout  time.Duration
	// ExpiryMargin renews tokens this long before they actually expire.
	ExpiryMargin time.Duration
	// RetryAttempts bounds transient-failure retries during a held lease.
	RetryAttempts int
	Logger        *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = "slotbook"
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 5 * time.Second
	}
	if c.ExpiryMargin <= 0 {
		c.ExpiryMargin = 30 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

type inflight struct {
	done   chan struct{}
	result Result
}

// Coordinator serializes refreshes within this client and cooperates with
// other clients through the shared store. Safe for concurrent use.
type Coordinator struct {
	cfg   Config
	lease *Lease

	mu       sync.Mutex
	state    State
	session  Session
	inFlight *inflight
}

// NewCoordinator creates a coordinator over the given store and refresher.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	cfg = cfg.withDefaults()
	if cfg.Store == nil {
		return nil, errors.New("refresh: Store is required")
	}
	if cfg.Refresher == nil {
		return nil, errors.New("refresh: Refresher is required")
	}

	lease, err := NewLease(cfg.Store, cfg.Namespace+":refresh-lease", cfg.LeaseTTL)
	if err != nil {
		return nil, err
	}

	return &Coordinator{cfg: cfg, lease: lease, state: StateUnknown}, nil
}

func (c *Coordinator) sessionKey() string {
	return c.cfg.Namespace + ":session"
}

// State returns the coordinator's current view of the session.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AccessToken returns the held token if it is still usable.
func (c *Coordinator) AccessToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateValid && c.session.Usable(time.Now(), c.cfg.ExpiryMargin) {
		return c.session.AccessToken, true
	}
	return "", false
}

// EnsureFresh returns a usable session, refreshing if needed. Concurrent
// callers within this client collapse into one underlying attempt; across
// clients the lease picks one refresher and everyone else polls.
//
// TimedOut results leave the state retryable; Failed means the session
// family is gone and the user must log in again.
func (c *Coordinator) EnsureFresh(ctx context.Context) Result {
	c.mu.Lock()
	if c.state == StateValid && c.session.Usable(time.Now(), c.cfg.ExpiryMargin) {
		result := Result{Outcome: Ready, Session: c.session}
		c.mu.Unlock()
		return result
	}
	if c.state == StateInvalid {
		c.mu.Unlock()
		return Result{Outcome: Failed, Err: ErrSessionRevoked}
	}

	if fl := c.inFlight; fl != nil {
		c.mu.Unlock()
		select {
		case <-fl.done:
			return fl.result
		case <-ctx.Done():
			return Result{Outcome: TimedOut, Err: ctx.Err()}
		}
	}

	fl := &inflight{done: make(chan struct{})}
	c.inFlight = fl
	c.state = StateRefreshing
	c.mu.Unlock()

	result := c.renew(ctx)

	c.mu.Lock()
	switch result.Outcome {
	case Ready:
		c.state = StateValid
		c.session = result.Session
	case Failed:
		c.state = StateInvalid
	case TimedOut:
		c.state = StateUnknown
	}
	fl.result = result
	c.inFlight = nil
	c.mu.Unlock()

	close(fl.done)
	return result
}

// renew obtains a fresh session: adopt a published one, or win the lease and
// refresh, or poll while another client does.
func (c *Coordinator) renew(ctx context.Context) Result {
	if session, ok := c.publishedSession(ctx); ok {
		return Result{Outcome: Ready, Session: session}
	}

	acquired, err := c.lease.TryAcquire(ctx)
	if err != nil {
		c.cfg.Logger.Warn("lease acquisition failed", slog.Any("error", err))
		return Result{Outcome: TimedOut, Err: err}
	}

	if !acquired {
		// Someone else is refreshing; wait for their result.
		return c.Poll(ctx)
	}

	defer c.lease.Release(ctx)
	return c.refreshWithRetry(ctx)
}

// refreshWithRetry drives the server call under a held lease.
func (c *Coordinator) refreshWithRetry(ctx context.Context) Result {
	var lastErr error
	backoff := 250 * time.Millisecond

	for attempt := 0; attempt < c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return Result{Outcome: TimedOut, Err: ctx.Err()}
			}
		}

		session, err := c.cfg.Refresher.Refresh(ctx)
		if err == nil {
			c.publish(ctx, session)
			return Result{Outcome: Ready, Session: session}
		}

		if errors.Is(err, ErrReplayed) {
			// The lease is advisory, so another client may have rotated the
			// same id despite it. If they published a session this was a
			// benign race loss; adopt theirs.
			if session, ok := c.publishedSession(ctx); ok {
				c.cfg.Logger.Info("lost refresh race, adopting published session")
				return Result{Outcome: Ready, Session: session}
			}
			return Result{Outcome: Failed, Err: err}
		}
		if errors.Is(err, ErrSessionRevoked) {
			return Result{Outcome: Failed, Err: err}
		}

		lastErr = err
		c.cfg.Logger.Warn("refresh attempt failed",
			slog.Int("attempt", attempt+1), slog.Any("error", err))
	}

	return Result{Outcome: TimedOut, Err: lastErr}
}

// Poll waits for another client to publish a usable session. Returns Ready
// as soon as one appears, TimedOut when the budget runs out.
func (c *Coordinator) Poll(ctx context.Context) Result {
	deadline := time.NewTimer(c.cfg.PollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if session, ok := c.publishedSession(ctx); ok {
			return Result{Outcome: Ready, Session: session}
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			return Result{Outcome: TimedOut}
		case <-ctx.Done():
			return Result{Outcome: TimedOut, Err: ctx.Err()}
		}
	}
}

// SetSession seeds the coordinator after a fresh login and shares the
// session with other clients through the store.
func (c *Coordinator) SetSession(ctx context.Context, session Session) {
	c.mu.Lock()
	c.state = StateValid
	c.session = session
	c.mu.Unlock()
	c.publish(ctx, session)
}

// Invalidate drops the held session, e.g. after an explicit logout.
func (c *Coordinator) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.state = StateInvalid
	c.session = Session{}
	c.mu.Unlock()
	_ = c.cfg.Store.Delete(ctx, c.sessionKey())
}

func (c *Coordinator) publish(ctx context.Context, session Session) {
	payload, err := json.Marshal(session)
	if err != nil {
		return
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if err := c.cfg.Store.Set(ctx, c.sessionKey(), string(payload), ttl); err != nil {
		c.cfg.Logger.Warn("failed to publish session", slog.Any("error", err))
	}
}

func (c *Coordinator) publishedSession(ctx context.Context) (Session, bool) {
	raw, ok, err := c.cfg.Store.Get(ctx, c.sessionKey())
	if err != nil || !ok {
		return Session{}, false
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return Session{}, false
	}
	if !session.Usable(time.Now(), c.cfg.ExpiryMargin) {
		return Session{}, false
	}
	return session, true
}
