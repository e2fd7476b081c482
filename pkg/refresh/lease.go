package refresh

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Lease is a best-effort mutual exclusion over a non-atomic Store. Without
// compare-and-swap two writers can both think they won for a moment; the
// write-then-settle-then-read-back sequence makes that window small, and the
// TTL guarantees a crashed holder cannot block others forever. Callers must
// treat the lease as advisory and stay correct when it double-grants.
type Lease struct {
	store  Store
	key    string
	owner  string
	ttl    time.Duration
	settle time.Duration
}

// NewLease creates a lease with a fresh random owner id.
func NewLease(store Store, key string, ttl time.Duration) (*Lease, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate lease owner id: %w", err)
	}

	return &Lease{
		store:  store,
		key:    key,
		owner:  hex.EncodeToString(buf),
		ttl:    ttl,
		settle: 30 * time.Millisecond,
	}, nil
}

// TryAcquire attempts to take the lease. Returns false when another holder
// is present or when the read-back shows this writer lost the race.
func (l *Lease) TryAcquire(ctx context.Context) (bool, error) {
	current, ok, err := l.store.Get(ctx, l.key)
	if err != nil {
		return false, fmt.Errorf("failed to read lease: %w", err)
	}
	if ok && current != l.owner {
		return false, nil
	}

	if err := l.store.Set(ctx, l.key, l.owner, l.ttl); err != nil {
		return false, fmt.Errorf("failed to write lease: %w", err)
	}

	// Let a concurrent writer's Set land before verifying ownership.
	select {
	case <-time.After(l.settle):
	case <-ctx.Done():
		return false, ctx.Err()
	}

	current, ok, err = l.store.Get(ctx, l.key)
	if err != nil {
		return false, fmt.Errorf("failed to verify lease: %w", err)
	}
	return ok && current == l.owner, nil
}

// Release gives the lease up if still held. Losing the race to release is
// harmless; the TTL cleans up whatever remains.
func (l *Lease) Release(ctx context.Context) {
	current, ok, err := l.store.Get(ctx, l.key)
	if err != nil || !ok || current != l.owner {
		return
	}
	_ = l.store.Delete(ctx, l.key)
}
