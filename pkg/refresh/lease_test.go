package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLease_AcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	lease, err := NewLease(store, "lease", time.Second)
	require.NoError(t, err)

	acquired, err := lease.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Reacquiring our own lease succeeds (refresh of the TTL).
	acquired, err = lease.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)

	lease.Release(ctx)
	_, ok, _ := store.Get(ctx, "lease")
	assert.False(t, ok)
}

func TestLease_HeldByAnother(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	first, err := NewLease(store, "lease", time.Second)
	require.NoError(t, err)
	second, err := NewLease(store, "lease", time.Second)
	require.NoError(t, err)

	acquired, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, acquired, "a held lease must not double-grant")
}

func TestLease_TTLExpiryFreesLease(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	crashed, err := NewLease(store, "lease", 30*time.Millisecond)
	require.NoError(t, err)
	acquired, err := crashed.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	// The holder "crashes" without releasing; after the TTL another
	// client can take over.
	time.Sleep(60 * time.Millisecond)

	next, err := NewLease(store, "lease", time.Second)
	require.NoError(t, err)
	acquired, err = next.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestLease_ConcurrentContention(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	const contenders = 4
	winners := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < contenders; i++ {
		lease, err := NewLease(store, "lease", time.Second)
		require.NoError(t, err)

		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired, err := lease.TryAcquire(ctx)
			if err == nil && acquired {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, winners, 1, "write-then-read-back must grant at most one winner")
}

func TestLease_ReleaseDoesNotStealFromNewHolder(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	old, err := NewLease(store, "lease", 30*time.Millisecond)
	require.NoError(t, err)
	acquired, err := old.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(60 * time.Millisecond)

	current, err := NewLease(store, "lease", time.Second)
	require.NoError(t, err)
	acquired, err = current.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	// The expired holder's release must not clobber the new holder.
	old.Release(ctx)
	value, ok, _ := store.Get(ctx, "lease")
	assert.True(t, ok)
	assert.NotEmpty(t, value)
}
