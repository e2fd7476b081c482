package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkaraba/slotbook/internal/models"
	"github.com/tkaraba/slotbook/internal/repositories"
)

func TestRotate_Lifecycle(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := repositories.NewRefreshTokenRepository(db.DB)

	email, password := TestUser("rotate")
	user, err := SeedUser(ctx, db.Pool, email, password, true)
	require.NoError(t, err)

	familyExp := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, SeedRefreshToken(ctx, db.Pool, "first-id", user.ID, familyExp))

	// First rotation succeeds and carries the family expiry forward unchanged.
	result, err := repo.Rotate(ctx, "first-id", "second-id", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.RotationOK, result.Kind)
	assert.Equal(t, "second-id", result.NewID)
	assert.Equal(t, user.ID, result.UserID)
	assert.True(t, result.ExpiresAt.Equal(familyExp), "rotation must not extend the family expiry")

	successor, err := repo.GetByID(ctx, "second-id")
	require.NoError(t, err)
	assert.False(t, successor.Revoked)
	assert.True(t, successor.ExpiresAt.Equal(familyExp))

	// Presenting the rotated-away id again is a replay.
	result, err = repo.Rotate(ctx, "first-id", "third-id", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.RotationReplayed, result.Kind)
	assert.Equal(t, user.ID, result.UserID, "replay must identify the user for family revocation")

	// The replay attempt must not have minted its candidate id.
	_, err = repo.GetByID(ctx, "third-id")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRotate_UnknownAndExpired(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := repositories.NewRefreshTokenRepository(db.DB)

	result, err := repo.Rotate(ctx, "never-issued", "new-id", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.RotationUnknown, result.Kind)

	email, password := TestUser("expired")
	user, err := SeedUser(ctx, db.Pool, email, password, true)
	require.NoError(t, err)
	require.NoError(t, SeedRefreshToken(ctx, db.Pool, "old-id", user.ID, time.Now().Add(-time.Hour)))

	result, err = repo.Rotate(ctx, "old-id", "new-id", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.RotationExpired, result.Kind)

	// An expired id stays usable as evidence but never rotates; the
	// candidate successor must not exist.
	_, err = repo.GetByID(ctx, "new-id")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRotate_ConcurrentSameID(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := repositories.NewRefreshTokenRepository(db.DB)

	email, password := TestUser("race")
	user, err := SeedUser(ctx, db.Pool, email, password, true)
	require.NoError(t, err)

	familyExp := time.Now().Add(30 * 24 * time.Hour)
	require.NoError(t, SeedRefreshToken(ctx, db.Pool, "contested-id", user.ID, familyExp))

	// Two clients race to rotate the same id. The row lock serializes them:
	// exactly one wins, the other observes the revocation and is classified
	// as a replay.
	start := make(chan struct{})
	results := make([]models.RotationResult, 2)
	errs := make([]error, 2)
	newIDs := []string{"winner-candidate", "loser-candidate"}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = repo.Rotate(ctx, "contested-id", newIDs[i], time.Now())
		}(i)
	}
	close(start)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	kinds := map[models.RotationKind]int{}
	for _, r := range results {
		kinds[r.Kind]++
	}
	assert.Equal(t, 1, kinds[models.RotationOK], "exactly one rotation may win")
	assert.Equal(t, 1, kinds[models.RotationReplayed], "the loser must be classified as a replay")

	// Only the winner's successor row exists.
	var successors int
	err = db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM refresh_tokens
		WHERE user_id = $1 AND NOT revoked
	`, user.ID).Scan(&successors)
	require.NoError(t, err)
	assert.Equal(t, 1, successors)
}

func TestRevokeAllForUser(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := repositories.NewRefreshTokenRepository(db.DB)

	email, password := TestUser("revoke-all")
	user, err := SeedUser(ctx, db.Pool, email, password, true)
	require.NoError(t, err)

	otherEmail, otherPassword := TestUser("bystander")
	other, err := SeedUser(ctx, db.Pool, otherEmail, otherPassword, true)
	require.NoError(t, err)

	exp := time.Now().Add(time.Hour)
	require.NoError(t, SeedRefreshToken(ctx, db.Pool, "session-1", user.ID, exp))
	require.NoError(t, SeedRefreshToken(ctx, db.Pool, "session-2", user.ID, exp))
	require.NoError(t, SeedRefreshToken(ctx, db.Pool, "other-session", other.ID, exp))

	revoked, err := repo.RevokeAllForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), revoked)

	count, err := repo.CountActiveForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Another user's sessions are untouched.
	count, err = repo.CountActiveForUser(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Revoking again is a no-op, not an error.
	revoked, err = repo.RevokeAllForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, revoked)
}

func TestDeleteExpired(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := repositories.NewRefreshTokenRepository(db.DB)

	email, password := TestUser("sweep")
	user, err := SeedUser(ctx, db.Pool, email, password, true)
	require.NoError(t, err)

	require.NoError(t, SeedRefreshToken(ctx, db.Pool, "live-id", user.ID, time.Now().Add(time.Hour)))
	require.NoError(t, SeedRefreshToken(ctx, db.Pool, "dead-id", user.ID, time.Now().Add(-time.Minute)))

	deleted, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetByID(ctx, "dead-id")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = repo.GetByID(ctx, "live-id")
	assert.NoError(t, err)

	// The sweep is idempotent.
	deleted, err = repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
