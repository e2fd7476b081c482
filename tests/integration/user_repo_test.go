package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkaraba/slotbook/internal/models"
	"github.com/tkaraba/slotbook/internal/repositories"
	"github.com/tkaraba/slotbook/pkg/auth"
)

func TestUserRepository_EmailCaseInsensitive(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := repositories.NewUserRepository(db.DB)

	email, password := TestUser("case")
	seeded, err := SeedUser(ctx, db.Pool, email, password, true)
	require.NoError(t, err)

	found, err := repo.GetByEmail(ctx, strings.ToUpper(email))
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, found.ID)

	// The uniqueness constraint is case-insensitive too.
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.User{
		Email:        strings.ToUpper(email),
		PasswordHash: hash,
		Active:       true,
	})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestUserRepository_FailedAttemptCounters(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := repositories.NewUserRepository(db.DB)

	email, password := TestUser("lockout")
	user, err := SeedUser(ctx, db.Pool, email, password, true)
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		count, err := repo.IncrementFailedAttempts(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	until := time.Now().Add(time.Minute)
	require.NoError(t, repo.SetLockedUntil(ctx, user.ID, &until))

	locked, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, locked.IsLocked(time.Now()))
	assert.Equal(t, 3, locked.FailedAttempts)

	require.NoError(t, repo.ResetFailedAttempts(ctx, user.ID))

	reset, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, reset.FailedAttempts)
	assert.Nil(t, reset.LockedUntil)
}

func TestUserRepository_UpdatePasswordBumpsVersion(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := repositories.NewUserRepository(db.DB)

	email, password := TestUser("password")
	user, err := SeedUser(ctx, db.Pool, email, password, true)
	require.NoError(t, err)
	require.Equal(t, 1, user.PasswordVersion)

	newHash, err := auth.HashPassword("AnotherPassword456!")
	require.NoError(t, err)

	updated, err := repo.UpdatePassword(ctx, user.ID, newHash)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.PasswordVersion, "a password change must invalidate outstanding access tokens")
	assert.NoError(t, auth.ComparePassword(updated.PasswordHash, "AnotherPassword456!"))
}
