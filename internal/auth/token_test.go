package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkaraba/slotbook/internal/models"
)

func testUser() *models.User {
	return &models.User{
		ID:              "user-1",
		Email:           "user@example.com",
		PasswordVersion: 3,
		EmailVerified:   true,
		Active:          true,
	}
}

func TestTokenManager_IssueAndParse(t *testing.T) {
	tm := NewTokenManager("test-secret-at-least-16-chars", 15*time.Minute, 7*24*time.Hour)
	user := testUser()

	token, exp, err := tm.IssueAccessToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, 3, claims.Ver)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret-at-least-16-chars", 15*time.Minute, 7*24*time.Hour)
	other := NewTokenManager("another-secret-16-chars-long", 15*time.Minute, 7*24*time.Hour)

	token, _, err := tm.IssueAccessToken(testUser())
	require.NoError(t, err)

	_, err = other.ParseAccessToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret-at-least-16-chars", -1*time.Minute, 7*24*time.Hour)

	token, _, err := tm.IssueAccessToken(testUser())
	require.NoError(t, err)

	_, err = tm.ParseAccessToken(token)
	assert.Error(t, err)
}

func TestTokenManager_PasswordVersionInvalidation(t *testing.T) {
	tm := NewTokenManager("test-secret-at-least-16-chars", 15*time.Minute, 7*24*time.Hour)
	user := testUser()

	token, _, err := tm.IssueAccessToken(user)
	require.NoError(t, err)

	claims, err := tm.ParseAccessToken(token)
	require.NoError(t, err)

	// Token stays verifiable while the version matches
	assert.NoError(t, tm.VerifyClaimsForUser(claims, user))

	// A password change bumps the version and kills the token early
	user.PasswordVersion++
	assert.ErrorIs(t, tm.VerifyClaimsForUser(claims, user), models.ErrUnauthorized)
}

func TestTokenManager_VerifyClaimsForWrongUser(t *testing.T) {
	tm := NewTokenManager("test-secret-at-least-16-chars", 15*time.Minute, 7*24*time.Hour)
	user := testUser()

	token, _, err := tm.IssueAccessToken(user)
	require.NoError(t, err)

	claims, err := tm.ParseAccessToken(token)
	require.NoError(t, err)

	other := testUser()
	other.ID = "user-2"
	assert.ErrorIs(t, tm.VerifyClaimsForUser(claims, other), models.ErrUnauthorized)
}

func TestNewRefreshID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewRefreshID()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(id), 43, "256 bits base64url-encoded")
		assert.False(t, seen[id], "refresh ids must not repeat")
		seen[id] = true
	}
}
