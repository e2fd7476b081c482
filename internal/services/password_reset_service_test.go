package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkaraba/slotbook/internal/models"
	pkgauth "github.com/tkaraba/slotbook/pkg/auth"
)

func newTestResetService(resetRepo *MockPasswordResetRepository, userRepo *MockUserRepository, refreshRepo *MockRefreshTokenRepository, email *MockEmailService) *PasswordResetService {
	return NewPasswordResetService(resetRepo, userRepo, refreshRepo, email, testLogger(), time.Hour)
}

func TestPasswordResetService_RequestReset_SendsEmail(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "SecurePassword123!")

	var storedHash string
	mockResetRepo := &MockPasswordResetRepository{
		CreateFunc: func(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
			storedHash = tokenHash
			return &models.PasswordResetToken{ID: "reset123", UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}, nil
		},
	}
	mockUserRepo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}

	var mailedToken string
	mockEmail := &MockEmailService{
		SendPasswordResetEmailFunc: func(ctx context.Context, email, token string, expiresAt time.Time) error {
			mailedToken = token
			return nil
		},
	}

	svc := newTestResetService(mockResetRepo, mockUserRepo, &MockRefreshTokenRepository{}, mockEmail)

	err := svc.RequestReset(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, mailedToken)
	// Only the hash hits storage; the plain token travels by email.
	assert.NotEqual(t, mailedToken, storedHash)
	assert.Equal(t, hashMailToken(mailedToken), storedHash)
}

func TestPasswordResetService_RequestReset_UnknownEmailIsSilent(t *testing.T) {
	emailSent := false
	mockUserRepo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
	}
	mockEmail := &MockEmailService{
		SendPasswordResetEmailFunc: func(ctx context.Context, email, token string, expiresAt time.Time) error {
			emailSent = true
			return nil
		},
	}

	svc := newTestResetService(&MockPasswordResetRepository{}, mockUserRepo, &MockRefreshTokenRepository{}, mockEmail)

	err := svc.RequestReset(context.Background(), "nobody@example.com")
	assert.NoError(t, err, "outcome must not reveal whether the email is registered")
	assert.False(t, emailSent)
}

func TestPasswordResetService_ValidateToken(t *testing.T) {
	valid := &models.PasswordResetToken{
		ID:        "reset123",
		UserID:    "user123",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	tests := []struct {
		name    string
		token   *models.PasswordResetToken
		wantErr error
	}{
		{"valid", valid, nil},
		{"expired", &models.PasswordResetToken{ID: "reset123", ExpiresAt: time.Now().Add(-time.Minute)}, models.ErrUnauthorized},
		{"used", func() *models.PasswordResetToken {
			used := time.Now().Add(-time.Minute)
			return &models.PasswordResetToken{ID: "reset123", ExpiresAt: time.Now().Add(time.Hour), UsedAt: &used}
		}(), models.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockResetRepo := &MockPasswordResetRepository{
				GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
					return tt.token, nil
				},
			}
			svc := newTestResetService(mockResetRepo, &MockUserRepository{}, &MockRefreshTokenRepository{}, &MockEmailService{})

			err := svc.ValidateToken(context.Background(), "some-token")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPasswordResetService_ValidateToken_UnknownToken(t *testing.T) {
	svc := newTestResetService(&MockPasswordResetRepository{}, &MockUserRepository{}, &MockRefreshTokenRepository{}, &MockEmailService{})

	err := svc.ValidateToken(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestPasswordResetService_Reset_Success(t *testing.T) {
	token := &models.PasswordResetToken{
		ID:        "reset123",
		UserID:    "user123",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	markedUsed := false
	mockResetRepo := &MockPasswordResetRepository{
		GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
			return token, nil
		},
		MarkAsUsedFunc: func(ctx context.Context, id string) error {
			markedUsed = true
			return nil
		},
	}

	var newHash string
	mockUserRepo := &MockUserRepository{
		UpdatePasswordFunc: func(ctx context.Context, id, passwordHash string) (*models.User, error) {
			assert.Equal(t, "user123", id)
			newHash = passwordHash
			return &models.User{ID: id, PasswordVersion: 2}, nil
		},
	}

	revokedUser := ""
	mockRefreshRepo := &MockRefreshTokenRepository{
		RevokeAllForUserFunc: func(ctx context.Context, userID string) (int64, error) {
			revokedUser = userID
			return 2, nil
		},
	}

	svc := newTestResetService(mockResetRepo, mockUserRepo, mockRefreshRepo, &MockEmailService{})

	err := svc.Reset(context.Background(), "some-token", "NewSecurePassword123!")
	require.NoError(t, err)
	assert.True(t, markedUsed)
	assert.Equal(t, "user123", revokedUser, "a reset terminates every active session")
	assert.NotEmpty(t, newHash)
	assert.NoError(t, pkgauth.ComparePassword(newHash, "NewSecurePassword123!"))
}

func TestPasswordResetService_Reset_WeakPassword(t *testing.T) {
	svc := newTestResetService(&MockPasswordResetRepository{}, &MockUserRepository{}, &MockRefreshTokenRepository{}, &MockEmailService{})

	err := svc.Reset(context.Background(), "some-token", "weak")
	assert.ErrorIs(t, err, models.ErrWeakPassword)
}

func TestPasswordResetService_Reset_ConsumedTokenRejected(t *testing.T) {
	used := time.Now().Add(-time.Minute)
	token := &models.PasswordResetToken{
		ID:        "reset123",
		UserID:    "user123",
		ExpiresAt: time.Now().Add(time.Hour),
		UsedAt:    &used,
	}

	mockResetRepo := &MockPasswordResetRepository{
		GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
			return token, nil
		},
	}

	passwordUpdated := false
	mockUserRepo := &MockUserRepository{
		UpdatePasswordFunc: func(ctx context.Context, id, passwordHash string) (*models.User, error) {
			passwordUpdated = true
			return nil, nil
		},
	}

	svc := newTestResetService(mockResetRepo, mockUserRepo, &MockRefreshTokenRepository{}, &MockEmailService{})

	err := svc.Reset(context.Background(), "some-token", "NewSecurePassword123!")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.False(t, passwordUpdated)
}

func TestPasswordResetService_Reset_MarkUsedRaceRejected(t *testing.T) {
	token := &models.PasswordResetToken{
		ID:        "reset123",
		UserID:    "user123",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	mockResetRepo := &MockPasswordResetRepository{
		GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
			return token, nil
		},
		MarkAsUsedFunc: func(ctx context.Context, id string) error {
			// Another request consumed the token first.
			return models.ErrNotFound
		},
	}

	svc := newTestResetService(mockResetRepo, &MockUserRepository{}, &MockRefreshTokenRepository{}, &MockEmailService{})

	err := svc.Reset(context.Background(), "some-token", "NewSecurePassword123!")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
