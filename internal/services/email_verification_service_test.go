package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkaraba/slotbook/internal/models"
)

func newTestVerificationService(verificationRepo *MockEmailVerificationRepository, userRepo *MockUserRepository, email *MockEmailService) *EmailVerificationService {
	return NewEmailVerificationService(verificationRepo, userRepo, email, testLogger(), 24*time.Hour)
}

func TestEmailVerificationService_SendVerificationEmail(t *testing.T) {
	var storedHash string
	mockVerificationRepo := &MockEmailVerificationRepository{
		CreateFunc: func(ctx context.Context, userID, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error) {
			storedHash = tokenHash
			return &models.EmailVerificationToken{ID: "verify123", UserID: userID, TokenHash: tokenHash, Email: email, ExpiresAt: expiresAt}, nil
		},
	}

	var mailedToken string
	mockEmail := &MockEmailService{
		SendVerificationEmailFunc: func(ctx context.Context, email, token string, expiresAt time.Time) error {
			mailedToken = token
			assert.Equal(t, "user@example.com", email)
			return nil
		},
	}

	svc := newTestVerificationService(mockVerificationRepo, &MockUserRepository{}, mockEmail)

	err := svc.SendVerificationEmail(context.Background(), "user123", "user@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, mailedToken)
	assert.Equal(t, hashMailToken(mailedToken), storedHash)
	assert.NotEqual(t, mailedToken, storedHash)
}

func TestEmailVerificationService_VerifyEmail_Success(t *testing.T) {
	token := &models.EmailVerificationToken{
		ID:        "verify123",
		UserID:    "user123",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	markedUsed := false
	mockVerificationRepo := &MockEmailVerificationRepository{
		GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error) {
			assert.Equal(t, hashMailToken("plain-token"), tokenHash)
			return token, nil
		},
		MarkAsUsedFunc: func(ctx context.Context, id string) error {
			markedUsed = true
			return nil
		},
	}

	verifiedUser := ""
	mockUserRepo := &MockUserRepository{
		SetEmailVerifiedFunc: func(ctx context.Context, id string) error {
			verifiedUser = id
			return nil
		},
	}

	svc := newTestVerificationService(mockVerificationRepo, mockUserRepo, &MockEmailService{})

	userID, err := svc.VerifyEmail(context.Background(), "plain-token")
	require.NoError(t, err)
	assert.Equal(t, "user123", userID)
	assert.True(t, markedUsed)
	assert.Equal(t, "user123", verifiedUser)
}

func TestEmailVerificationService_VerifyEmail_Rejections(t *testing.T) {
	used := time.Now().Add(-time.Minute)

	tests := []struct {
		name  string
		token *models.EmailVerificationToken
	}{
		{"expired", &models.EmailVerificationToken{ID: "verify123", UserID: "user123", ExpiresAt: time.Now().Add(-time.Minute)}},
		{"already used", &models.EmailVerificationToken{ID: "verify123", UserID: "user123", ExpiresAt: time.Now().Add(time.Hour), UsedAt: &used}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockVerificationRepo := &MockEmailVerificationRepository{
				GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error) {
					return tt.token, nil
				},
			}

			svc := newTestVerificationService(mockVerificationRepo, &MockUserRepository{}, &MockEmailService{})

			_, err := svc.VerifyEmail(context.Background(), "plain-token")
			assert.ErrorIs(t, err, models.ErrUnauthorized)
		})
	}
}

func TestEmailVerificationService_VerifyEmail_UnknownToken(t *testing.T) {
	svc := newTestVerificationService(&MockEmailVerificationRepository{}, &MockUserRepository{}, &MockEmailService{})

	_, err := svc.VerifyEmail(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestEmailVerificationService_ResendVerification_Throttled(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "SecurePassword123!")
	user.EmailVerified = false

	mockUserRepo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	mockVerificationRepo := &MockEmailVerificationRepository{
		GetPendingByEmailFunc: func(ctx context.Context, email string) (*models.EmailVerificationToken, error) {
			return &models.EmailVerificationToken{
				ID:        "verify123",
				UserID:    "user123",
				ExpiresAt: time.Now().Add(time.Hour),
				CreatedAt: time.Now().Add(-time.Minute),
			}, nil
		},
	}

	emailSent := false
	mockEmail := &MockEmailService{
		SendVerificationEmailFunc: func(ctx context.Context, email, token string, expiresAt time.Time) error {
			emailSent = true
			return nil
		},
	}

	svc := newTestVerificationService(mockVerificationRepo, mockUserRepo, mockEmail)

	err := svc.ResendVerification(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.False(t, emailSent, "a pending token newer than the cooldown suppresses the resend")
}

func TestEmailVerificationService_ResendVerification_AlreadyVerified(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "SecurePassword123!")

	mockUserRepo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}

	emailSent := false
	mockEmail := &MockEmailService{
		SendVerificationEmailFunc: func(ctx context.Context, email, token string, expiresAt time.Time) error {
			emailSent = true
			return nil
		},
	}

	svc := newTestVerificationService(&MockEmailVerificationRepository{}, mockUserRepo, mockEmail)

	err := svc.ResendVerification(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.False(t, emailSent)
}

func TestEmailVerificationService_ResendVerification_UnknownEmailIsSilent(t *testing.T) {
	svc := newTestVerificationService(&MockEmailVerificationRepository{}, &MockUserRepository{}, &MockEmailService{})

	err := svc.ResendVerification(context.Background(), "nobody@example.com")
	assert.NoError(t, err)
}

func TestEmailVerificationService_ResendVerification_NoPendingTokenSends(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "SecurePassword123!")
	user.EmailVerified = false

	mockUserRepo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}

	emailSent := false
	mockEmail := &MockEmailService{
		SendVerificationEmailFunc: func(ctx context.Context, email, token string, expiresAt time.Time) error {
			emailSent = true
			return nil
		},
	}

	svc := newTestVerificationService(&MockEmailVerificationRepository{}, mockUserRepo, mockEmail)

	err := svc.ResendVerification(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.True(t, emailSent)
}
