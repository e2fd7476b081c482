package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tkaraba/slotbook/internal/models"
)

// EmailVerificationRepository defines the interface for email verification token operations
type EmailVerificationRepository interface {
	Create(ctx context.Context, userID, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error)
	MarkAsUsed(ctx context.Context, id string) error
	GetPendingByEmail(ctx context.Context, email string) (*models.EmailVerificationToken, error)
}

// EmailVerificationService handles email verification business logic
type EmailVerificationService struct {
	verificationRepo EmailVerificationRepository
	userRepo         UserRepository
	emailService     EmailService
	logger           *slog.Logger
	tokenExpiry      time.Duration
	resendCooldown   time.Duration
}

// NewEmailVerificationService creates a new EmailVerificationService
func NewEmailVerificationService(
	verificationRepo EmailVerificationRepository,
	userRepo UserRepository,
	emailService EmailService,
	logger *slog.Logger,
	tokenExpiry time.Duration,
) *EmailVerificationService {
	return &EmailVerificationService{
		verificationRepo: verificationRepo,
		userRepo:         userRepo,
		emailService:     emailService,
		logger:           logger,
		tokenExpiry:      tokenExpiry,
		resendCooldown:   20 * time.Minute,
	}
}

// newMailToken generates a random token and its storage hash. Only the hash
// is persisted; the plain token travels by email.
func newMailToken() (plain, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	plain = base64.URLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(plain))
	return plain, hex.EncodeToString(sum[:]), nil
}

func hashMailToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// SendVerificationEmail generates a token and sends a verification email
func (s *EmailVerificationService) SendVerificationEmail(ctx context.Context, userID, email string) error {
	plainToken, tokenHash, err := newMailToken()
	if err != nil {
		s.logger.Error("failed to generate verification token", slog.Any("error", err))
		return err
	}

	expiresAt := time.Now().Add(s.tokenExpiry)

	if _, err := s.verificationRepo.Create(ctx, userID, tokenHash, email, expiresAt); err != nil {
		s.logger.Error("failed to create email verification token",
			slog.String("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("failed to create token: %w", err)
	}

	if err := s.emailService.SendVerificationEmail(ctx, email, plainToken, expiresAt); err != nil {
		s.logger.Error("failed to send verification email",
			slog.String("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("verification email sent", slog.String("user_id", userID))
	return nil
}

// VerifyEmail verifies a token and marks the user's email as verified.
// Returns the user id on success.
func (s *EmailVerificationService) VerifyEmail(ctx context.Context, plainToken string) (string, error) {
	if plainToken == "" {
		return "", models.ErrUnauthorized
	}

	token, err := s.verificationRepo.GetByTokenHash(ctx, hashMailToken(plainToken))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("verification token not found")
			return "", models.ErrUnauthorized
		}
		s.logger.Error("failed to retrieve verification token", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if !token.IsValid() {
		s.logger.Info("verification token expired or already used", slog.String("user_id", token.UserID))
		return "", models.ErrUnauthorized
	}

	if err := s.verificationRepo.MarkAsUsed(ctx, token.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Lost a race with another use of the same token.
			return "", models.ErrUnauthorized
		}
		s.logger.Error("failed to mark verification token used", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if err := s.userRepo.SetEmailVerified(ctx, token.UserID); err != nil {
		s.logger.Error("failed to mark email verified",
			slog.String("user_id", token.UserID), slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	s.logger.Info("email verified", slog.String("user_id", token.UserID))
	return token.UserID, nil
}

// ResendVerification sends a fresh verification email if the account exists
// and is still unverified. Errors are swallowed into a uniform outcome so the
// endpoint cannot be used to probe which emails are registered.
func (s *EmailVerificationService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to look up user for resend", slog.Any("error", err))
		return nil
	}

	if user.EmailVerified {
		return nil
	}

	if pending, err := s.verificationRepo.GetPendingByEmail(ctx, email); err == nil {
		if time.Since(pending.CreatedAt) < s.resendCooldown {
			s.logger.Info("verification resend throttled", slog.String("user_id", user.ID))
			return nil
		}
	}

	if err := s.SendVerificationEmail(ctx, user.ID, user.Email); err != nil {
		s.logger.Error("failed to resend verification email",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}
	return nil
}
