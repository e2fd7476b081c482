package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tkaraba/slotbook/internal/models"
	pkgauth "github.com/tkaraba/slotbook/pkg/auth"
)

// PasswordResetRepository defines the interface for reset token operations
type PasswordResetRepository interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	MarkAsUsed(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// RefreshRevoker terminates all active sessions after a password reset.
type RefreshRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// PasswordResetService handles the forgot/reset flow.
type PasswordResetService struct {
	resetRepo    PasswordResetRepository
	userRepo     UserRepository
	refreshRepo  RefreshRevoker
	emailService EmailService
	logger       *slog.Logger
	tokenExpiry  time.Duration
}

// NewPasswordResetService creates a new PasswordResetService
func NewPasswordResetService(
	resetRepo PasswordResetRepository,
	userRepo UserRepository,
	refreshRepo RefreshRevoker,
	emailService EmailService,
	logger *slog.Logger,
	tokenExpiry time.Duration,
) *PasswordResetService {
	return &PasswordResetService{
		resetRepo:    resetRepo,
		userRepo:     userRepo,
		refreshRepo:  refreshRepo,
		emailService: emailService,
		logger:       logger,
		tokenExpiry:  tokenExpiry,
	}
}

// RequestReset mails a reset token if the account exists. The outcome is
// uniform either way so the endpoint cannot confirm which emails are
// registered; the only signal is the email itself.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to look up user for password reset", slog.Any("error", err))
		return nil
	}

	plainToken, tokenHash, err := newMailToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return nil
	}

	expiresAt := time.Now().Add(s.tokenExpiry)
	if _, err := s.resetRepo.Create(ctx, user.ID, tokenHash, expiresAt); err != nil {
		s.logger.Error("failed to create reset token",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return nil
	}

	if err := s.emailService.SendPasswordResetEmail(ctx, user.Email, plainToken, expiresAt); err != nil {
		s.logger.Error("failed to send reset email",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return nil
	}

	s.logger.Info("password reset email sent", slog.String("user_id", user.ID))
	return nil
}

// ValidateToken reports whether a reset token is still usable, without
// consuming it. Backs the reset form's pre-flight check.
func (s *PasswordResetService) ValidateToken(ctx context.Context, plainToken string) error {
	token, err := s.lookupToken(ctx, plainToken)
	if err != nil {
		return err
	}
	if !token.IsValid() {
		return models.ErrUnauthorized
	}
	return nil
}

// Reset consumes a token and sets the new password. The password_version
// bump invalidates outstanding access tokens, and every refresh session is
// revoked so the new credentials are the only way back in.
func (s *PasswordResetService) Reset(ctx context.Context, plainToken, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.ErrWeakPassword
	}

	token, err := s.lookupToken(ctx, plainToken)
	if err != nil {
		return err
	}
	if !token.IsValid() {
		return models.ErrUnauthorized
	}

	if err := s.resetRepo.MarkAsUsed(ctx, token.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to consume reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	hashedPassword, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if _, err := s.userRepo.UpdatePassword(ctx, token.UserID, hashedPassword); err != nil {
		s.logger.Error("failed to update password",
			slog.String("user_id", token.UserID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if _, err := s.refreshRepo.RevokeAllForUser(ctx, token.UserID); err != nil {
		s.logger.Error("failed to revoke sessions after password reset",
			slog.String("user_id", token.UserID), slog.Any("error", err))
	}

	if err := s.resetRepo.DeleteByUserID(ctx, token.UserID); err != nil {
		s.logger.Error("failed to clear outstanding reset tokens",
			slog.String("user_id", token.UserID), slog.Any("error", err))
	}

	s.logger.Info("password reset completed", slog.String("user_id", token.UserID))
	return nil
}

func (s *PasswordResetService) lookupToken(ctx context.Context, plainToken string) (*models.PasswordResetToken, error) {
	if plainToken == "" {
		return nil, models.ErrUnauthorized
	}

	token, err := s.resetRepo.GetByTokenHash(ctx, hashMailToken(plainToken))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to look up reset token: %w", err)
	}
	return token, nil
}
