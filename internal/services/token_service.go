package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tkaraba/slotbook/internal/auth"
	"github.com/tkaraba/slotbook/internal/metrics"
	"github.com/tkaraba/slotbook/internal/models"
	pkglogger "github.com/tkaraba/slotbook/pkg/logger"
)

// RefreshTokenRepository defines the interface for refresh token storage
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	Rotate(ctx context.Context, presentedID, newID string, now time.Time) (models.RotationResult, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// UserRepository defines the user operations the services need
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	SetLockedUntil(ctx context.Context, id string, until *time.Time) error
	ResetFailedAttempts(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) (*models.User, error)
	SetEmailVerified(ctx context.Context, id string) error
}

// TokenPair is the result of issuing or rotating session credentials.
type TokenPair struct {
	AccessToken string
	AccessExp   time.Time
	RefreshID   string
	RefreshExp  time.Time
}

// TokenService issues access/refresh pairs and drives rotation with reuse
// detection. A replayed rotation revokes the user's entire token family: once
// one rotated-away id is presented again, two parties are assumed to hold the
// credential and every active session is terminated.
type TokenService struct {
	refreshRepo RefreshTokenRepository
	userRepo    UserRepository
	tm          *auth.TokenManager
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	metrics     *metrics.Metrics
}

// NewTokenService creates a new TokenService
func NewTokenService(
	refreshRepo RefreshTokenRepository,
	userRepo UserRepository,
	tm *auth.TokenManager,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	m *metrics.Metrics,
) *TokenService {
	return &TokenService{
		refreshRepo: refreshRepo,
		userRepo:    userRepo,
		tm:          tm,
		logger:      logger,
		auditLogger: auditLogger,
		metrics:     m,
	}
}

// Issue mints an access token and persists a fresh refresh record for the
// user. The refresh record's expiry anchors the whole family's lifetime.
func (s *TokenService) Issue(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessToken, accessExp, err := s.tm.IssueAccessToken(user)
	if err != nil {
		s.logger.Error("failed to issue access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshID, err := auth.NewRefreshID()
	if err != nil {
		s.logger.Error("failed to generate refresh id", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshExp := time.Now().Add(s.tm.RefreshTTL())
	record := &models.RefreshToken{
		ID:        refreshID,
		UserID:    user.ID,
		ExpiresAt: refreshExp,
	}

	if err := s.refreshRepo.Create(ctx, record); err != nil {
		s.logger.Error("failed to persist refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &TokenPair{
		AccessToken: accessToken,
		AccessExp:   accessExp,
		RefreshID:   refreshID,
		RefreshExp:  refreshExp,
	}, nil
}

// Rotate exchanges the presented refresh id for a successor and mints a new
// access token. Rejections keep their kind: unknown and expired are ordinary
// log-in-again outcomes, replayed escalates to family-wide revocation.
func (s *TokenService) Rotate(ctx context.Context, presentedID string) (*TokenPair, error) {
	newID, err := auth.NewRefreshID()
	if err != nil {
		s.logger.Error("failed to generate refresh id", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	result, err := s.refreshRepo.Rotate(ctx, presentedID, newID, time.Now())
	if err != nil {
		s.logger.Error("rotation transaction failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.metrics.Rotations.WithLabelValues(result.Kind.String()).Inc()

	switch result.Kind {
	case models.RotationUnknown:
		s.logger.Info("refresh rejected: unknown id")
		return nil, models.ErrRefreshUnknown

	case models.RotationExpired:
		s.logger.Info("refresh rejected: expired", slog.String("user_id", result.UserID))
		return nil, models.ErrRefreshExpired

	case models.RotationReplayed:
		s.escalateReplay(ctx, result.UserID)
		return nil, models.ErrRefreshReplayed

	case models.RotationOK:
		// fall through
	default:
		return nil, models.ErrInternalServer
	}

	user, err := s.userRepo.GetByID(ctx, result.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrRefreshUnknown
		}
		s.logger.Error("failed to load user after rotation", slog.String("user_id", result.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.Active {
		// The successor was just minted; don't leave it usable.
		_ = s.refreshRepo.Revoke(ctx, result.NewID)
		s.logger.Info("refresh rejected: inactive account", slog.String("user_id", user.ID))
		return nil, models.ErrInactiveAccount
	}

	accessToken, accessExp, err := s.tm.IssueAccessToken(user)
	if err != nil {
		s.logger.Error("failed to issue access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("refresh token rotated", slog.String("user_id", user.ID))

	return &TokenPair{
		AccessToken: accessToken,
		AccessExp:   accessExp,
		RefreshID:   result.NewID,
		RefreshExp:  result.ExpiresAt,
	}, nil
}

// escalateReplay revokes every active session for the user. The replayed id
// was already rotated away once, so it is presumed exfiltrated.
func (s *TokenService) escalateReplay(ctx context.Context, userID string) {
	s.metrics.ReplaysDetected.Inc()

	revoked, err := s.refreshRepo.RevokeAllForUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to revoke token family after replay",
			slog.String("user_id", userID), slog.Any("error", err))
		return
	}

	s.logger.Warn("refresh replay detected, token family revoked",
		slog.String("user_id", userID),
		slog.Int64("sessions_revoked", revoked))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "refresh_replay_detected",
		UserID:        userID,
		FailureReason: "refresh_replayed",
		Success:       false,
	})
}

// RevokeRefresh revokes the single presented refresh id (logout).
func (s *TokenService) RevokeRefresh(ctx context.Context, refreshID string) error {
	if refreshID == "" {
		return nil
	}

	if err := s.refreshRepo.Revoke(ctx, refreshID); err != nil {
		s.logger.Error("failed to revoke refresh token", slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}
