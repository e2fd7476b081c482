package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tkaraba/slotbook/internal/auth"
	"github.com/tkaraba/slotbook/internal/metrics"
	"github.com/tkaraba/slotbook/internal/models"
	pkgauth "github.com/tkaraba/slotbook/pkg/auth"
	pkglogger "github.com/tkaraba/slotbook/pkg/logger"
)

// LoginResult carries the issued credentials and the authenticated user.
type LoginResult struct {
	User *models.User
	Pair *TokenPair
}

// RegisterResult reports the created account; login is not possible until the
// email is verified.
type RegisterResult struct {
	User                *models.User
	VerificationPending bool
}

// AuthService handles credential verification, lockout and session issuance.
type AuthService struct {
	userRepo     UserRepository
	tokenService *TokenService
	lockout      auth.LockoutPolicy
	timingDelay  *auth.TimingDelay
	verification *EmailVerificationService
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
	metrics      *metrics.Metrics
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo UserRepository,
	tokenService *TokenService,
	lockout auth.LockoutPolicy,
	timingDelay *auth.TimingDelay,
	verification *EmailVerificationService,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	m *metrics.Metrics,
) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		tokenService: tokenService,
		lockout:      lockout,
		timingDelay:  timingDelay,
		verification: verification,
		logger:       logger,
		auditLogger:  auditLogger,
		metrics:      m,
	}
}

// Login authenticates a user and issues a session.
//
// The lock window is checked before password verification: a lock only ever
// exists because of failures this caller (or an attacker) already produced,
// so answering AccountLocked for any password leaks nothing new, and it
// spares the argon2 work while a locked account is being hammered. Attempts
// against a locked account still count as failures and extend the lock per
// the backoff policy.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.recordOutcome("invalid_credentials", "", false)
			s.timingDelay.Wait(false)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	if user.IsLocked(now) {
		until := s.recordFailure(ctx, user)
		s.recordOutcome("locked", user.ID, false)
		if until == nil {
			until = user.LockedUntil
		}
		return nil, &models.AccountLockedError{Until: *until}
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		until := s.recordFailure(ctx, user)
		s.recordOutcome("invalid_credentials", user.ID, false)
		s.timingDelay.Wait(false)
		if until != nil {
			return nil, &models.AccountLockedError{Until: *until}
		}
		return nil, models.ErrInvalidCredentials
	}

	// Hard gates after password verification: an attacker probing these
	// still pays the failed-attempt cost above when the password is wrong.
	if !user.EmailVerified {
		s.recordOutcome("email_not_verified", user.ID, false)
		return nil, models.ErrEmailNotVerified
	}
	if !user.Active {
		s.recordOutcome("inactive_account", user.ID, false)
		return nil, models.ErrInactiveAccount
	}

	if user.FailedAttempts > 0 || user.LockedUntil != nil {
		if err := s.userRepo.ResetFailedAttempts(ctx, user.ID); err != nil {
			s.logger.Error("failed to reset lockout counters", slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}

	pair, err := s.tokenService.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	s.recordOutcome("success", user.ID, true)
	s.logger.Info("user logged in", slog.String("user_id", user.ID))

	return &LoginResult{User: user, Pair: pair}, nil
}

// recordFailure bumps the failure counter and applies the lockout policy.
// Returns the new lock expiry if the attempt caused (or extended) a lock.
func (s *AuthService) recordFailure(ctx context.Context, user *models.User) *time.Time {
	count, err := s.userRepo.IncrementFailedAttempts(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to record login failure", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil
	}

	until := s.lockout.NextLockedUntil(count, time.Now())
	if until == nil {
		return nil
	}

	if err := s.userRepo.SetLockedUntil(ctx, user.ID, until); err != nil {
		s.logger.Error("failed to set account lock", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil
	}

	if count == s.lockout.Threshold {
		s.metrics.Lockouts.Inc()
	}
	s.logger.Warn("account locked by backoff policy",
		slog.String("user_id", user.ID),
		slog.Int("failed_attempts", count),
		slog.Time("locked_until", *until))

	return until
}

func (s *AuthService) recordOutcome(result, userID string, success bool) {
	s.metrics.LoginAttempts.WithLabelValues(result).Inc()
	event := pkglogger.AuditEvent{
		EventType: "login",
		UserID:    userID,
		Success:   success,
	}
	if !success {
		event.FailureReason = result
	}
	s.auditLogger.LogAuthAttempt(event)
}

// Register creates a new account and kicks off email verification.
func (s *AuthService) Register(ctx context.Context, email, password string) (*RegisterResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrBadRequest
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, models.ErrWeakPassword
	}

	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("registration failed: email already registered")
		return nil, models.ErrEmailExists
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check existing user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Active:       true,
	}

	createdUser, err := s.userRepo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrEmailExists
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if s.verification != nil {
		if err := s.verification.SendVerificationEmail(ctx, createdUser.ID, createdUser.Email); err != nil {
			// The account exists; verification can be resent later.
			s.logger.Error("failed to send verification email",
				slog.String("user_id", createdUser.ID), slog.Any("error", err))
		}
	}

	s.logger.Info("user registered", slog.String("user_id", createdUser.ID))
	s.auditLogger.LogAccountAction("user_registered", createdUser.ID)

	return &RegisterResult{User: createdUser, VerificationPending: !createdUser.EmailVerified}, nil
}

// Refresh rotates the presented refresh id.
func (s *AuthService) Refresh(ctx context.Context, refreshID string) (*TokenPair, error) {
	refreshID = strings.TrimSpace(refreshID)
	if refreshID == "" {
		return nil, models.ErrRefreshUnknown
	}
	return s.tokenService.Rotate(ctx, refreshID)
}

// Logout revokes the single presented refresh id. Other sessions of the same
// user stay alive.
func (s *AuthService) Logout(ctx context.Context, refreshID string) error {
	return s.tokenService.RevokeRefresh(ctx, refreshID)
}
