package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tkaraba/slotbook/internal/auth"
	"github.com/tkaraba/slotbook/internal/models"
	"github.com/tkaraba/slotbook/internal/services"
	pkghttp "github.com/tkaraba/slotbook/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Register(ctx context.Context, email, password string) (*services.RegisterResult, error)
	Refresh(ctx context.Context, refreshID string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshID string) error
}

// EmailVerificationServiceInterface defines the interface for email verification
type EmailVerificationServiceInterface interface {
	VerifyEmail(ctx context.Context, plainToken string) (string, error)
	ResendVerification(ctx context.Context, email string) error
}

// PasswordResetServiceInterface defines the interface for the forgot/reset flow
type PasswordResetServiceInterface interface {
	RequestReset(ctx context.Context, email string) error
	ValidateToken(ctx context.Context, plainToken string) error
	Reset(ctx context.Context, plainToken, newPassword string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service      AuthServiceInterface
	verification EmailVerificationServiceInterface
	reset        PasswordResetServiceInterface
	cookies      auth.CookieConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	service AuthServiceInterface,
	verification EmailVerificationServiceInterface,
	reset PasswordResetServiceInterface,
	cookies auth.CookieConfig,
) *AuthHandler {
	return &AuthHandler{
		service:      service,
		verification: verification,
		reset:        reset,
		cookies:      cookies,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest represents the request body for a reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the request body for completing a reset
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenRequest carries a single mailed token (verify-email, reset-validate)
type TokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResendVerificationRequest represents the request body for resending verification email
type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Response DTOs

// UserResponse is the public view of an account
type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// RegisterResponse represents the response for a successful registration
type RegisterResponse struct {
	Ok                  bool         `json:"ok"`
	User                UserResponse `json:"user"`
	VerificationPending bool         `json:"verification_pending"`
}

// SessionResponse carries a fresh access token; the refresh id travels only
// in the httpOnly cookie.
type SessionResponse struct {
	Ok              bool      `json:"ok"`
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

// OkResponse is the uniform body for endpoints that must not leak outcomes
type OkResponse struct {
	Ok bool `json:"ok"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrWeakPassword):
			pkghttp.WriteError(w, http.StatusBadRequest, "weak_password",
				"Password must be at least 8 characters and mix upper case, lower case, digits and symbols")
		case errors.Is(err, models.ErrEmailExists):
			pkghttp.WriteConflict(w, "Email address already registered")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid request")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, RegisterResponse{
		Ok:                  true,
		User:                newUserResponse(result.User),
		VerificationPending: result.VerificationPending,
	})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	auth.SetRefreshCookie(w, result.Pair.RefreshID, result.Pair.RefreshExp, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, SessionResponse{
		Ok:              true,
		AccessToken:     result.Pair.AccessToken,
		AccessExpiresAt: result.Pair.AccessExp,
	})
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	var lockErr *models.AccountLockedError

	switch {
	case errors.As(err, &lockErr):
		retryAfter := int(time.Until(lockErr.Until).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		pkghttp.WriteErrorWithDetails(w, http.StatusTooManyRequests, "account_locked",
			"Too many failed login attempts. Please try again later.",
			"locked until "+lockErr.Until.UTC().Format(time.RFC3339))
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, models.ErrEmailNotVerified):
		pkghttp.WriteError(w, http.StatusForbidden, "email_not_verified", "Email address not verified")
	case errors.Is(err, models.ErrInactiveAccount):
		pkghttp.WriteError(w, http.StatusForbidden, "inactive_account", "Account is not active")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// Refresh handles POST /auth/refresh. The presented refresh id comes from the
// httpOnly cookie; on success the successor id replaces it.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshID, err := auth.GetRefreshCookie(r)
	if err != nil || refreshID == "" {
		pkghttp.WriteError(w, http.StatusUnauthorized, "refresh_unknown", "No refresh token presented")
		return
	}

	pair, err := h.service.Refresh(r.Context(), refreshID)
	if err != nil {
		// Every rejection invalidates the cookie: whatever the client holds
		// will never rotate successfully again.
		auth.ClearRefreshCookie(w, h.cookies)
		switch {
		case errors.Is(err, models.ErrRefreshUnknown):
			pkghttp.WriteError(w, http.StatusUnauthorized, "refresh_unknown", "Refresh token not recognized")
		case errors.Is(err, models.ErrRefreshExpired):
			pkghttp.WriteError(w, http.StatusUnauthorized, "refresh_expired", "Refresh token expired, log in again")
		case errors.Is(err, models.ErrRefreshReplayed):
			pkghttp.WriteError(w, http.StatusUnauthorized, "refresh_replayed", "Refresh token already used, all sessions revoked")
		case errors.Is(err, models.ErrInactiveAccount):
			pkghttp.WriteError(w, http.StatusForbidden, "inactive_account", "Account is not active")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	auth.SetRefreshCookie(w, pair.RefreshID, pair.RefreshExp, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, SessionResponse{
		Ok:              true,
		AccessToken:     pair.AccessToken,
		AccessExpiresAt: pair.AccessExp,
	})
}

// Logout handles POST /auth/logout. Revokes only the presented session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	refreshID, err := auth.GetRefreshCookie(r)
	if err == nil && refreshID != "" {
		if err := h.service.Logout(r.Context(), refreshID); err != nil {
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
	}

	auth.ClearRefreshCookie(w, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, OkResponse{Ok: true})
}

// ForgotPassword handles POST /auth/forgot-password. Always answers ok so the
// endpoint cannot confirm which emails are registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	_ = h.reset.RequestReset(r.Context(), req.Email)
	pkghttp.WriteJSON(w, http.StatusOK, OkResponse{Ok: true})
}

// ValidateResetToken handles POST /auth/reset-password/validate
func (h *AuthHandler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.reset.ValidateToken(r.Context(), req.Token); err != nil {
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_reset_token", "Reset token is invalid, expired or already used")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, OkResponse{Ok: true})
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.reset.Reset(r.Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, models.ErrWeakPassword):
			pkghttp.WriteError(w, http.StatusBadRequest, "weak_password",
				"Password must be at least 8 characters and mix upper case, lower case, digits and symbols")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_reset_token", "Reset token is invalid, expired or already used")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, OkResponse{Ok: true})
}

// VerifyEmail handles POST /auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if _, err := h.verification.VerifyEmail(r.Context(), req.Token); err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_verification_token", "Verification token is invalid, expired or already used")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, OkResponse{Ok: true})
}

// ResendVerification handles POST /auth/resend-verification. Uniform outcome
// regardless of whether the email exists or is already verified.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	_ = h.verification.ResendVerification(r.Context(), req.Email)
	pkghttp.WriteJSON(w, http.StatusOK, OkResponse{Ok: true})
}

// Me handles GET /auth/me behind the auth middleware. Mostly a working
// example of a protected route.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"user_id": claims.Subject,
	})
}
