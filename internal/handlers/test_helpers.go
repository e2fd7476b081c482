package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tkaraba/slotbook/internal/auth"
	"github.com/tkaraba/slotbook/internal/models"
	"github.com/tkaraba/slotbook/internal/services"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID string) *http.Request {
	claims := &models.AccessClaims{Ver: 1}
	claims.Subject = userID
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "response status mismatch")
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	if target != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), target))
	}
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc    func(ctx context.Context, email, password string) (*services.LoginResult, error)
	RegisterFunc func(ctx context.Context, email, password string) (*services.RegisterResult, error)
	RefreshFunc  func(ctx context.Context, refreshID string) (*services.TokenPair, error)
	LogoutFunc   func(ctx context.Context, refreshID string) error
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) Register(ctx context.Context, email, password string) (*services.RegisterResult, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshID string) (*services.TokenPair, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshID)
	}
	return nil, models.ErrRefreshUnknown
}

func (m *MockAuthService) Logout(ctx context.Context, refreshID string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, refreshID)
	}
	return nil
}

// MockVerificationService implements EmailVerificationServiceInterface for testing
type MockVerificationService struct {
	VerifyEmailFunc        func(ctx context.Context, plainToken string) (string, error)
	ResendVerificationFunc func(ctx context.Context, email string) error
}

func (m *MockVerificationService) VerifyEmail(ctx context.Context, plainToken string) (string, error) {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, plainToken)
	}
	return "", models.ErrUnauthorized
}

func (m *MockVerificationService) ResendVerification(ctx context.Context, email string) error {
	if m.ResendVerificationFunc != nil {
		return m.ResendVerificationFunc(ctx, email)
	}
	return nil
}

// MockResetService implements PasswordResetServiceInterface for testing
type MockResetService struct {
	RequestResetFunc  func(ctx context.Context, email string) error
	ValidateTokenFunc func(ctx context.Context, plainToken string) error
	ResetFunc         func(ctx context.Context, plainToken, newPassword string) error
}

func (m *MockResetService) RequestReset(ctx context.Context, email string) error {
	if m.RequestResetFunc != nil {
		return m.RequestResetFunc(ctx, email)
	}
	return nil
}

func (m *MockResetService) ValidateToken(ctx context.Context, plainToken string) error {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(ctx, plainToken)
	}
	return models.ErrUnauthorized
}

func (m *MockResetService) Reset(ctx context.Context, plainToken, newPassword string) error {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, plainToken, newPassword)
	}
	return models.ErrUnauthorized
}

func testCookieConfig() auth.CookieConfig {
	return auth.CookieConfig{
		Path:     "/auth",
		Secure:   false,
		SameSite: "lax",
	}
}

func newTestAuthHandler(svc *MockAuthService, verification *MockVerificationService, reset *MockResetService) *AuthHandler {
	if svc == nil {
		svc = &MockAuthService{}
	}
	if verification == nil {
		verification = &MockVerificationService{}
	}
	if reset == nil {
		reset = &MockResetService{}
	}
	return NewAuthHandler(svc, verification, reset, testCookieConfig())
}
