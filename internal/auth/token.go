package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tkaraba/slotbook/internal/models"
)

const refreshIDBytes = 32 // 256 bits of entropy

// TokenManager mints access tokens and opaque refresh ids.
//
// Access tokens are stateless HS256 JWTs carrying the user's current
// password_version in the ver claim. Refresh ids are plain random strings:
// their only property is unforgeable randomness plus a server-side lookup,
// so they are never signed or structured.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (tm *TokenManager) AccessTTL() time.Duration  { return tm.accessTTL }
func (tm *TokenManager) RefreshTTL() time.Duration { return tm.refreshTTL }

// IssueAccessToken mints a signed access token for the user and returns the
// token string along with its absolute expiry.
func (tm *TokenManager) IssueAccessToken(user *models.User) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(tm.accessTTL)

	claims := &models.AccessClaims{
		Ver: user.PasswordVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, exp, nil
}

// ParseAccessToken verifies signature and expiry and returns the claims.
// Callers that hold a fresh user record must additionally check the ver
// claim via VerifyClaimsForUser.
func (tm *TokenManager) ParseAccessToken(tokenString string) (*models.AccessClaims, error) {
	claims := &models.AccessClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}

// VerifyClaimsForUser rejects access tokens minted before the user's most
// recent password change: the ver claim must match the current
// password_version even when the token's own expiry has not elapsed.
func (tm *TokenManager) VerifyClaimsForUser(claims *models.AccessClaims, user *models.User) error {
	if claims.Subject != user.ID {
		return models.ErrUnauthorized
	}
	if claims.Ver != user.PasswordVersion {
		return models.ErrUnauthorized
	}
	return nil
}

// NewRefreshID generates an unguessable opaque refresh id.
func NewRefreshID() (string, error) {
	buf := make([]byte, refreshIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
