package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims are the claims carried by a stateless access token.
// Ver mirrors the user's password_version at issuance: a password change
// bumps the version and makes every earlier access token unverifiable
// against a fresh user record before its natural expiry.
type AccessClaims struct {
	Ver int `json:"ver"`
	jwt.RegisteredClaims
}
