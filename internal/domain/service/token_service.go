package service

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"postboard/internal/domain/entity"
)

// AccessTokenType is the value of the "type" claim on access tokens.
const AccessTokenType = "access"

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	UserID uuid.UUID `json:"-"`
	Email  string    `json:"email"`
	Type   string    `json:"type"`
	jwt.RegisteredClaims
}

// TokenService issues access and refresh tokens and validates access tokens.
type TokenService interface {
	// GenerateTokens mints a new access token, refresh token and CSRF token for the user.
	// Every call draws fresh randomness.
	GenerateTokens(user *entity.User) (*entity.GeneratedAuthTokens, error)

	// ValidateAccessToken verifies signature, expiry, issuer, audience and token type.
	ValidateAccessToken(tokenString string) (*AccessClaims, error)
}
