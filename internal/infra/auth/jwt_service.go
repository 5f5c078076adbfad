package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"postboard/config"
	"postboard/internal/domain/entity"
	domainerrors "postboard/internal/domain/errors"
	"postboard/internal/domain/service"
	"postboard/internal/errors"
)

// Random sizes in bytes before base64url encoding.
const (
	refreshJTIBytes    = 24
	refreshSecretBytes = 48
	csrfTokenBytes     = 32
)

// jwtService is a concrete implementation of the TokenService interface.
// Access tokens are HS256 JWTs; refresh tokens are opaque "<jti>.<secret>" pairs
// whose secret half is hashed with the PasswordHasher before it leaves this service.
type jwtService struct {
	accessSecret []byte        // Secret key for signing access tokens.
	issuer       string        // "iss" claim, also enforced on validation.
	audience     string        // "aud" claim, also enforced on validation.
	accessTTL    time.Duration // Time-to-live for access tokens.
	refreshTTL   time.Duration // Time-to-live for refresh tokens.
	hasher       service.PasswordHasher
	now          func() time.Time
}

// NewJWTService is the constructor for jwtService.
func NewJWTService(cfg *config.Config, hasher service.PasswordHasher) (service.TokenService, error) {
	if cfg.Auth == nil || cfg.Auth.AccessSecret == "" {
		return nil, errors.New("jwt secrets must be provided")
	}
	if hasher == nil {
		return nil, errors.New("password hasher must be provided")
	}

	svc := &jwtService{
		accessSecret: []byte(cfg.Auth.AccessSecret),
		issuer:       cfg.Auth.Issuer,
		audience:     cfg.Auth.Audience,
		accessTTL:    cfg.Auth.AccessTokenTTL,
		refreshTTL:   cfg.Auth.RefreshTokenTTL,
		hasher:       hasher,
		now:          time.Now,
	}
	if svc.accessTTL <= 0 {
		svc.accessTTL = 15 * time.Minute
	}
	if svc.refreshTTL <= 0 {
		svc.refreshTTL = 7 * 24 * time.Hour
	}

	return svc, nil
}

// GenerateTokens creates a new access token, refresh token and CSRF token for a given user.
func (s *jwtService) GenerateTokens(user *entity.User) (*entity.GeneratedAuthTokens, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, errors.New("user must have an id")
	}

	now := s.now()
	accessExpiresAt := now.Add(s.accessTTL)

	accessToken, err := s.generateAccessToken(user, now, accessExpiresAt)
	if err != nil {
		return nil, err
	}

	jti, err := randomToken(refreshJTIBytes)
	if err != nil {
		return nil, errors.Wrap(err, "generate refresh jti")
	}
	secret, err := randomToken(refreshSecretBytes)
	if err != nil {
		return nil, errors.Wrap(err, "generate refresh secret")
	}
	tokenHash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, errors.Wrap(err, "hash refresh secret")
	}
	csrfToken, err := randomToken(csrfTokenBytes)
	if err != nil {
		return nil, errors.Wrap(err, "generate csrf token")
	}

	return &entity.GeneratedAuthTokens{
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessExpiresAt,
		RefreshToken:          entity.ComposeRefreshToken(jti, secret),
		RefreshTokenExpiresAt: now.Add(s.refreshTTL),
		JTI:                   jti,
		TokenHash:             tokenHash,
		CSRFToken:             csrfToken,
	}, nil
}

// ValidateAccessToken parses and verifies an access token.
// Every failure is reported as domainerrors.ErrAccessTokenInvalid.
func (s *jwtService) ValidateAccessToken(tokenString string) (*service.AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	claims := &service.AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.accessSecret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrAccessTokenInvalid, err.Error())
	}
	if !token.Valid {
		return nil, errors.Wrap(domainerrors.ErrAccessTokenInvalid, "token is not valid")
	}
	if claims.Type != service.AccessTokenType {
		return nil, errors.Wrapf(domainerrors.ErrAccessTokenInvalid, "unexpected token type %q", claims.Type)
	}
	if claims.Subject == "" {
		return nil, errors.Wrap(domainerrors.ErrAccessTokenInvalid, "missing subject")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrAccessTokenInvalid, "subject is not a user id")
	}
	claims.UserID = userID

	return claims, nil
}

// generateAccessToken is a private helper to sign the access JWT.
func (s *jwtService) generateAccessToken(user *entity.User, issuedAt, expiresAt time.Time) (string, error) {
	claims := service.AccessClaims{
		Email: user.Email,
		Type:  service.AccessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
	if err != nil {
		return "", errors.Wrap(err, "sign access token")
	}

	return signed, nil
}
