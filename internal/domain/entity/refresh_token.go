package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenSeparator joins the public jti and the secret half of a refresh token.
const RefreshTokenSeparator = "."

// RefreshToken represents one issued session.
// The plaintext secret is never stored; only its one-way hash is.
type RefreshToken struct {
	ID        uuid.UUID  // Storage identifier.
	UserID    uuid.UUID  // Owning user.
	JTI       string     // Public, unguessable token identifier. Unique and immutable.
	TokenHash string     // Hash of the secret half. Never logged.
	CreatedAt time.Time  // Issuance time.
	ExpiresAt time.Time  // Absolute expiry.
	RevokedAt *time.Time // Set once, never cleared.
}

// IsRevoked reports whether the token has been revoked.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsExpiredAt reports whether the token is expired at the given instant.
// The boundary is inclusive: a token expiring exactly at now is expired.
func (t *RefreshToken) IsExpiredAt(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// IsUsableAt reports whether the token can still be exchanged at the given instant.
func (t *RefreshToken) IsUsableAt(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpiredAt(now)
}

// ComposeRefreshToken builds the wire form "<jti>.<secret>".
func ComposeRefreshToken(jti, secret string) string {
	return jti + RefreshTokenSeparator + secret
}

// SplitRefreshToken splits the wire form into its jti and secret halves.
// ok is false unless there are exactly two non-empty parts.
func SplitRefreshToken(plain string) (jti, secret string, ok bool) {
	parts := strings.Split(plain, RefreshTokenSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}

	return parts[0], parts[1], true
}

// GeneratedAuthTokens is the transient result of one issuance. It is consumed
// immediately to build the RefreshToken row and the HTTP response.
type GeneratedAuthTokens struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string // "<jti>.<secret>", sent to the client once.
	RefreshTokenExpiresAt time.Time
	JTI                   string
	TokenHash             string // Hash of the secret half.
	CSRFToken             string // Double-submit value bound to this issuance.
}
