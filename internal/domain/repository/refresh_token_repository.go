package repository

import (
	"context"
	"time"

	"postboard/internal/domain/entity"

	"github.com/google/uuid"
)

// RefreshTokenRepository stores issued refresh tokens.
//
// Rows are never physically deleted and RevokedAt, once set, is never
// overwritten. Both revoke operations are conditional on the token not being
// revoked yet, which is what makes rotation single-use under concurrency.
type RefreshTokenRepository interface {
	// Create persists a freshly issued token.
	Create(ctx context.Context, token *entity.RefreshToken) error

	// FindByJTI returns domainerrors.ErrRefreshTokenNotFound when no row has the jti.
	FindByJTI(ctx context.Context, jti string) (*entity.RefreshToken, error)

	// RevokeByJTI sets RevokedAt if the token is still unrevoked.
	// It reports whether this call performed the transition; an unknown jti yields false.
	RevokeByJTI(ctx context.Context, jti string, revokedAt time.Time) (bool, error)

	// RevokeAllByUserID revokes every unrevoked token of the user and returns how many changed.
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID, revokedAt time.Time) (int64, error)
}
