package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postboard/internal/domain/entity"
	domainerrors "postboard/internal/domain/errors"
)

var refreshTokenColumns = []string{"id", "user_id", "jti", "token_hash", "expires_at", "revoked_at", "created_at"}

func TestRefreshTokenRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db)

	token := &entity.RefreshToken{
		UserID:    uuid.New(),
		JTI:       "jti-1",
		TokenHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "refresh_tokens"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), token))
	assert.NotEqual(t, uuid.Nil, token.ID)
	assert.False(t, token.CreatedAt.IsZero())
}

func TestRefreshTokenRepository_Create_DuplicateJTI(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "refresh_tokens"`)).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	err := repo.Create(context.Background(), &entity.RefreshToken{UserID: uuid.New(), JTI: "dup"})
	require.Error(t, err)
	// A collision is a server fault, never a client-facing "invalid refresh token".
	assert.True(t, errors.Is(err, domainerrors.ErrTokenIssueFailed))
	assert.False(t, errors.Is(err, domainerrors.ErrRefreshTokenInvalid))
}

func TestRefreshTokenRepository_FindByJTI(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db)

	id, userID := uuid.New(), uuid.New()
	expiresAt := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	revokedAt := time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC)
	createdAt := time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "refresh_tokens" WHERE jti = $1`)).
		WillReturnRows(sqlmock.NewRows(refreshTokenColumns).
			AddRow(id.String(), userID.String(), "jti-1", "hash", expiresAt, revokedAt, createdAt))

	token, err := repo.FindByJTI(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.Equal(t, id, token.ID)
	assert.Equal(t, userID, token.UserID)
	assert.Equal(t, "jti-1", token.JTI)
	assert.Equal(t, expiresAt, token.ExpiresAt)
	require.NotNil(t, token.RevokedAt)
	assert.True(t, token.IsRevoked())
}

func TestRefreshTokenRepository_FindByJTI_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "refresh_tokens" WHERE jti = $1`)).
		WillReturnRows(sqlmock.NewRows(refreshTokenColumns))

	token, err := repo.FindByJTI(context.Background(), "missing")
	assert.Nil(t, token)
	assert.True(t, errors.Is(err, domainerrors.ErrRefreshTokenNotFound))
}

func TestRefreshTokenRepository_RevokeByJTI_IsConditional(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db)
	revokedAt := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta(`UPDATE "refresh_tokens" SET "revoked_at"=$1 WHERE jti = $2 AND revoked_at IS NULL`)

	mock.ExpectExec(query).WithArgs(revokedAt, "jti-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs(revokedAt, "jti-1").WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.RevokeByJTI(context.Background(), "jti-1", revokedAt)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.RevokeByJTI(context.Background(), "jti-1", revokedAt)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestRefreshTokenRepository_RevokeByJTI_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "refresh_tokens"`)).WillReturnError(errors.New("db down"))

	won, err := repo.RevokeByJTI(context.Background(), "jti-1", time.Now())
	require.Error(t, err)
	assert.False(t, won)

	var dbErr *domainerrors.DatabaseExecuteError
	assert.True(t, errors.As(err, &dbErr))
}

func TestRefreshTokenRepository_RevokeAllByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db)
	userID := uuid.New()
	revokedAt := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "refresh_tokens" SET "revoked_at"=$1 WHERE user_id = $2 AND revoked_at IS NULL`)).
		WithArgs(revokedAt, userID).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllByUserID(context.Background(), userID, revokedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
