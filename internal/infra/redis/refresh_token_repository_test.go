package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postboard/internal/domain/entity"
	domainerrors "postboard/internal/domain/errors"
	"postboard/internal/domain/repository"
)

func newTestRepository(t *testing.T) (repository.RefreshTokenRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRefreshTokenRepository(client, "test"), mr
}

func newToken(userID uuid.UUID, jti string, expiresAt time.Time) *entity.RefreshToken {
	return &entity.RefreshToken{
		UserID:    userID,
		JTI:       jti,
		TokenHash: "hash-" + jti,
		ExpiresAt: expiresAt,
	}
}

func TestRedisRefreshTokenRepository_CreateAndFind(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()
	userID := uuid.New()
	expiresAt := time.Now().Add(time.Hour).UTC()

	token := newToken(userID, "jti-1", expiresAt)
	require.NoError(t, repo.Create(ctx, token))
	assert.NotEqual(t, uuid.Nil, token.ID)
	assert.True(t, mr.Exists("test:rt:jti-1"))

	found, err := repo.FindByJTI(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, token.ID, found.ID)
	assert.Equal(t, userID, found.UserID)
	assert.Equal(t, "hash-jti-1", found.TokenHash)
	assert.True(t, expiresAt.Equal(found.ExpiresAt))
	assert.Nil(t, found.RevokedAt)
}

func TestRedisRefreshTokenRepository_CreateRejectsDuplicateJTI(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newToken(uuid.New(), "dup", time.Now().Add(time.Hour))))

	err := repo.Create(ctx, newToken(uuid.New(), "dup", time.Now().Add(time.Hour)))
	// A collision is a server fault, never a client-facing "invalid refresh token".
	assert.True(t, errors.Is(err, domainerrors.ErrTokenIssueFailed))
	assert.False(t, errors.Is(err, domainerrors.ErrRefreshTokenInvalid))
}

func TestRedisRefreshTokenRepository_FindByJTI_NotFound(t *testing.T) {
	repo, _ := newTestRepository(t)

	token, err := repo.FindByJTI(context.Background(), "missing")
	assert.Nil(t, token)
	assert.True(t, errors.Is(err, domainerrors.ErrRefreshTokenNotFound))
}

func TestRedisRefreshTokenRepository_RevokeByJTI(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newToken(uuid.New(), "jti-1", time.Now().Add(time.Hour))))

	first := time.Now().Add(-time.Minute).UTC()
	won, err := repo.RevokeByJTI(ctx, "jti-1", first)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.RevokeByJTI(ctx, "jti-1", time.Now())
	require.NoError(t, err)
	assert.False(t, won)

	found, err := repo.FindByJTI(ctx, "jti-1")
	require.NoError(t, err)
	require.NotNil(t, found.RevokedAt)
	assert.True(t, first.Equal(*found.RevokedAt), "revoked_at must not be overwritten")

	won, err = repo.RevokeByJTI(ctx, "unknown", time.Now())
	require.NoError(t, err)
	assert.False(t, won)
}

func TestRedisRefreshTokenRepository_RevokeByJTI_ConcurrentSingleWinner(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newToken(uuid.New(), "race", time.Now().Add(time.Hour))))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := repo.RevokeByJTI(ctx, "race", time.Now())
			assert.NoError(t, err)
			if won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestRedisRefreshTokenRepository_RevokeAllByUserID(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	userID, otherID := uuid.New(), uuid.New()

	for _, jti := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, newToken(userID, jti, time.Now().Add(time.Hour))))
	}
	require.NoError(t, repo.Create(ctx, newToken(otherID, "other", time.Now().Add(time.Hour))))

	earlier := time.Now().Add(-time.Hour).UTC()
	_, err := repo.RevokeByJTI(ctx, "a", earlier)
	require.NoError(t, err)

	n, err := repo.RevokeAllByUserID(ctx, userID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	a, err := repo.FindByJTI(ctx, "a")
	require.NoError(t, err)
	assert.True(t, earlier.Equal(*a.RevokedAt))

	other, err := repo.FindByJTI(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, other.RevokedAt)

	n, err = repo.RevokeAllByUserID(ctx, userID, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}
