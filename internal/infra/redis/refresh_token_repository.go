package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"postboard/internal/domain/entity"
	domainerrors "postboard/internal/domain/errors"
	"postboard/internal/domain/repository"
	"postboard/internal/errors"
)

// retentionAfterExpiry keeps expired tokens around so a late replay still reads as "expired".
const retentionAfterExpiry = 30 * 24 * time.Hour

const (
	fieldID        = "id"
	fieldUserID    = "user_id"
	fieldTokenHash = "token_hash"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
	fieldRevokedAt = "revoked_at"
)

// KEYS[1] token hash, KEYS[2] user index set.
// ARGV: jti, id, user_id, token_hash, created_at, expires_at, expire_at_ms.
var createTokenLua = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "id", ARGV[2], "user_id", ARGV[3], "token_hash", ARGV[4], "created_at", ARGV[5], "expires_at", ARGV[6])
redis.call("PEXPIREAT", KEYS[1], ARGV[7])
redis.call("SADD", KEYS[2], ARGV[1])
redis.call("PEXPIREAT", KEYS[2], ARGV[7])
return 1
`)

// Compare-and-set: only an unrevoked token transitions.
// KEYS[1] token hash. ARGV[1] revoked_at.
var revokeTokenLua = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HEXISTS", KEYS[1], "revoked_at") == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "revoked_at", ARGV[1])
return 1
`)

// KEYS[1] user index set. ARGV[1] token key prefix, ARGV[2] revoked_at.
var revokeUserTokensLua = goredis.NewScript(`
local revoked = 0
local jtis = redis.call("SMEMBERS", KEYS[1])
for _, jti in ipairs(jtis) do
  local key = ARGV[1] .. jti
  if redis.call("EXISTS", key) == 0 then
    redis.call("SREM", KEYS[1], jti)
  elseif redis.call("HEXISTS", key, "revoked_at") == 0 then
    redis.call("HSET", key, "revoked_at", ARGV[2])
    revoked = revoked + 1
  end
end
return revoked
`)

// refreshTokenRepository stores refresh tokens as Redis hashes keyed by jti,
// with a per-user set of jtis for bulk revocation.
type refreshTokenRepository struct {
	client goredis.UniversalClient
	prefix string
}

// NewRefreshTokenRepository is the constructor for the Redis refresh token store.
func NewRefreshTokenRepository(client goredis.UniversalClient, keyPrefix string) repository.RefreshTokenRepository {
	if keyPrefix == "" {
		keyPrefix = "postboard"
	}

	return &refreshTokenRepository{client: client, prefix: keyPrefix}
}

func (repo *refreshTokenRepository) tokenKeyPrefix() string {
	return repo.prefix + ":rt:"
}

func (repo *refreshTokenRepository) tokenKey(jti string) string {
	return repo.tokenKeyPrefix() + jti
}

func (repo *refreshTokenRepository) userKey(userID uuid.UUID) string {
	return repo.prefix + ":rtu:" + userID.String()
}

// Create persists a freshly issued token. A duplicate jti is rejected.
func (repo *refreshTokenRepository) Create(ctx context.Context, token *entity.RefreshToken) error {
	if token.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return errors.Wrap(err, "generate refresh token id")
		}
		token.ID = id
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	expireAt := token.ExpiresAt.Add(retentionAfterExpiry)
	created, err := createTokenLua.Run(ctx, repo.client,
		[]string{repo.tokenKey(token.JTI), repo.userKey(token.UserID)},
		token.JTI,
		token.ID.String(),
		token.UserID.String(),
		token.TokenHash,
		formatTime(token.CreatedAt),
		formatTime(token.ExpiresAt),
		expireAt.UnixMilli(),
	).Int()
	if err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to create refresh token")
	}
	if created == 0 {
		return domainerrors.ErrTokenIssueFailed.WrapMessage("refresh token jti already exists")
	}

	return nil
}

// FindByJTI loads a token by its public identifier.
func (repo *refreshTokenRepository) FindByJTI(ctx context.Context, jti string) (*entity.RefreshToken, error) {
	fields, err := repo.client.HGetAll(ctx, repo.tokenKey(jti)).Result()
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find refresh token")
	}
	if len(fields) == 0 {
		return nil, errors.WithStack(domainerrors.ErrRefreshTokenNotFound)
	}

	token, err := decodeToken(jti, fields)
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "corrupt refresh token record")
	}

	return token, nil
}

// RevokeByJTI atomically revokes the token if it is not revoked yet.
func (repo *refreshTokenRepository) RevokeByJTI(ctx context.Context, jti string, revokedAt time.Time) (bool, error) {
	n, err := revokeTokenLua.Run(ctx, repo.client, []string{repo.tokenKey(jti)}, formatTime(revokedAt)).Int()
	if err != nil {
		return false, domainerrors.NewDatabaseExecuteError(err, "failed to revoke refresh token")
	}

	return n == 1, nil
}

// RevokeAllByUserID revokes every still-active token of the user.
func (repo *refreshTokenRepository) RevokeAllByUserID(ctx context.Context, userID uuid.UUID, revokedAt time.Time) (int64, error) {
	n, err := revokeUserTokensLua.Run(ctx, repo.client,
		[]string{repo.userKey(userID)},
		repo.tokenKeyPrefix(),
		formatTime(revokedAt),
	).Int64()
	if err != nil {
		return 0, domainerrors.NewDatabaseExecuteError(err, "failed to revoke user refresh tokens")
	}

	return n, nil
}

func formatTime(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseTime(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse timestamp %q", s)
	}

	return time.Unix(0, n).UTC(), nil
}

func decodeToken(jti string, fields map[string]string) (*entity.RefreshToken, error) {
	id, err := uuid.Parse(fields[fieldID])
	if err != nil {
		return nil, errors.Wrap(err, "parse id")
	}
	userID, err := uuid.Parse(fields[fieldUserID])
	if err != nil {
		return nil, errors.Wrap(err, "parse user_id")
	}
	createdAt, err := parseTime(fields[fieldCreatedAt])
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseTime(fields[fieldExpiresAt])
	if err != nil {
		return nil, err
	}

	token := &entity.RefreshToken{
		ID:        id,
		UserID:    userID,
		JTI:       jti,
		TokenHash: fields[fieldTokenHash],
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}

	if raw, ok := fields[fieldRevokedAt]; ok {
		revokedAt, err := parseTime(raw)
		if err != nil {
			return nil, err
		}
		token.RevokedAt = &revokedAt
	}

	return token, nil
}
