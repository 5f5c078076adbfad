// Package redis holds the Redis connection and the Redis-backed refresh token store.
package redis

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"postboard/config"
	"postboard/internal/domain/lifecycle"
	"postboard/internal/errors"
)

// ClientParams defines the required parameters
type ClientParams struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// NewClient opens the Redis connection. It returns a nil client when no redis section is configured,
// which readiness checks treat as "not in use".
func NewClient(params ClientParams) (*goredis.Client, error) {
	cfg := params.Config.Redis
	if cfg == nil || cfg.Addr == "" {
		if params.Config.Auth != nil && params.Config.Auth.RefreshTokenStore == config.RefreshTokenStoreRedis {
			return nil, errors.New("redis.addr must be provided when auth.refreshTokenStore is redis")
		}

		return nil, nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := client.Ping(ctx).Err(); err != nil {
				return errors.Wrap(err, "failed to ping Redis")
			}
			params.Logger.Info("Redis connected", slog.String("addr", cfg.Addr))

			return nil
		},
		OnStop: func(_ context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}
