package main

import (
	"context"
	"log/slog"
	"os"

	"postboard/config"
	"postboard/internal/delivery"
	"postboard/internal/delivery/api"
	"postboard/internal/delivery/api/cookie"
	apimiddleware "postboard/internal/delivery/api/middleware"
	"postboard/internal/delivery/api/router/handler"
	"postboard/internal/domain/lifecycle"
	"postboard/internal/domain/repository"
	"postboard/internal/infra/auth"
	logs "postboard/internal/infra/log"
	"postboard/internal/infra/persistence/postgres"
	"postboard/internal/infra/pubsub"
	"postboard/internal/infra/redis"
	"postboard/internal/infra/telemetry"
	"postboard/internal/usecase/impl"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		telemetry.NewTracerProvider,
		telemetry.NewTracer,
		postgres.New,
		redis.NewClient,
		fx.Annotate(
			newReadinessProbes,
			fx.ResultTags(`group:"readiness,flatten"`),
		),
	)
}

// newReadinessProbes lists the stores /health/ready pings. Redis is only probed when configured.
func newReadinessProbes(db *gorm.DB, client *goredis.Client) []lifecycle.ReadinessProbe {
	probes := []lifecycle.ReadinessProbe{postgres.NewReadinessProbe(db)}
	if client != nil {
		probes = append(probes, redis.NewReadinessProbe(client))
	}

	return probes
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewUserRepository,
			postgres.NewPostRepository,
			postgres.NewTransactionManager,
			newRefreshTokenRepository,
		),
	)
}

// newRefreshTokenRepository selects the refresh token store named by auth.refreshTokenStore.
func newRefreshTokenRepository(cfg *config.Config, db *gorm.DB, client *goredis.Client, logger *slog.Logger) repository.RefreshTokenRepository {
	if cfg.Auth.RefreshTokenStore == config.RefreshTokenStoreRedis {
		logger.Info("Refresh tokens stored in Redis")

		return redis.NewRefreshTokenRepository(client, cfg.Redis.KeyPrefix)
	}

	return postgres.NewRefreshTokenRepository(db)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewArgon2Hasher,
			auth.NewJWTService,
			pubsub.NewEventPublisher,
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewAuthService,
			impl.NewUserService,
			impl.NewPostService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			cookie.NewManager,
			apimiddleware.NewAuthMiddleware,
			apimiddleware.NewCSRFMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthHandler,
			handler.NewUserHandler,
			handler.NewPostHandler,
			handler.NewHealthHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
