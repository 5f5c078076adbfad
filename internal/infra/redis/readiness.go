package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"postboard/internal/domain/lifecycle"
	"postboard/internal/errors"
)

type readinessProbe struct {
	client goredis.UniversalClient
}

// NewReadinessProbe reports whether Redis answers PING.
func NewReadinessProbe(client goredis.UniversalClient) lifecycle.ReadinessProbe {
	return &readinessProbe{client: client}
}

func (p *readinessProbe) Name() string {
	return "redis"
}

func (p *readinessProbe) Ping(ctx context.Context) error {
	return errors.WithStack(p.client.Ping(ctx).Err())
}
