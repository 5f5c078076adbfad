package postgres

import (
	"context"

	"gorm.io/gorm"

	"postboard/internal/domain/lifecycle"
	"postboard/internal/errors"
)

type readinessProbe struct {
	db *gorm.DB
}

// NewReadinessProbe reports whether the PostgreSQL pool can reach the server.
func NewReadinessProbe(db *gorm.DB) lifecycle.ReadinessProbe {
	return &readinessProbe{db: db}
}

func (p *readinessProbe) Name() string {
	return "postgres"
}

func (p *readinessProbe) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get PostgreSQL sql.DB")
	}

	return errors.WithStack(sqlDB.PingContext(ctx))
}
