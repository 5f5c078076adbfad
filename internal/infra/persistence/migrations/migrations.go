// Package migrations applies the embedded SQL schema with golang-migrate.
package migrations

import (
	"embed"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // registers the postgres:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"postboard/internal/errors"
)

//go:embed sql/*.sql
var migrationFS embed.FS

// Migration directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// ErrNoChange is returned when there is nothing to apply in the requested direction.
var ErrNoChange = migrate.ErrNoChange

// Run applies all migrations in the given direction against dsn.
func Run(dsn, direction string) error {
	if dsn == "" {
		return errors.New("database dsn must be provided")
	}
	if direction != DirectionUp && direction != DirectionDown {
		return errors.Errorf("direction must be %s or %s, got %q", DirectionUp, DirectionDown, direction)
	}

	sourceDriver, err := iofs.New(migrationFS, "sql")
	if err != nil {
		return errors.Wrap(err, "migrate source")
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return errors.Wrap(err, "migrate init")
	}
	defer func() { _, _ = m.Close() }()

	if direction == DirectionUp {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return ErrNoChange
		}

		return errors.Wrapf(err, "migrate %s", direction)
	}

	return nil
}
