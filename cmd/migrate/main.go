// Command migrate applies the embedded database schema: go run ./cmd/migrate -direction up
package main

import (
	"flag"
	"log/slog"
	"os"

	"postboard/internal/errors"
	"postboard/internal/infra/persistence/migrations"
)

func main() {
	direction := flag.String("direction", migrations.DirectionUp, "Migration direction: up or down")
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL URL, defaults to $DATABASE_URL")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := migrations.Run(*dsn, *direction); err != nil {
		if errors.Is(err, migrations.ErrNoChange) {
			logger.Info("Schema already up to date", slog.String("direction", *direction))

			return
		}
		logger.Error("Migration failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Migration applied", slog.String("direction", *direction))
}
