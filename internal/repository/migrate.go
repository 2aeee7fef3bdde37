package repository

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/maynagashev/tokenvault/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate применяет встроенные миграции схемы к базе db.
func Migrate(db *sqlx.DB, log *logger.Logger) error {
	log = log.Module("migrate")

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка чтения миграций: %w", err)
	}
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("ошибка инициализации драйвера миграций: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("ошибка запуска миграций: %w", err)
	}

	switch err = m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("схема актуальна, миграции не требуются")
	case err != nil:
		return fmt.Errorf("ошибка применения миграций: %w", err)
	default:
		version, _, _ := m.Version()
		log.Info("миграции применены", "version", version)
	}
	return nil
}
