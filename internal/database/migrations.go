package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/config"
)

type Migrator struct {
	migrate *migrate.Migrate
	db      *sql.DB
}

func NewMigrator(cfg config.DatabaseConfig) (*Migrator, error) {
	db, err := sql.Open("postgres", cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL(cfg.MigrationsPath), "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{migrate: m, db: db}, nil
}

// sourceURL ищет каталог миграций относительно рабочего каталога.
func sourceURL(path string) string {
	if path == "" {
		path = "migrations"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "file://./" + path
	}
	return "file://" + path
}

func (m *Migrator) Up() error {
	defer m.close()
	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (m *Migrator) Down() error {
	defer m.close()
	if err := m.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	return nil
}

func (m *Migrator) close() {
	_, _ = m.migrate.Close()
	_ = m.db.Close()
}
