package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
)

// The pool only backs the file metadata index, so it stays small.
const (
	maxConns          = 8
	minConns          = 1
	healthCheckPeriod = time.Minute
)

// Open connects to Postgres and brings the file index schema up to date.
func Open(ctx context.Context, databaseURL string, migrations fs.FS) (*pgxpool.Pool, error) {
	if err := RunMigrations(databaseURL, migrations); err != nil {
		return nil, err
	}
	return NewPool(ctx, databaseURL)
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	config.MaxConns = maxConns
	config.MinConns = minConns
	config.HealthCheckPeriod = healthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// RunMigrations applies every pending migration from migrations. A dirty
// schema is reported instead of being forced.
func RunMigrations(databaseURL string, migrations fs.FS) error {
	src, err := iofs.New(migrations, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if _, dirty, err := m.Version(); err == nil && dirty {
		return errors.New("run migrations: schema is dirty, fix it manually")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, _, _ := m.Version()
	slog.Info("file index schema ready", "version", version)
	return nil
}
