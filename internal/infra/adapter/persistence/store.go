// Package persistence opens the configured storage backend and exposes its
// repositories.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"feedwatch/internal/infra/adapter/persistence/postgres"
	"feedwatch/internal/infra/adapter/persistence/sqlite"
	"feedwatch/internal/infra/db"
	"feedwatch/internal/pkg/config"
	"feedwatch/internal/repository"
	"feedwatch/internal/resilience/retry"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options selects and configures the backend.
type Options struct {
	Driver string
	// DSN is the Postgres URL or the SQLite DSN. Empty SQLite DSN uses a
	// local feedwatch.db file.
	DSN  string
	Pool db.ConnectionConfig
	// Migrate creates the Postgres schema on open. SQLite always does.
	Migrate bool
}

// OptionsFromEnv reads DB_DRIVER, DATABASE_URL, DB_AUTO_MIGRATE and the
// DB_* pool settings. Invalid values fall back and are returned as warnings.
func OptionsFromEnv() (Options, []string) {
	var warnings []string

	driver := config.LoadEnvWithFallback("DB_DRIVER", DriverPostgres, config.OneOf(DriverPostgres, DriverSQLite))
	warnings = append(warnings, driver.Warnings...)

	migrate := config.LoadEnvBool("DB_AUTO_MIGRATE", true)
	warnings = append(warnings, migrate.Warnings...)

	pool, poolWarnings := db.ConnectionConfigFromEnv()
	warnings = append(warnings, poolWarnings...)

	return Options{
		Driver:  driver.Value,
		DSN:     config.LoadEnvString("DATABASE_URL", ""),
		Pool:    pool,
		Migrate: migrate.Value,
	}, warnings
}

// Store bundles the repositories of one backend.
type Store struct {
	Driver        string
	Publishers    repository.PublisherRepository
	Subscriptions repository.SubscriptionRepository
	Events        repository.EventRepository
	Credentials   repository.CredentialsRepository

	db *sql.DB
}

// Open connects to the backend. The first Postgres connection is retried
// with backoff so that the worker can start before the database is up.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch opts.Driver {
	case DriverPostgres, "":
		var database *sql.DB
		err := retry.WithBackoff(ctx, retry.DBConfig(), func() error {
			var err error
			database, err = db.Open(ctx, opts.DSN, opts.Pool)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if opts.Migrate {
			if err := db.MigrateUp(database); err != nil {
				_ = database.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
			logger.Info("database schema up to date")
		}
		return &Store{
			Driver:        DriverPostgres,
			Publishers:    postgres.NewPublisherRepo(database),
			Subscriptions: postgres.NewSubscriptionRepo(database),
			Events:        postgres.NewEventRepo(database),
			Credentials:   postgres.NewCredentialsRepo(database),
			db:            database,
		}, nil

	case DriverSQLite:
		database, err := sqlite.Open(ctx, sqlite.Config{
			DSN:             opts.DSN,
			MaxOpenConns:    1,
			ConnMaxLifetime: opts.Pool.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("sqlite database opened")
		return &Store{
			Driver:        DriverSQLite,
			Publishers:    sqlite.NewPublisherRepo(database),
			Subscriptions: sqlite.NewSubscriptionRepo(database),
			Events:        sqlite.NewEventRepo(database),
			Credentials:   sqlite.NewCredentialsRepo(database),
			db:            database.DB,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", opts.Driver)
	}
}

// Migrate applies (or with down, drops) the Postgres schema. The SQLite
// schema is created on open and cannot be rolled back.
func (s *Store) Migrate(down bool) error {
	if s.Driver != DriverPostgres {
		if down {
			return fmt.Errorf("migrate down is not supported for %s", s.Driver)
		}
		return nil
	}
	if down {
		return db.MigrateDown(s.db)
	}
	return db.MigrateUp(s.db)
}

// Stats returns the connection pool statistics.
func (s *Store) Stats() sql.DBStats {
	return s.db.Stats()
}

// ReportPoolStats publishes pool statistics through report every interval
// until ctx is done.
func (s *Store) ReportPoolStats(ctx context.Context, interval time.Duration, report func(active, idle int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.db.Stats()
			report(st.InUse, st.Idle)
		}
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
