package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"feedwatch/internal/pkg/config"
)

// ConnectionConfig holds database connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the default connection pool configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// ErrMissingDSN is returned when DATABASE_URL is not configured.
var ErrMissingDSN = errors.New("DATABASE_URL not set")

// Open creates and verifies a Postgres connection pool using the pgx stdlib driver.
func Open(ctx context.Context, dsn string, cfg ConnectionConfig) (*sql.DB, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	slog.Info("database connection pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("database connection established successfully")
	return db, nil
}

// ConnectionConfigFromEnv reads pool settings from DB_* variables.
// Invalid values fall back to defaults and are returned as warnings.
func ConnectionConfigFromEnv() (ConnectionConfig, []string) {
	cfg := DefaultConnectionConfig()
	var warnings []string

	positive := func(v int) error { return config.ValidateIntRange(v, 1, 1000) }

	maxOpen := config.LoadEnvInt("DB_MAX_OPEN_CONNS", cfg.MaxOpenConns, positive)
	cfg.MaxOpenConns = maxOpen.Value
	warnings = append(warnings, maxOpen.Warnings...)

	maxIdle := config.LoadEnvInt("DB_MAX_IDLE_CONNS", cfg.MaxIdleConns, positive)
	cfg.MaxIdleConns = maxIdle.Value
	warnings = append(warnings, maxIdle.Warnings...)

	lifetime := config.LoadEnvDuration("DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime, config.ValidatePositiveDuration)
	cfg.ConnMaxLifetime = lifetime.Value
	warnings = append(warnings, lifetime.Warnings...)

	idle := config.LoadEnvDuration("DB_CONN_MAX_IDLE_TIME", cfg.ConnMaxIdleTime, config.ValidatePositiveDuration)
	cfg.ConnMaxIdleTime = idle.Value
	warnings = append(warnings, idle.Warnings...)

	return cfg, warnings
}
