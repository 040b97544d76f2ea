package db

import (
	"database/sql"
)

// MigrateUp creates the Postgres schema. Every statement is idempotent.
func MigrateUp(db *sql.DB) error {
	tables := []string{
		`
CREATE TABLE IF NOT EXISTS publishers (
    id                BIGSERIAL PRIMARY KEY,
    title             TEXT NOT NULL,
    city              TEXT NOT NULL DEFAULT '',
    endpoint          TEXT NOT NULL,
    active            BOOLEAN NOT NULL DEFAULT TRUE,
    outage_started_at TIMESTAMPTZ,
    outage_updated_at TIMESTAMPTZ,
    outage_last_error TEXT,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`
CREATE TABLE IF NOT EXISTS subscriptions (
    id              BIGSERIAL PRIMARY KEY,
    publisher_id    BIGINT NOT NULL REFERENCES publishers(id) ON DELETE CASCADE,
    channel         VARCHAR(32) NOT NULL,
    address         TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    unsubscribed_at TIMESTAMPTZ
)`,
		`
CREATE TABLE IF NOT EXISTS events (
    id           BIGSERIAL PRIMARY KEY,
    publisher_id BIGINT NOT NULL REFERENCES publishers(id) ON DELETE CASCADE,
    feature_id   TEXT NOT NULL,
    title        TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    properties   JSONB,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (publisher_id, feature_id)
)`,
		`
CREATE TABLE IF NOT EXISTS channel_credentials (
    publisher_id BIGINT NOT NULL REFERENCES publishers(id) ON DELETE CASCADE,
    channel      VARCHAR(32) NOT NULL,
    account_sid  TEXT NOT NULL DEFAULT '',
    auth_token   TEXT NOT NULL DEFAULT '',
    from_number  TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (publisher_id, channel)
)`,
	}
	for _, stmt := range tables {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	indexes := []string{
		// アクティブな発行元の絞り込み用
		`CREATE INDEX IF NOT EXISTS idx_publishers_active ON publishers(active) WHERE active = TRUE`,
		// 障害中の発行元一覧用
		`CREATE INDEX IF NOT EXISTS idx_publishers_outage ON publishers(outage_started_at) WHERE outage_started_at IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_active ON subscriptions(publisher_id) WHERE unsubscribed_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_events_publisher_created ON events(publisher_id, created_at DESC)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}
	return nil
}

// MigrateDown drops the schema in reverse order of creation.
// Use with caution: this deletes all data.
func MigrateDown(db *sql.DB) error {
	stmts := []string{
		`DROP TABLE IF EXISTS channel_credentials`,
		`DROP TABLE IF EXISTS events`,
		`DROP TABLE IF EXISTS subscriptions`,
		`DROP TABLE IF EXISTS publishers`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
