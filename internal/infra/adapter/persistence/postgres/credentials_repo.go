package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/repository"
)

type CredentialsRepo struct{ db *sql.DB }

func NewCredentialsRepo(db *sql.DB) repository.CredentialsRepository {
	return &CredentialsRepo{db: db}
}

func (repo *CredentialsRepo) Get(ctx context.Context, publisherID int64, channel string) (*entity.ChannelCredentials, error) {
	const query = `
SELECT publisher_id, channel, account_sid, auth_token, from_number
FROM channel_credentials
WHERE publisher_id = $1 AND channel = $2`
	var c entity.ChannelCredentials
	err := repo.db.QueryRowContext(ctx, query, publisherID, channel).Scan(
		&c.PublisherID, &c.Channel, &c.AccountSID, &c.AuthToken, &c.FromNumber,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Get: %s credentials for publisher %d: %w", channel, publisherID, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &c, nil
}

func (repo *CredentialsRepo) Upsert(ctx context.Context, c *entity.ChannelCredentials) error {
	const query = `
INSERT INTO channel_credentials (publisher_id, channel, account_sid, auth_token, from_number)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (publisher_id, channel) DO UPDATE SET
       account_sid = EXCLUDED.account_sid,
       auth_token  = EXCLUDED.auth_token,
       from_number = EXCLUDED.from_number`
	if _, err := repo.db.ExecContext(ctx, query,
		c.PublisherID, c.Channel, c.AccountSID, c.AuthToken, c.FromNumber,
	); err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}
