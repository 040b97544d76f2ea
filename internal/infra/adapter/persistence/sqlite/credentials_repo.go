package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/repository"
)

type CredentialsRepo struct{ db *sqlx.DB }

func NewCredentialsRepo(db *sqlx.DB) repository.CredentialsRepository {
	return &CredentialsRepo{db: db}
}

type credentialsRow struct {
	PublisherID int64  `db:"publisher_id"`
	Channel     string `db:"channel"`
	AccountSID  string `db:"account_sid"`
	AuthToken   string `db:"auth_token"`
	FromNumber  string `db:"from_number"`
}

func (repo *CredentialsRepo) Get(ctx context.Context, publisherID int64, channel string) (*entity.ChannelCredentials, error) {
	var row credentialsRow
	err := repo.db.GetContext(ctx, &row, `
SELECT publisher_id, channel, account_sid, auth_token, from_number
FROM channel_credentials
WHERE publisher_id = ? AND channel = ?`, publisherID, channel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Get: %s credentials for publisher %d: %w", channel, publisherID, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &entity.ChannelCredentials{
		PublisherID: row.PublisherID,
		Channel:     row.Channel,
		AccountSID:  row.AccountSID,
		AuthToken:   row.AuthToken,
		FromNumber:  row.FromNumber,
	}, nil
}

func (repo *CredentialsRepo) Upsert(ctx context.Context, c *entity.ChannelCredentials) error {
	return withLockRetry(ctx, func() error {
		_, err := repo.db.NamedExecContext(ctx, `
INSERT INTO channel_credentials (publisher_id, channel, account_sid, auth_token, from_number)
VALUES (:publisher_id, :channel, :account_sid, :auth_token, :from_number)
ON CONFLICT (publisher_id, channel) DO UPDATE SET
       account_sid = excluded.account_sid,
       auth_token  = excluded.auth_token,
       from_number = excluded.from_number`, credentialsRow{
			PublisherID: c.PublisherID,
			Channel:     c.Channel,
			AccountSID:  c.AccountSID,
			AuthToken:   c.AuthToken,
			FromNumber:  c.FromNumber,
		})
		if err != nil {
			return fmt.Errorf("Upsert: %w", err)
		}
		return nil
	})
}
