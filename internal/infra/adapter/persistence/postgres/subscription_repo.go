package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/repository"
)

type SubscriptionRepo struct{ db *sql.DB }

func NewSubscriptionRepo(db *sql.DB) repository.SubscriptionRepository {
	return &SubscriptionRepo{db: db}
}

func (repo *SubscriptionRepo) ActiveForPublisher(ctx context.Context, publisherID int64) ([]*entity.Subscription, error) {
	const query = `
SELECT id, publisher_id, channel, address, created_at, unsubscribed_at
FROM subscriptions
WHERE publisher_id = $1 AND unsubscribed_at IS NULL
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query, publisherID)
	if err != nil {
		return nil, fmt.Errorf("ActiveForPublisher: %w", err)
	}
	defer func() { _ = rows.Close() }()

	subs := make([]*entity.Subscription, 0, 16)
	for rows.Next() {
		var s entity.Subscription
		if err := rows.Scan(
			&s.ID, &s.PublisherID, &s.Channel, &s.Address, &s.CreatedAt, &s.UnsubscribedAt,
		); err != nil {
			return nil, fmt.Errorf("ActiveForPublisher: %w", err)
		}
		subs = append(subs, &s)
	}
	return subs, rows.Err()
}

func (repo *SubscriptionRepo) Create(ctx context.Context, s *entity.Subscription) error {
	const query = `
INSERT INTO subscriptions (publisher_id, channel, address)
VALUES ($1, $2, $3)
RETURNING id, created_at`
	if err := repo.db.QueryRowContext(ctx, query,
		s.PublisherID, s.Channel, s.Address,
	).Scan(&s.ID, &s.CreatedAt); err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *SubscriptionRepo) Deactivate(ctx context.Context, id int64, at time.Time) (bool, error) {
	const query = `
UPDATE subscriptions SET unsubscribed_at = $2
WHERE id = $1 AND unsubscribed_at IS NULL`
	res, err := repo.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("Deactivate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Deactivate: %w", err)
	}
	return n > 0, nil
}
