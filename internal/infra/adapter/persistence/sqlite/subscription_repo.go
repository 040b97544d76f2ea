package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/repository"
)

type SubscriptionRepo struct{ db *sqlx.DB }

func NewSubscriptionRepo(db *sqlx.DB) repository.SubscriptionRepository {
	return &SubscriptionRepo{db: db}
}

type subscriptionRow struct {
	ID             int64        `db:"id"`
	PublisherID    int64        `db:"publisher_id"`
	Channel        string       `db:"channel"`
	Address        string       `db:"address"`
	CreatedAt      time.Time    `db:"created_at"`
	UnsubscribedAt sql.NullTime `db:"unsubscribed_at"`
}

func (r *subscriptionRow) toDomain() *entity.Subscription {
	s := &entity.Subscription{
		ID:          r.ID,
		PublisherID: r.PublisherID,
		Channel:     r.Channel,
		Address:     r.Address,
		CreatedAt:   r.CreatedAt,
	}
	if r.UnsubscribedAt.Valid {
		t := r.UnsubscribedAt.Time
		s.UnsubscribedAt = &t
	}
	return s
}

func (repo *SubscriptionRepo) ActiveForPublisher(ctx context.Context, publisherID int64) ([]*entity.Subscription, error) {
	var rows []subscriptionRow
	err := repo.db.SelectContext(ctx, &rows, `
SELECT id, publisher_id, channel, address, created_at, unsubscribed_at
FROM subscriptions
WHERE publisher_id = ? AND unsubscribed_at IS NULL
ORDER BY id`, publisherID)
	if err != nil {
		return nil, fmt.Errorf("ActiveForPublisher: %w", err)
	}
	subs := make([]*entity.Subscription, len(rows))
	for i := range rows {
		subs[i] = rows[i].toDomain()
	}
	return subs, nil
}

func (repo *SubscriptionRepo) Create(ctx context.Context, s *entity.Subscription) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return withLockRetry(ctx, func() error {
		res, err := repo.db.ExecContext(ctx,
			`INSERT INTO subscriptions (publisher_id, channel, address, created_at) VALUES (?, ?, ?, ?)`,
			s.PublisherID, s.Channel, s.Address, s.CreatedAt)
		if err != nil {
			return fmt.Errorf("Create: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("Create: last insert id: %w", err)
		}
		s.ID = id
		return nil
	})
}

func (repo *SubscriptionRepo) Deactivate(ctx context.Context, id int64, at time.Time) (bool, error) {
	var changed bool
	err := withLockRetry(ctx, func() error {
		res, err := repo.db.ExecContext(ctx,
			`UPDATE subscriptions SET unsubscribed_at = ? WHERE id = ? AND unsubscribed_at IS NULL`,
			at.UTC(), id)
		if err != nil {
			return fmt.Errorf("Deactivate: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("Deactivate: %w", err)
		}
		changed = n > 0
		return nil
	})
	return changed, err
}
