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

type EventRepo struct{ db *sqlx.DB }

func NewEventRepo(db *sqlx.DB) repository.EventRepository {
	return &EventRepo{db: db}
}

type eventRow struct {
	ID          int64          `db:"id"`
	PublisherID int64          `db:"publisher_id"`
	FeatureID   string         `db:"feature_id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Properties  sql.NullString `db:"properties"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (repo *EventRepo) CreateIfAbsent(ctx context.Context, ev *entity.Event) (bool, error) {
	createdAt := time.Now().UTC()
	var props any
	if len(ev.Properties) > 0 {
		props = string(ev.Properties)
	}

	var created bool
	err := withLockRetry(ctx, func() error {
		res, err := repo.db.ExecContext(ctx, `
INSERT INTO events (publisher_id, feature_id, title, description, properties, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (publisher_id, feature_id) DO NOTHING`,
			ev.PublisherID, ev.FeatureID, ev.Title, ev.Description, props, createdAt)
		if err != nil {
			return fmt.Errorf("CreateIfAbsent: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("CreateIfAbsent: %w", err)
		}
		if n == 0 {
			return nil
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("CreateIfAbsent: last insert id: %w", err)
		}
		ev.ID, ev.CreatedAt, created = id, createdAt, true
		return nil
	})
	return created, err
}

func (repo *EventRepo) ListByPublisher(ctx context.Context, publisherID int64, limit int) ([]*entity.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []eventRow
	err := repo.db.SelectContext(ctx, &rows, `
SELECT id, publisher_id, feature_id, title, description, properties, created_at
FROM events
WHERE publisher_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`, publisherID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListByPublisher: %w", err)
	}
	events := make([]*entity.Event, len(rows))
	for i, r := range rows {
		events[i] = &entity.Event{
			ID:          r.ID,
			PublisherID: r.PublisherID,
			FeatureID:   r.FeatureID,
			Title:       r.Title,
			Description: r.Description,
			CreatedAt:   r.CreatedAt,
		}
		if r.Properties.Valid {
			events[i].Properties = []byte(r.Properties.String)
		}
	}
	return events, nil
}
