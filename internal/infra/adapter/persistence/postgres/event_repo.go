package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/repository"
)

const defaultEventLimit = 50

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) repository.EventRepository {
	return &EventRepo{db: db}
}

// CreateIfAbsent relies on the (publisher_id, feature_id) unique index.
// ON CONFLICT DO NOTHING returns no row when the event already exists.
func (repo *EventRepo) CreateIfAbsent(ctx context.Context, ev *entity.Event) (bool, error) {
	const query = `
INSERT INTO events (publisher_id, feature_id, title, description, properties)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (publisher_id, feature_id) DO NOTHING
RETURNING id, created_at`
	var props any
	if len(ev.Properties) > 0 {
		props = []byte(ev.Properties)
	}
	err := repo.db.QueryRowContext(ctx, query,
		ev.PublisherID, ev.FeatureID, ev.Title, ev.Description, props,
	).Scan(&ev.ID, &ev.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("CreateIfAbsent: %w", err)
	}
	return true, nil
}

func (repo *EventRepo) ListByPublisher(ctx context.Context, publisherID int64, limit int) ([]*entity.Event, error) {
	const query = `
SELECT id, publisher_id, feature_id, title, description, properties, created_at
FROM events
WHERE publisher_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`
	if limit <= 0 {
		limit = defaultEventLimit
	}
	rows, err := repo.db.QueryContext(ctx, query, publisherID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListByPublisher: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]*entity.Event, 0, limit)
	for rows.Next() {
		var (
			ev    entity.Event
			props []byte
		)
		if err := rows.Scan(
			&ev.ID, &ev.PublisherID, &ev.FeatureID, &ev.Title, &ev.Description, &props, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ListByPublisher: %w", err)
		}
		ev.Properties = props
		events = append(events, &ev)
	}
	return events, rows.Err()
}
