package repository

import (
	"context"

	"feedwatch/internal/domain/entity"
)

type EventRepository interface {
	// CreateIfAbsent inserts the event unless one with the same
	// (publisher_id, feature_id) already exists. On insert it fills ID and
	// CreatedAt and returns true.
	CreateIfAbsent(ctx context.Context, event *entity.Event) (bool, error)
	ListByPublisher(ctx context.Context, publisherID int64, limit int) ([]*entity.Event, error)
}
