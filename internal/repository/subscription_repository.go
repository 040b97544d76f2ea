package repository

import (
	"context"
	"time"

	"feedwatch/internal/domain/entity"
)

type SubscriptionRepository interface {
	ActiveForPublisher(ctx context.Context, publisherID int64) ([]*entity.Subscription, error)
	Create(ctx context.Context, sub *entity.Subscription) error
	// Deactivate sets unsubscribed_at if the subscription is still active and
	// reports whether a row changed.
	Deactivate(ctx context.Context, id int64, at time.Time) (bool, error)
}
