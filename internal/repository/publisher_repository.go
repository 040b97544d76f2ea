package repository

import (
	"context"
	"time"

	"feedwatch/internal/domain/entity"
)

// PublisherRepository persists publishers and their outage state.
//
// OpenOutage and CloseOutage are single-row atomic updates so that overlapping
// polls for the same publisher can never lose an outage transition.
type PublisherRepository interface {
	Get(ctx context.Context, id int64) (*entity.Publisher, error)
	ListActive(ctx context.Context) ([]*entity.Publisher, error)
	ListInOutage(ctx context.Context) ([]*entity.Publisher, error)
	Create(ctx context.Context, publisher *entity.Publisher) error
	// OpenOutage opens an outage or refreshes the error of an already open one.
	// The first-seen timestamp of an open outage is preserved.
	OpenOutage(ctx context.Context, id int64, at time.Time, lastError string) (*entity.Outage, error)
	// CloseOutage clears the outage and reports whether one was open.
	CloseOutage(ctx context.Context, id int64) (bool, error)
}
