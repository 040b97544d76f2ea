package repository

import (
	"context"

	"feedwatch/internal/domain/entity"
)

type CredentialsRepository interface {
	// Get returns entity.ErrNotFound when the publisher has no credentials
	// configured for the channel.
	Get(ctx context.Context, publisherID int64, channel string) (*entity.ChannelCredentials, error)
	Upsert(ctx context.Context, creds *entity.ChannelCredentials) error
}
