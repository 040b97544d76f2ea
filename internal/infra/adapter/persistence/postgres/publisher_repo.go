package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/repository"
)

type PublisherRepo struct{ db *sql.DB }

func NewPublisherRepo(db *sql.DB) repository.PublisherRepository {
	return &PublisherRepo{db: db}
}

const publisherColumns = `id, title, city, endpoint, active,
       outage_started_at, outage_updated_at, outage_last_error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPublisher(row rowScanner) (*entity.Publisher, error) {
	var (
		p         entity.Publisher
		startedAt sql.NullTime
		updatedAt sql.NullTime
		lastError sql.NullString
	)
	if err := row.Scan(
		&p.ID, &p.Title, &p.City, &p.Endpoint, &p.Active,
		&startedAt, &updatedAt, &lastError,
	); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		p.Outage = &entity.Outage{
			StartedAt: startedAt.Time,
			UpdatedAt: updatedAt.Time,
			LastError: lastError.String,
		}
	}
	return &p, nil
}

func (repo *PublisherRepo) Get(ctx context.Context, id int64) (*entity.Publisher, error) {
	query := `
SELECT ` + publisherColumns + `
FROM publishers
WHERE id = $1
LIMIT 1`
	p, err := scanPublisher(repo.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Get: publisher %d: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return p, nil
}

func (repo *PublisherRepo) ListActive(ctx context.Context) ([]*entity.Publisher, error) {
	query := `
SELECT ` + publisherColumns + `
FROM publishers
WHERE active = TRUE
ORDER BY id ASC`
	return repo.list(ctx, "ListActive", query)
}

func (repo *PublisherRepo) ListInOutage(ctx context.Context) ([]*entity.Publisher, error) {
	query := `
SELECT ` + publisherColumns + `
FROM publishers
WHERE outage_started_at IS NOT NULL
ORDER BY outage_started_at ASC, id ASC`
	return repo.list(ctx, "ListInOutage", query)
}

func (repo *PublisherRepo) list(ctx context.Context, op, query string) ([]*entity.Publisher, error) {
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	publishers := make([]*entity.Publisher, 0, 32)
	for rows.Next() {
		p, err := scanPublisher(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		publishers = append(publishers, p)
	}
	return publishers, rows.Err()
}

func (repo *PublisherRepo) Create(ctx context.Context, p *entity.Publisher) error {
	const query = `
INSERT INTO publishers (title, city, endpoint, active)
VALUES ($1, $2, $3, $4)
RETURNING id`
	if err := repo.db.QueryRowContext(ctx, query,
		p.Title, p.City, p.Endpoint, p.Active,
	).Scan(&p.ID); err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// OpenOutage keeps outage_started_at when an outage is already open so that
// repeated failures only refresh the error and the update time.
func (repo *PublisherRepo) OpenOutage(ctx context.Context, id int64, at time.Time, lastError string) (*entity.Outage, error) {
	const query = `
UPDATE publishers SET
       outage_started_at = COALESCE(outage_started_at, $2),
       outage_updated_at = $2,
       outage_last_error = $3
WHERE id = $1
RETURNING outage_started_at, outage_updated_at, outage_last_error`
	var o entity.Outage
	err := repo.db.QueryRowContext(ctx, query, id, at, lastError).
		Scan(&o.StartedAt, &o.UpdatedAt, &o.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("OpenOutage: publisher %d: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("OpenOutage: %w", err)
	}
	return &o, nil
}

func (repo *PublisherRepo) CloseOutage(ctx context.Context, id int64) (bool, error) {
	const query = `
UPDATE publishers SET
       outage_started_at = NULL,
       outage_updated_at = NULL,
       outage_last_error = NULL
WHERE id = $1 AND outage_started_at IS NOT NULL`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("CloseOutage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("CloseOutage: %w", err)
	}
	return n > 0, nil
}
