package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/repository"
)

type PublisherRepo struct{ db *sqlx.DB }

func NewPublisherRepo(db *sqlx.DB) repository.PublisherRepository {
	return &PublisherRepo{db: db}
}

type publisherRow struct {
	ID              int64          `db:"id"`
	Title           string         `db:"title"`
	City            string         `db:"city"`
	Endpoint        string         `db:"endpoint"`
	Active          bool           `db:"active"`
	OutageStartedAt sql.NullTime   `db:"outage_started_at"`
	OutageUpdatedAt sql.NullTime   `db:"outage_updated_at"`
	OutageLastError sql.NullString `db:"outage_last_error"`
}

func (r *publisherRow) toDomain() *entity.Publisher {
	p := &entity.Publisher{
		ID:       r.ID,
		Title:    r.Title,
		City:     r.City,
		Endpoint: r.Endpoint,
		Active:   r.Active,
	}
	if r.OutageStartedAt.Valid {
		p.Outage = &entity.Outage{
			StartedAt: r.OutageStartedAt.Time,
			UpdatedAt: r.OutageUpdatedAt.Time,
			LastError: r.OutageLastError.String,
		}
	}
	return p
}

const selectPublisher = `
SELECT id, title, city, endpoint, active,
       outage_started_at, outage_updated_at, outage_last_error
FROM publishers`

func (repo *PublisherRepo) Get(ctx context.Context, id int64) (*entity.Publisher, error) {
	var row publisherRow
	err := repo.db.GetContext(ctx, &row, selectPublisher+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Get: publisher %d: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return row.toDomain(), nil
}

func (repo *PublisherRepo) ListActive(ctx context.Context) ([]*entity.Publisher, error) {
	return repo.list(ctx, "ListActive", selectPublisher+` WHERE active = 1 ORDER BY id`)
}

func (repo *PublisherRepo) ListInOutage(ctx context.Context) ([]*entity.Publisher, error) {
	return repo.list(ctx, "ListInOutage",
		selectPublisher+` WHERE outage_started_at IS NOT NULL ORDER BY outage_started_at, id`)
}

func (repo *PublisherRepo) list(ctx context.Context, op, query string) ([]*entity.Publisher, error) {
	var rows []publisherRow
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	publishers := make([]*entity.Publisher, len(rows))
	for i := range rows {
		publishers[i] = rows[i].toDomain()
	}
	return publishers, nil
}

func (repo *PublisherRepo) Create(ctx context.Context, p *entity.Publisher) error {
	return withLockRetry(ctx, func() error {
		res, err := repo.db.ExecContext(ctx,
			`INSERT INTO publishers (title, city, endpoint, active) VALUES (?, ?, ?, ?)`,
			p.Title, p.City, p.Endpoint, p.Active)
		if err != nil {
			return fmt.Errorf("Create: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("Create: last insert id: %w", err)
		}
		p.ID = id
		return nil
	})
}

// OpenOutage updates the row in a single statement; the read afterwards only
// reports the stored state.
func (repo *PublisherRepo) OpenOutage(ctx context.Context, id int64, at time.Time, lastError string) (*entity.Outage, error) {
	err := withLockRetry(ctx, func() error {
		res, err := repo.db.ExecContext(ctx, `
UPDATE publishers SET
       outage_started_at = COALESCE(outage_started_at, ?),
       outage_updated_at = ?,
       outage_last_error = ?
WHERE id = ?`, at.UTC(), at.UTC(), lastError, id)
		if err != nil {
			return fmt.Errorf("OpenOutage: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("OpenOutage: publisher %d: %w", id, entity.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p, err := repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("OpenOutage: %w", err)
	}
	if p.Outage == nil {
		// closed by a concurrent poll between the update and the read
		return &entity.Outage{StartedAt: at, UpdatedAt: at, LastError: lastError}, nil
	}
	return p.Outage, nil
}

func (repo *PublisherRepo) CloseOutage(ctx context.Context, id int64) (bool, error) {
	var closed bool
	err := withLockRetry(ctx, func() error {
		res, err := repo.db.ExecContext(ctx, `
UPDATE publishers SET
       outage_started_at = NULL,
       outage_updated_at = NULL,
       outage_last_error = NULL
WHERE id = ? AND outage_started_at IS NOT NULL`, id)
		if err != nil {
			return fmt.Errorf("CloseOutage: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("CloseOutage: %w", err)
		}
		closed = n > 0
		return nil
	})
	return closed, err
}
