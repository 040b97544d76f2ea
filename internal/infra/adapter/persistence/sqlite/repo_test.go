package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedwatch/internal/domain/entity"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?mode=rwc"
	db, err := Open(context.Background(), Config{DSN: dsn, MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createPublisher(t *testing.T, db *sqlx.DB) *entity.Publisher {
	t.Helper()
	p := &entity.Publisher{Title: "Roadworks", City: "Springfield", Endpoint: "https://feeds.example.com/r.json", Active: true}
	require.NoError(t, NewPublisherRepo(db).Create(context.Background(), p))
	require.NotZero(t, p.ID)
	return p
}

func TestPublisherRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPublisherRepo(db)
	p := createPublisher(t, db)

	got, err := repo.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, got.Title)
	assert.Equal(t, p.City, got.City)
	assert.True(t, got.Active)
	assert.Nil(t, got.Outage)

	_, err = repo.Get(context.Background(), p.ID+100)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestPublisherRepo_OutageLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPublisherRepo(db)
	ctx := context.Background()
	p := createPublisher(t, db)

	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	outage, err := repo.OpenOutage(ctx, p.ID, first, "status 503")
	require.NoError(t, err)
	assert.True(t, outage.StartedAt.Equal(first))
	assert.Equal(t, "status 503", outage.LastError)

	// a second failure keeps the first-seen time and refreshes the error
	second := first.Add(10 * time.Minute)
	outage, err = repo.OpenOutage(ctx, p.ID, second, "connection refused")
	require.NoError(t, err)
	assert.True(t, outage.StartedAt.Equal(first))
	assert.True(t, outage.UpdatedAt.Equal(second))
	assert.Equal(t, "connection refused", outage.LastError)

	inOutage, err := repo.ListInOutage(ctx)
	require.NoError(t, err)
	require.Len(t, inOutage, 1)
	assert.Equal(t, p.ID, inOutage[0].ID)

	closed, err := repo.CloseOutage(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = repo.CloseOutage(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, closed, "closing a clear publisher is a no-op")

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Outage)
}

func TestPublisherRepo_OpenOutage_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := NewPublisherRepo(db).OpenOutage(context.Background(), 999, time.Now(), "boom")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestPublisherRepo_ConcurrentOutageWrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPublisherRepo(db)
	ctx := context.Background()
	p := createPublisher(t, db)

	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err := repo.OpenOutage(ctx, p.ID, first, "initial")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.OpenOutage(ctx, p.ID, first.Add(time.Duration(i+1)*time.Minute), "again")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Outage)
	assert.True(t, got.Outage.StartedAt.Equal(first))
}

func TestPublisherRepo_ListActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPublisherRepo(db)
	ctx := context.Background()

	createPublisher(t, db)
	inactive := &entity.Publisher{Title: "Old", Endpoint: "https://old.example.com/f", Active: false}
	require.NoError(t, repo.Create(ctx, inactive))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Roadworks", active[0].Title)
}

func TestSubscriptionRepo_Deactivate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepo(db)
	ctx := context.Background()
	p := createPublisher(t, db)

	a := &entity.Subscription{PublisherID: p.ID, Channel: entity.ChannelSMS, Address: "+15550001111"}
	b := &entity.Subscription{PublisherID: p.ID, Channel: entity.ChannelTelegram, Address: "12345"}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	active, err := repo.ActiveForPublisher(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	changed, err := repo.Deactivate(ctx, a.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Deactivate(ctx, a.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)

	active, err = repo.ActiveForPublisher(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)
}

func TestEventRepo_CreateIfAbsent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepo(db)
	ctx := context.Background()
	p := createPublisher(t, db)

	ev := &entity.Event{PublisherID: p.ID, FeatureID: "f-1", Title: "Road closed", Properties: json.RawMessage(`{"a":1}`)}
	created, err := repo.CreateIfAbsent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, ev.ID)
	assert.False(t, ev.CreatedAt.IsZero())

	dup := &entity.Event{PublisherID: p.ID, FeatureID: "f-1", Title: "Road closed (updated)"}
	created, err = repo.CreateIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, dup.ID)

	events, err := repo.ListByPublisher(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Road closed", events[0].Title)
	assert.JSONEq(t, `{"a":1}`, string(events[0].Properties))
}

func TestCredentialsRepo_UpsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialsRepo(db)
	ctx := context.Background()
	p := createPublisher(t, db)

	_, err := repo.Get(ctx, p.ID, entity.ChannelSMS)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	creds := &entity.ChannelCredentials{PublisherID: p.ID, Channel: entity.ChannelSMS, AccountSID: "AC1", AuthToken: "t1", FromNumber: "+1555"}
	require.NoError(t, repo.Upsert(ctx, creds))

	creds.AuthToken = "t2"
	require.NoError(t, repo.Upsert(ctx, creds))

	got, err := repo.Get(ctx, p.ID, entity.ChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, "t2", got.AuthToken)
	assert.Equal(t, "AC1", got.AccountSID)
}

func TestIsLockError(t *testing.T) {
	assert.False(t, isLockError(nil))
	assert.True(t, isLockError(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, isLockError(errors.New("UNIQUE constraint failed")))
}

func TestWithLockRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := withLockRetry(ctx, func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	critical := errors.New("no such table: publishers")
	err = withLockRetry(ctx, func() error {
		calls++
		return critical
	})
	assert.ErrorIs(t, err, critical)
	assert.Equal(t, 1, calls)
}
