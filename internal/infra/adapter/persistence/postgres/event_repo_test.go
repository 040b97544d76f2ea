package postgres_test

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/infra/adapter/persistence/postgres"
)

func TestEventRepo_CreateIfAbsent_Inserted(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	props := json.RawMessage(`{"severity":"high"}`)
	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (publisher_id, feature_id) DO NOTHING`)).
		WithArgs(int64(7), "f-1", "Road closed", "", []byte(props)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(100, now))

	repo := postgres.NewEventRepo(db)
	ev := &entity.Event{PublisherID: 7, FeatureID: "f-1", Title: "Road closed", Properties: props}
	created, err := repo.CreateIfAbsent(context.Background(), ev)
	if err != nil {
		t.Fatalf("CreateIfAbsent err=%v", err)
	}
	if !created || ev.ID != 100 {
		t.Fatalf("CreateIfAbsent created=%v id=%d", created, ev.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestEventRepo_CreateIfAbsent_Duplicate(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`INSERT INTO events`).
		WithArgs(int64(7), "f-1", "Road closed", "", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

	repo := postgres.NewEventRepo(db)
	ev := &entity.Event{PublisherID: 7, FeatureID: "f-1", Title: "Road closed"}
	created, err := repo.CreateIfAbsent(context.Background(), ev)
	if err != nil {
		t.Fatalf("CreateIfAbsent err=%v", err)
	}
	if created {
		t.Fatal("duplicate feature must not be reported as created")
	}
}

func TestEventRepo_ListByPublisher(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "publisher_id", "feature_id", "title", "description", "properties", "created_at"}).
		AddRow(2, 7, "f-2", "Second", "", []byte(`{}`), now).
		AddRow(1, 7, "f-1", "First", "desc", nil, now.Add(-time.Minute))
	mock.ExpectQuery(`FROM events`).
		WithArgs(int64(7), 10).
		WillReturnRows(rows)

	repo := postgres.NewEventRepo(db)
	events, err := repo.ListByPublisher(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("ListByPublisher err=%v", err)
	}
	if len(events) != 2 || events[0].FeatureID != "f-2" {
		t.Fatalf("unexpected events: %+v", events)
	}
}
