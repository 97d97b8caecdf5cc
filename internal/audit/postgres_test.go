package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`insert into audit_logs`).
		WithArgs("e-1", "u-1", "create", "document", "doc-1", "203.0.113.9", "agent/1.0",
			[]byte(`{"filename":"scan.pdf"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	err = store.Append(context.Background(), &Entry{
		ID:           "e-1",
		ActorID:      "u-1",
		Action:       ActionCreate,
		ResourceType: "document",
		ResourceID:   "doc-1",
		IPAddress:    "203.0.113.9",
		UserAgent:    "agent/1.0",
		Details:      map[string]any{"filename": "scan.pdf"},
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreListWithFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`select count\(\*\) from audit_logs where actor_id = \$1 and action = \$2 and created_at >= \$3`).
		WithArgs("u-1", "download", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows([]string{"id", "actor_id", "action", "resource_type", "resource_id", "ip_address", "user_agent", "details", "created_at"}).
		AddRow("e-1", "u-1", "download", "document", "doc-1", "203.0.113.9", "agent/1.0",
			[]byte(`{"filename":"scan.pdf"}`), from.Add(time.Hour))
	mock.ExpectQuery(`order by created_at desc`).
		WithArgs("u-1", "download", from, 25, 0).
		WillReturnRows(rows)

	store := NewPGStore(db)
	result, err := store.List(context.Background(), ListFilter{
		ActorID: "u-1",
		Action:  ActionDownload,
		From:    from,
		Page:    1,
		Limit:   25,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("result = %+v", result)
	}
	got := result.Entries[0]
	if got.Action != ActionDownload || got.Details["filename"] != "scan.pdf" {
		t.Fatalf("entry = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreListUnfiltered(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`select count\(\*\) from audit_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`order by created_at desc`).
		WithArgs(50, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor_id", "action", "resource_type", "resource_id", "ip_address", "user_agent", "details", "created_at"}))

	store := NewPGStore(db)
	result, err := store.List(context.Background(), ListFilter{Page: 2, Limit: 50})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 0 || len(result.Entries) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
