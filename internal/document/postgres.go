package document

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var _ Store = (*PGStore)(nil)

// PGStore implements the metadata Store over PostgreSQL.
type PGStore struct {
	db *sql.DB
}

// Open connects to PostgreSQL with pool defaults tuned for a small service.
func Open(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PGStore{db: db}, nil
}

// NewPGStore wraps an existing connection pool.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) DB() *sql.DB { return s.db }

func (s *PGStore) Insert(ctx context.Context, doc *Document) error {
	_, err := s.db.ExecContext(ctx, `
		insert into documents(id, record_id, filename, mime_type, size, storage_path, iv, auth_tag, uploaded_by, uploaded_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, doc.ID, doc.RecordID, doc.Filename, doc.MIMEType, doc.Size,
		doc.StoragePath, doc.IV, doc.Tag, doc.UploadedBy, doc.UploadedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, record_id, filename, mime_type, size, storage_path, iv, auth_tag, uploaded_by, uploaded_at
		from documents where id=$1
	`, id)
	var doc Document
	err := row.Scan(&doc.ID, &doc.RecordID, &doc.Filename, &doc.MIMEType, &doc.Size,
		&doc.StoragePath, &doc.IV, &doc.Tag, &doc.UploadedBy, &doc.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from documents where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) RecordExists(ctx context.Context, recordID string) (bool, error) {
	var dummy int
	err := s.db.QueryRowContext(ctx,
		`select 1 from medical_records where id=$1`, recordID).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// isUniqueViolation matches the Postgres unique_violation SQLSTATE without
// binding this package to the driver's error type.
func isUniqueViolation(err error) bool {
	type sqlState interface{ SQLState() string }
	var state sqlState
	if errors.As(err, &state) {
		return state.SQLState() == "23505"
	}
	return false
}
