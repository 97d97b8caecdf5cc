package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var _ ProfileStore = (*PGProfiles)(nil)

// PGProfiles implements ProfileStore over PostgreSQL.
type PGProfiles struct {
	db *sql.DB
}

func NewPGProfiles(db *sql.DB) *PGProfiles {
	return &PGProfiles{db: db}
}

const profileColumns = `id, email, full_name, role, password_hash, status, created_at, updated_at`

func (s *PGProfiles) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+profileColumns+` from users where id=$1`, id)
	return scanProfile(row)
}

func (s *PGProfiles) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+profileColumns+` from users where email=$1`, email)
	return scanProfile(row)
}

func scanProfile(row *sql.Row) (*User, error) {
	var (
		u       User
		rawRole string
	)
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &rawRole, &u.PasswordHash,
		&u.Status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	role, ok := ParseRole(rawRole)
	if !ok {
		return nil, fmt.Errorf("stored role %q is not in the role set", rawRole)
	}
	u.Role = role
	return &u, nil
}
