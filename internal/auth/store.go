package auth

import "context"

// ProfileStore resolves verified subject ids to stored profiles. The core
// treats it as a black box; the Postgres implementation lives in postgres.go
// and an in-memory one in memory.go.
type ProfileStore interface {
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}
