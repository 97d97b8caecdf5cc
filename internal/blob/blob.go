// Package blob defines the encrypted-blob store boundary. Locators are opaque
// path-like strings scoped under a per-record prefix; the store never sees
// plaintext or keys.
package blob

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("blob: not found")
	ErrAlreadyExists  = errors.New("blob: already exists")
	ErrInvalidLocator = errors.New("blob: invalid locator")
)

// Store is the external blob resource. Implementations fail independently of
// the metadata store; the document orchestrator reconciles the two.
type Store interface {
	Put(ctx context.Context, locator string, data []byte) error
	Get(ctx context.Context, locator string) ([]byte, error)
	Remove(ctx context.Context, locator string) error
}
