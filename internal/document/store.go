package document

import "context"

// Store is the metadata-store boundary. Each call succeeds with the row or
// fails with a classified error: ErrNotFound, ErrConflict, or the bare store
// error for unavailability.
type Store interface {
	Insert(ctx context.Context, doc *Document) error
	Find(ctx context.Context, id string) (*Document, error)
	Delete(ctx context.Context, id string) error
	// RecordExists verifies the owning medical record reference before an
	// upload is accepted.
	RecordExists(ctx context.Context, recordID string) (bool, error)
}
