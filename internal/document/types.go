// Package document is the custody orchestrator for encrypted clinical
// attachments. It sequences the encryption engine with two independently
// failing resources, the blob store and the metadata store, so that no
// observable inconsistent state survives a partial failure.
package document

import (
	"errors"
	"time"

	"medivault.org/internal/filecrypt"
)

// MaxUploadSize caps raw upload bytes at 50 MiB.
const MaxUploadSize = 50 << 20

var (
	// ErrNotFound covers both a truly absent document and one the caller may
	// not see. The two are intentionally indistinguishable to avoid leaking
	// existence.
	ErrNotFound = errors.New("document: not found")
	// ErrConflict indicates a metadata row collision.
	ErrConflict = errors.New("document: conflict")
	// ErrInvalidInput indicates malformed upload input.
	ErrInvalidInput = errors.New("document: invalid input")
	// ErrTooLarge indicates the upload exceeds MaxUploadSize.
	ErrTooLarge = errors.New("document: file too large")
	// ErrStorageWrite / ErrStorageRead classify backing-store failures.
	ErrStorageWrite = errors.New("document: storage write failed")
	ErrStorageRead  = errors.New("document: storage read failed")
	// ErrStorageTimeout classifies any storage step exceeding its bound.
	ErrStorageTimeout = errors.New("document: storage timeout")
)

// ErrIntegrity is the decryption tag mismatch from the encryption engine.
// Surfaced unchanged so callers can treat it as corruption, never as success.
var ErrIntegrity = filecrypt.ErrIntegrity

// Document is the metadata row for one encrypted attachment. The invariant the
// orchestrator upholds: a row exists iff a blob exists at StoragePath.
type Document struct {
	ID          string    `json:"id"`
	RecordID    string    `json:"record_id"`
	Filename    string    `json:"filename"`
	MIMEType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	StoragePath string    `json:"-"`
	IV          string    `json:"-"`
	Tag         string    `json:"-"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
