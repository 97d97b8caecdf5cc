package document

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"medivault.org/internal/audit"
	"medivault.org/internal/auth"
	"medivault.org/internal/blob"
	"medivault.org/internal/filecrypt"
	"medivault.org/internal/ids"
	"medivault.org/internal/obs"
)

const defaultStorageTimeout = 10 * time.Second

// Service orchestrates upload, download and delete across the blob store and
// the metadata store. Dependencies are injected once at process start; the
// service holds no per-request mutable state.
type Service struct {
	store    Store
	blobs    blob.Store
	engine   *filecrypt.Engine
	recorder *audit.Recorder
	timeout  time.Duration
	now      func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithStorageTimeout bounds every blob and metadata call.
func WithStorageTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the orchestrator.
func NewService(store Store, blobs blob.Store, engine *filecrypt.Engine, recorder *audit.Recorder, opts ...Option) (*Service, error) {
	if store == nil || blobs == nil || engine == nil || recorder == nil {
		return nil, errors.New("document: store, blob store, engine and recorder are required")
	}
	svc := &Service{
		store:    store,
		blobs:    blobs,
		engine:   engine,
		recorder: recorder,
		timeout:  defaultStorageTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// UploadInput is the upload operation surface.
type UploadInput struct {
	RecordID string
	Filename string
	MIMEType string
	Data     []byte
}

// Upload runs the write state machine: Validated, BlobWritten, MetadataWritten,
// with a compensating blob delete when the metadata insert fails. On success
// the caller gets metadata only, never ciphertext or key material.
func (s *Service) Upload(ctx context.Context, actor auth.Identity, in UploadInput) (*Document, error) {
	// Validated
	recordID := strings.TrimSpace(in.RecordID)
	filename := strings.TrimSpace(in.Filename)
	if recordID == "" {
		return nil, fmt.Errorf("%w: record reference is required", ErrInvalidInput)
	}
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if int64(len(in.Data)) > MaxUploadSize {
		return nil, ErrTooLarge
	}
	exists, err := s.recordExists(ctx, recordID)
	if err != nil {
		obs.ObserveDocumentOp("upload", "error")
		return nil, err
	}
	if !exists {
		obs.ObserveDocumentOp("upload", "not_found")
		return nil, ErrNotFound
	}

	env, err := s.engine.Encrypt(in.Data)
	if err != nil {
		obs.ObserveDocumentOp("upload", "error")
		return nil, err
	}
	name, err := filecrypt.NewLocator(filename)
	if err != nil {
		obs.ObserveDocumentOp("upload", "error")
		return nil, err
	}
	locator := "medical-records/" + recordID + "/" + name

	// BlobWritten. Failure here is terminal: no metadata row exists yet, so
	// the existence invariant holds trivially.
	if err := s.putBlob(ctx, locator, env.Ciphertext); err != nil {
		obs.ObserveDocumentOp("upload", "storage_error")
		return nil, err
	}

	doc := &Document{
		ID:          ids.New(),
		RecordID:    recordID,
		Filename:    filename,
		MIMEType:    in.MIMEType,
		Size:        int64(len(in.Data)),
		StoragePath: locator,
		IV:          hex.EncodeToString(env.IV),
		Tag:         hex.EncodeToString(env.Tag),
		UploadedBy:  actor.ID,
		UploadedAt:  s.now().UTC(),
	}

	// MetadataWritten, or compensate.
	if err := s.insertMetadata(ctx, doc); err != nil {
		s.compensateBlob(ctx, doc.ID, locator)
		obs.ObserveDocumentOp("upload", "storage_error")
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		ActorID:      actor.ID,
		Action:       audit.ActionCreate,
		ResourceType: "file",
		ResourceID:   doc.ID,
		Details:      map[string]any{"filename": filename, "size": doc.Size},
	})
	obs.ObserveDocumentOp("upload", "success")
	return doc, nil
}

// DownloadResult carries decrypted bytes plus presentation metadata.
type DownloadResult struct {
	Data     []byte
	Filename string
	MIMEType string
}

// Download fetches, decrypts and audits one document. A tag mismatch fails
// with ErrIntegrity and emits zero bytes.
func (s *Service) Download(ctx context.Context, actor auth.Identity, id string) (DownloadResult, error) {
	doc, err := s.findMetadata(ctx, id)
	if err != nil {
		obs.ObserveDocumentOp("download", "not_found")
		return DownloadResult{}, err
	}

	ciphertext, err := s.getBlob(ctx, doc.StoragePath)
	if err != nil {
		obs.ObserveDocumentOp("download", "storage_error")
		return DownloadResult{}, err
	}

	iv, ivErr := hex.DecodeString(doc.IV)
	tag, tagErr := hex.DecodeString(doc.Tag)
	if ivErr != nil || tagErr != nil {
		obs.ObserveDocumentOp("download", "integrity_error")
		return DownloadResult{}, ErrIntegrity
	}
	plaintext, err := s.engine.Decrypt(filecrypt.Envelope{Ciphertext: ciphertext, IV: iv, Tag: tag})
	if err != nil {
		obs.ObserveDocumentOp("download", "integrity_error")
		return DownloadResult{}, err
	}

	s.recorder.Record(ctx, audit.Entry{
		ActorID:      actor.ID,
		Action:       audit.ActionDownload,
		ResourceType: "file",
		ResourceID:   doc.ID,
		Details:      map[string]any{"filename": doc.Filename},
	})
	obs.ObserveDocumentOp("download", "success")
	return DownloadResult{Data: plaintext, Filename: doc.Filename, MIMEType: doc.MIMEType}, nil
}

// Get returns document metadata without touching the blob store.
func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.findMetadata(ctx, id)
}

// Delete removes the blob first, then the metadata row. A failed blob removal
// is logged and the row is deleted anyway: "delete" means unrecoverable to
// all callers even when physical cleanup must be retried out of band. The
// delete audit record is written regardless of which sub-step failed.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id string) error {
	doc, err := s.findMetadata(ctx, id)
	if err != nil {
		obs.ObserveDocumentOp("delete", "not_found")
		return err
	}

	details := map[string]any{"filename": doc.Filename}
	if err := s.removeBlob(ctx, doc.StoragePath); err != nil {
		details["failed_step"] = "blob_remove"
		obs.LogError("blob removal failed during delete", map[string]any{
			"document_id": doc.ID,
			"locator":     doc.StoragePath,
			"error":       err.Error(),
		})
	}

	if err := s.deleteMetadata(ctx, doc.ID); err != nil {
		details["failed_step"] = "metadata_delete"
		s.recorder.Record(ctx, audit.Entry{
			ActorID:      actor.ID,
			Action:       audit.ActionDelete,
			ResourceType: "file",
			ResourceID:   doc.ID,
			Details:      details,
		})
		obs.ObserveDocumentOp("delete", "storage_error")
		return err
	}

	s.recorder.Record(ctx, audit.Entry{
		ActorID:      actor.ID,
		Action:       audit.ActionDelete,
		ResourceType: "file",
		ResourceID:   doc.ID,
		Details:      details,
	})
	obs.ObserveDocumentOp("delete", "success")
	return nil
}

// --- bounded storage steps ---

func (s *Service) recordExists(ctx context.Context, recordID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	exists, err := s.store.RecordExists(ctx, recordID)
	if err != nil {
		return false, classifyRead(err)
	}
	return exists, nil
}

func (s *Service) putBlob(ctx context.Context, locator string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.blobs.Put(ctx, locator, data); err != nil {
		if timedOut(err) {
			return fmt.Errorf("%w: blob put", ErrStorageTimeout)
		}
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

func (s *Service) getBlob(ctx context.Context, locator string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	data, err := s.blobs.Get(ctx, locator)
	if err != nil {
		if timedOut(err) {
			return nil, fmt.Errorf("%w: blob get", ErrStorageTimeout)
		}
		if errors.Is(err, blob.ErrNotFound) {
			// Metadata without a blob violates the existence invariant.
			// Surface a read failure and leave a trace for operators.
			obs.LogError("metadata row without blob", map[string]any{"locator": locator})
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	return data, nil
}

func (s *Service) removeBlob(ctx context.Context, locator string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := s.blobs.Remove(ctx, locator)
	if err != nil && timedOut(err) {
		return fmt.Errorf("%w: blob remove", ErrStorageTimeout)
	}
	return err
}

func (s *Service) insertMetadata(ctx context.Context, doc *Document) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Insert(ctx, doc); err != nil {
		if timedOut(err) {
			return fmt.Errorf("%w: metadata insert", ErrStorageTimeout)
		}
		if errors.Is(err, ErrConflict) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

func (s *Service) findMetadata(ctx context.Context, id string) (*Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	doc, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, classifyRead(err)
	}
	return doc, nil
}

func (s *Service) deleteMetadata(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Delete(ctx, id); err != nil {
		if timedOut(err) {
			return fmt.Errorf("%w: metadata delete", ErrStorageTimeout)
		}
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

// compensateBlob undoes the blob write after a failed metadata insert. A
// failed compensation leaves a detectable orphan, which beats a false
// success: the request still fails with the original metadata error.
func (s *Service) compensateBlob(ctx context.Context, docID, locator string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.blobs.Remove(cctx, locator); err != nil {
		obs.ObserveOrphanedBlob()
		obs.LogError("orphaned blob: compensating delete failed", map[string]any{
			"document_id": docID,
			"locator":     locator,
			"error":       err.Error(),
		})
	}
}

func classifyRead(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case timedOut(err):
		return fmt.Errorf("%w: metadata read", ErrStorageTimeout)
	default:
		return fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
}

func timedOut(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
