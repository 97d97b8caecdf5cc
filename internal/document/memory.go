package document

import (
	"context"
	"sync"
)

var _ Store = (*InMemory)(nil)

// InMemory implements Store in process memory for tests and local use.
type InMemory struct {
	mu      sync.RWMutex
	docs    map[string]*Document
	records map[string]struct{}

	// FailInsert and FailDelete, when set, override the next matching call.
	FailInsert error
	FailDelete error
}

func NewInMemory() *InMemory {
	return &InMemory{
		docs:    make(map[string]*Document),
		records: make(map[string]struct{}),
	}
}

// AddRecord registers a medical record reference uploads may attach to.
func (s *InMemory) AddRecord(recordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordID] = struct{}{}
}

func (s *InMemory) Insert(ctx context.Context, doc *Document) error {
	if s.FailInsert != nil {
		return s.FailInsert
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return ErrConflict
	}
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *InMemory) Find(ctx context.Context, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *InMemory) Delete(ctx context.Context, id string) error {
	if s.FailDelete != nil {
		return s.FailDelete
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *InMemory) RecordExists(ctx context.Context, recordID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[recordID]
	return ok, nil
}
