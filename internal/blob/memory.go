package blob

import (
	"context"
	"sync"
)

var _ Store = (*InMemory)(nil)

// InMemory implements Store in process memory for tests and local use.
type InMemory struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	// FailPut, FailGet and FailRemove, when set, override the next matching
	// call. Tests use them to simulate independent store failures.
	FailPut    error
	FailGet    error
	FailRemove error
}

func NewInMemory() *InMemory {
	return &InMemory{blobs: make(map[string][]byte)}
}

func (s *InMemory) Put(ctx context.Context, locator string, data []byte) error {
	if s.FailPut != nil {
		return s.FailPut
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[locator]; ok {
		return ErrAlreadyExists
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[locator] = cp
	return nil
}

func (s *InMemory) Get(ctx context.Context, locator string) ([]byte, error) {
	if s.FailGet != nil {
		return nil, s.FailGet
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[locator]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *InMemory) Remove(ctx context.Context, locator string) error {
	if s.FailRemove != nil {
		return s.FailRemove
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[locator]; !ok {
		return ErrNotFound
	}
	delete(s.blobs, locator)
	return nil
}

// Len reports the number of stored blobs.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
