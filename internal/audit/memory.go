package audit

import (
	"context"
	"sync"
)

var _ Store = (*InMemory)(nil)

// InMemory implements Store in process memory. Append only, like the real
// thing: there is no way to mutate or drop an entry once written.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry

	// FailAppend, when set, makes Append return it. Tests use this to prove
	// audit failures never propagate.
	FailAppend error
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(ctx context.Context, entry *Entry) error {
	if s.FailAppend != nil {
		return s.FailAppend
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *InMemory) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.ResourceType != "" && e.ResourceType != filter.ResourceType {
			continue
		}
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.CreatedAt.After(filter.To) {
			continue
		}
		matched = append(matched, e)
	}

	result := ListResult{Page: filter.Page, Limit: filter.Limit, Total: len(matched)}
	start := (filter.Page - 1) * filter.Limit
	if start < len(matched) {
		end := start + filter.Limit
		if end > len(matched) {
			end = len(matched)
		}
		result.Entries = matched[start:end]
	}
	return result, nil
}

// Entries returns a snapshot of everything recorded so far.
func (s *InMemory) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
