package auth

import (
	"context"
	"strings"
	"sync"
)

var _ ProfileStore = (*InMemoryProfiles)(nil)

// InMemoryProfiles implements ProfileStore in process memory. Used by tests
// and local development without a database.
type InMemoryProfiles struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewInMemoryProfiles() *InMemoryProfiles {
	return &InMemoryProfiles{users: make(map[string]*User)}
}

// Put stores or replaces a profile.
func (s *InMemoryProfiles) Put(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = &user
}

func (s *InMemoryProfiles) Find(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *InMemoryProfiles) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}
