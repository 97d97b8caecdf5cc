package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

const defaultTokenTTL = 15 * time.Minute

// Service turns bearer credentials into bounded identities. It owns login
// (password verification plus token issuance) and per-request authentication
// (token verification plus profile lookup).
type Service struct {
	profiles ProfileStore
	tokenTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithTokenTTL overrides the access token lifetime.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// NewService constructs a Service over the given profile store.
func NewService(profiles ProfileStore, opts ...ServiceOption) (*Service, error) {
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	svc := &Service{profiles: profiles, tokenTTL: defaultTokenTTL}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  Identity
}

// Login verifies email/password credentials and issues an access token.
// Every failure mode collapses to ErrInvalidCredentials except a disabled
// account, which callers may report distinctly.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	if !user.Active() {
		return Session{}, ErrInactive
	}

	token, err := GenerateToken(user.ID, user.Role, s.tokenTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(s.tokenTTL),
		Identity:  identityOf(user),
	}, nil
}

// Authenticate validates a bearer token and resolves the stored profile into
// a request-scoped Identity. Each denial condition keeps its own signal so
// the HTTP layer can audit and respond per kind.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	claims, err := ParseAndValidate(token)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	user, err := s.profiles.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, err
	}
	if !user.Active() {
		return Identity{}, ErrInactive
	}
	return identityOf(user), nil
}

// Profile returns the stored profile for an authenticated identity.
func (s *Service) Profile(ctx context.Context, id string) (*User, error) {
	return s.profiles.Find(ctx, id)
}

func identityOf(user *User) Identity {
	return Identity{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
	}
}
