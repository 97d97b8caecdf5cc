package auth

import "errors"

var (
	// ErrInvalidToken indicates a missing, malformed or expired bearer token.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrInvalidCredentials indicates a failed email/password login.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrNotFound indicates the verified subject has no stored profile.
	ErrNotFound = errors.New("auth: profile not found")
	// ErrInactive indicates the profile exists but is disabled.
	ErrInactive = errors.New("auth: account disabled")
	// ErrForbidden indicates a valid identity whose role is not in the
	// operation's allow-list. The only denial kind audited as access_denied.
	ErrForbidden = errors.New("auth: access denied")
)
