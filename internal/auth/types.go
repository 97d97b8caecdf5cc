package auth

import "time"

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User is a stored staff or patient profile. PasswordHash is bcrypt and never
// leaves this package.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Active reports whether the profile may authenticate.
func (u User) Active() bool { return u.Status == UserStatusActive }

// Identity is the per-request result of token verification plus a profile
// lookup. It is built once by Service.Authenticate and discarded at request
// end; nothing in the core mutates it.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}
