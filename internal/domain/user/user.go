package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTutor   Role = "TUTOR"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTutor
}

// ParseRole accepts any casing ("tutor", "Tutor", "TUTOR").
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	return r, r.Valid()
}

type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderGoogle Provider = "google"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already in use")
	ErrProfileNotFound = errors.New("profile not found")
	// ErrCredentialMismatch is returned when PasswordHash and Provider disagree.
	ErrCredentialMismatch = errors.New("password hash must be set if and only if provider is email")
)

type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  *string    `json:"-"` // never expose hash in JSON
	Name          string     `json:"name"`
	Role          Role       `json:"role"`
	Provider      Provider   `json:"provider"`
	EmailVerified bool       `json:"emailVerified"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// HasLocalPassword reports whether the account can log in with email + password.
func (u User) HasLocalPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

func (u User) Validate() error {
	if u.HasLocalPassword() != (u.Provider == ProviderEmail) {
		return ErrCredentialMismatch
	}
	if !u.Role.Valid() {
		return errors.New("invalid role")
	}
	return nil
}

func (u User) Principal() Principal {
	return Principal{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewLocal builds an email/password account.
func NewLocal(email, passwordHash, name string, role Role) User {
	now := time.Now().UTC()
	hash := passwordHash

	return User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(email),
		PasswordHash: &hash,
		Name:         strings.TrimSpace(name),
		Role:         role,
		Provider:     ProviderEmail,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
