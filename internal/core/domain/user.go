package domain

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,50}$`)
	emailValidator  = validator.New()
)

// UserID is the numeric surrogate key of a user. It never changes once assigned.
type UserID int64

// Username is a validated, case-preserving login name.
type Username string

// NewUsername trims and validates a raw login name.
func NewUsername(raw string) (Username, error) {
	s := strings.TrimSpace(raw)
	if !usernamePattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUsername, raw)
	}
	return Username(s), nil
}

func (u Username) String() string { return string(u) }

// Email is a validated, lower-cased address.
type Email string

// NewEmail trims, lower-cases and validates a raw address.
func NewEmail(raw string) (Email, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || emailValidator.Var(s, "email") != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, raw)
	}
	return Email(s), nil
}

func (e Email) String() string { return string(e) }

// AccountStatus bundles the account flags checked on login.
type AccountStatus struct {
	Enabled               bool `json:"enabled"`
	AccountNonExpired     bool `json:"account_non_expired"`
	AccountNonLocked      bool `json:"account_non_locked"`
	CredentialsNonExpired bool `json:"credentials_non_expired"`
}

// ActiveStatus is the status of a freshly registered account.
func ActiveStatus() AccountStatus {
	return AccountStatus{
		Enabled:               true,
		AccountNonExpired:     true,
		AccountNonLocked:      true,
		CredentialsNonExpired: true,
	}
}

// Usable reports whether every flag allows the account to sign in.
func (s AccountStatus) Usable() bool {
	return s.Enabled && s.AccountNonExpired && s.AccountNonLocked && s.CredentialsNonExpired
}

// Reason names the first flag that blocks the account, or "" when usable.
func (s AccountStatus) Reason() string {
	switch {
	case !s.Enabled:
		return "disabled"
	case !s.AccountNonExpired:
		return "expired"
	case !s.AccountNonLocked:
		return "locked"
	case !s.CredentialsNonExpired:
		return "credentials_expired"
	default:
		return ""
	}
}

// User is the aggregate root. Roles is owned by the aggregate and is either
// fully hydrated or empty.
type User struct {
	ID           UserID        `json:"id"`
	UUID         uuid.UUID     `json:"uuid"`
	Username     Username      `json:"username"`
	Email        Email         `json:"email"`
	PasswordHash string        `json:"-"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Status       AccountStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	CreatedBy    string        `json:"created_by"`
	UpdatedBy    string        `json:"updated_by"`
	LastLoginAt  *time.Time    `json:"last_login_at,omitempty"`
	Version      int64         `json:"version"`
	Roles        []Role        `json:"roles"`
}

// RoleNames returns the sorted names of the hydrated roles.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// Authorities returns the sorted, de-duplicated resource:action pairs granted
// through the hydrated roles.
func (u *User) Authorities() []string {
	seen := make(map[string]struct{})
	for _, r := range u.Roles {
		for _, p := range r.Permissions {
			seen[p.Authority()] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// HasPermission checks the hydrated graph; it does not query storage.
func (u *User) HasPermission(resource, action string) bool {
	for _, r := range u.Roles {
		for _, p := range r.Permissions {
			if p.Resource == resource && p.Action == action {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the aggregate.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.LastLoginAt != nil {
		ts := *u.LastLoginAt
		out.LastLoginAt = &ts
	}
	out.Roles = make([]Role, len(u.Roles))
	for i, r := range u.Roles {
		out.Roles[i] = r.Clone()
	}
	return &out
}
