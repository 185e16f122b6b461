package model

import "time"

// User represents an application user record as stored in the `users`
// table. The password hash never leaves the backend; handlers define
// separate response types with appropriate JSON tags.
//
// Accounts are created inactive and unlocked. An inactive or locked
// account must never authenticate, regardless of credentials.
type User struct {
	ID             uint64    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name,omitempty"`
	PasswordHash   string    `json:"-"`
	Active         bool      `json:"active"`
	Locked         bool      `json:"locked"`
	FailedAttempts int       `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Roles is populated only by queries that join the role catalog.
	Roles []Role `json:"roles,omitempty"`
}

// RoleNames returns the lowercase names of the user's loaded roles.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// HasRole reports whether the user's loaded roles include the given
// name, case-insensitively. Role names are stored lowercase but
// callers may pass any casing.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if strEqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

// strEqualFold is an ASCII-only case-insensitive compare; role names
// are plain ASCII identifiers.
func strEqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// UserUpdate carries the allow-listed mutable fields for an
// administrative user update. Nil pointers mean "leave unchanged".
type UserUpdate struct {
	Name           *string
	Active         *bool
	Locked         *bool
	FailedAttempts *int
}
