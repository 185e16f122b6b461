package model

import (
	"time"

	"github.com/google/uuid"
)

// Session models an entry in the `sessions` table: one authenticated
// device/client instance bound to a refresh token. Sessions are never
// hard-deleted; revocation and expiry flip Active to false so the row
// remains for audit.
//
// A session is valid only while Active is true, the expiry has not
// passed, and the owning account is active and unlocked.
type Session struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uint64     `json:"user_id"`
	RefreshToken   string     `json:"-"`
	UserAgent      string     `json:"user_agent,omitempty"`
	IP             string     `json:"ip,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`

	// Owner flags joined from the users table by token lookups, so
	// the validity predicate can run without a second query.
	OwnerActive bool `json:"-"`
	OwnerLocked bool `json:"-"`
}

// Expired reports whether the session's absolute expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStats summarizes a user's sessions.
type SessionStats struct {
	Active int `json:"active"`
	Total  int `json:"total"`
}
