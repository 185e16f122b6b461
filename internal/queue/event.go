// Package queue defines the audit events exchanged over the message
// broker and the background consumer that records them.
package queue

import "time"

// Queue name audit events are published to.
const AuthEventsQueue = "auth.events"

// Event types.
const (
	EventUserRegistered  = "user.registered"
	EventUserLogin       = "user.login"
	EventUserLogout      = "user.logout"
	EventUserApproved    = "user.approved"
	EventSessionRevoked  = "session.revoked"
	EventPasswordChanged = "password.changed"
)

// Event is an audit record of an authentication lifecycle action. It
// carries enough for downstream consumers to log or alert without
// querying the primary database. Zero-value fields are omitted; a
// logout, for example, knows only the refresh token it revoked.
type Event struct {
	Type      string    `json:"type"`
	UserID    uint64    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	IP        string    `json:"ip,omitempty"`
	At        time.Time `json:"at"`
}
