package model

import "time"

// Role names used throughout the service. The catalog is seeded once
// at startup and is not extended by end users.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
	RoleClient   = "client"
	// RolePending marks a freshly registered account awaiting
	// administrative approval. It grants no route access.
	RolePending = "pending"
)

// DefaultRoles is the fixed catalog ensured at startup, in seed order.
var DefaultRoles = []Role{
	{Name: RoleAdmin, Description: "full administrative access"},
	{Name: RoleEmployee, Description: "internal staff access"},
	{Name: RoleClient, Description: "standard customer access"},
	{Name: RolePending, Description: "registered, awaiting approval"},
}

// Role represents a row in the `roles` table. Names are unique and
// always lowercase.
type Role struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserRole is a row in the `user_roles` junction table. The pair
// (UserID, RoleID) is unique.
type UserRole struct {
	UserID    uint64    `json:"user_id"`
	RoleID    uint64    `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}
