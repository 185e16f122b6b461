// Package repository persists users, roles and sessions through the
// managed Postgres backend. Rows are mapped into the typed records in
// internal/model at this boundary so upper layers never touch raw row
// shapes. Sentinel errors let the service layer distinguish expected
// conflicts from persistence failures.
package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned by single-row lookups that matched
	// nothing (except UserRepo.GetByEmail, which treats a miss as a
	// normal empty result).
	ErrNotFound = errors.New("record not found")

	// ErrEmailExists signals a unique-email conflict on user create.
	ErrEmailExists = errors.New("email already exists")

	// ErrRoleAssigned signals that the (user, role) pair already
	// exists in the junction table.
	ErrRoleAssigned = errors.New("role already assigned")

	// ErrRoleExists signals a duplicate role name.
	ErrRoleExists = errors.New("role already exists")

	// ErrRoleInUse blocks deleting a role some user still holds.
	ErrRoleInUse = errors.New("role has users")

	// ErrHasDependencies blocks permanently deleting a user that
	// business data outside this service still references.
	ErrHasDependencies = errors.New("user has dependencies")
)

// Postgres error codes we map to sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func isPgErr(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}
