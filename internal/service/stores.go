package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/repository"
)

// The store interfaces mirror the repositories in internal/repository.
// AuthService depends on these rather than concrete repos so tests can
// run the whole lifecycle against in-memory fakes.

// UserStore persists user records and their role associations.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, name string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetWithRoles(ctx context.Context, id uint64) (*model.User, error)
	Update(ctx context.Context, id uint64, upd model.UserUpdate) error
	ChangePassword(ctx context.Context, id uint64, passwordHash string) error
	AssignRole(ctx context.Context, userID, roleID uint64) error
	RemoveRole(ctx context.Context, userID, roleID uint64) error
	RemoveAllRoles(ctx context.Context, userID uint64) error
	List(ctx context.Context, f repository.ListFilter) ([]model.User, int, error)
	Delete(ctx context.Context, id uint64) error
}

// RoleStore owns the role catalog and junction queries.
type RoleStore interface {
	Create(ctx context.Context, name, description string) (*model.Role, error)
	GetByID(ctx context.Context, id uint64) (*model.Role, error)
	GetByName(ctx context.Context, name string) (*model.Role, error)
	List(ctx context.Context) ([]model.Role, error)
	Update(ctx context.Context, id uint64, name, description string) error
	Delete(ctx context.Context, id uint64) error
	UsersForRole(ctx context.Context, roleID uint64) ([]model.User, error)
	RolesForUser(ctx context.Context, userID uint64) ([]model.Role, error)
	HasAnyRole(ctx context.Context, userID uint64, names ...string) (bool, error)
	EnsureDefaults(ctx context.Context) error
}

// SessionStore owns refresh-token sessions.
type SessionStore interface {
	Create(ctx context.Context, userID uint64, refreshToken, userAgent, ip string, expiresAt time.Time) (*model.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*model.Session, error)
	ListActiveForUser(ctx context.Context, userID uint64) ([]model.Session, error)
	Invalidate(ctx context.Context, sessionID uuid.UUID, userID uint64) error
	InvalidateAllForUser(ctx context.Context, userID uint64, except uuid.UUID) (int64, error)
	InvalidateByRefreshToken(ctx context.Context, token string) error
	IsValid(ctx context.Context, s *model.Session) (bool, error)
	Renew(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (*model.Session, error)
	TouchActivity(ctx context.Context, sessionID uuid.UUID) error
	SweepExpired(ctx context.Context) (int64, error)
	Stats(ctx context.Context, userID uint64) (model.SessionStats, error)
}
