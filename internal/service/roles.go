package service

import (
	"context"
	"strings"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/repository"
)

// Role catalog administration. The default roles are seeded at startup
// and protected from deletion here so a misconfigured catalog cannot
// strand the registration and approval flows.

// isDefaultRole reports whether name is one of the seeded roles.
func isDefaultRole(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range model.DefaultRoles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// ListRoles returns the whole role catalog.
func (s *AuthService) ListRoles(ctx context.Context) ([]model.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("role list failed")
		return nil, internalErr()
	}
	return roles, nil
}

// CreateRole adds a role to the catalog. Names are unique and stored
// lowercase.
func (s *AuthService) CreateRole(ctx context.Context, name, description string) (*model.Role, error) {
	role, err := s.roles.Create(ctx, name, description)
	if err != nil {
		if err == repository.ErrRoleExists {
			return nil, NewError(CodeRoleExists, "a role with this name already exists")
		}
		s.log.Error().Err(err).Str("role", name).Msg("role create failed")
		return nil, internalErr()
	}
	return role, nil
}

// UpdateRole renames or re-describes a role. The seeded roles keep
// their names because the auth flows reference them by name.
func (s *AuthService) UpdateRole(ctx context.Context, roleID uint64, name, description string) (*model.Role, error) {
	existing, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, NewError(CodeRoleNotFound, "role not found")
		}
		s.log.Error().Err(err).Uint64("role_id", roleID).Msg("role lookup failed")
		return nil, internalErr()
	}
	if isDefaultRole(existing.Name) && !strings.EqualFold(existing.Name, name) {
		return nil, NewError(CodeAccessDenied, "built-in roles cannot be renamed")
	}
	switch err := s.roles.Update(ctx, roleID, name, description); err {
	case nil:
	case repository.ErrRoleExists:
		return nil, NewError(CodeRoleExists, "a role with this name already exists")
	case repository.ErrNotFound:
		return nil, NewError(CodeRoleNotFound, "role not found")
	default:
		s.log.Error().Err(err).Uint64("role_id", roleID).Msg("role update failed")
		return nil, internalErr()
	}
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		s.log.Error().Err(err).Uint64("role_id", roleID).Msg("role reload failed")
		return nil, internalErr()
	}
	return role, nil
}

// DeleteRole removes a role nobody holds. Seeded roles are permanent.
func (s *AuthService) DeleteRole(ctx context.Context, roleID uint64) error {
	existing, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		if err == repository.ErrNotFound {
			return NewError(CodeRoleNotFound, "role not found")
		}
		s.log.Error().Err(err).Uint64("role_id", roleID).Msg("role lookup failed")
		return internalErr()
	}
	if isDefaultRole(existing.Name) {
		return NewError(CodeAccessDenied, "built-in roles cannot be deleted")
	}
	switch err := s.roles.Delete(ctx, roleID); err {
	case nil:
		return nil
	case repository.ErrRoleInUse:
		return NewError(CodeRoleHasUsers, "role is still assigned to users")
	case repository.ErrNotFound:
		return NewError(CodeRoleNotFound, "role not found")
	default:
		s.log.Error().Err(err).Uint64("role_id", roleID).Msg("role delete failed")
		return internalErr()
	}
}

// RoleMembers lists the users holding a role.
func (s *AuthService) RoleMembers(ctx context.Context, roleID uint64) ([]model.User, error) {
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		if err == repository.ErrNotFound {
			return nil, NewError(CodeRoleNotFound, "role not found")
		}
		s.log.Error().Err(err).Uint64("role_id", roleID).Msg("role lookup failed")
		return nil, internalErr()
	}
	users, err := s.roles.UsersForRole(ctx, roleID)
	if err != nil {
		s.log.Error().Err(err).Uint64("role_id", roleID).Msg("role member list failed")
		return nil, internalErr()
	}
	return users, nil
}
