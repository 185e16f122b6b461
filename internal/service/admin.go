package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
)

// User/session administration. These are thin orchestrations over the
// stores; their job is mapping store sentinels onto the error taxonomy
// and keeping role replacement to the remove-all-then-assign-one
// shape.

// GetProfile returns a user with roles loaded.
func (s *AuthService) GetProfile(ctx context.Context, userID uint64) (*model.User, error) {
	user, err := s.users.GetWithRoles(ctx, userID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, NewError(CodeUserNotFound, "user not found")
		}
		s.log.Error().Err(err).Uint64("user_id", userID).Msg("user lookup failed")
		return nil, internalErr()
	}
	return user, nil
}

// ListUsers returns a page of users plus the total matching count.
func (s *AuthService) ListUsers(ctx context.Context, f repository.ListFilter) ([]model.User, int, error) {
	users, total, err := s.users.List(ctx, f)
	if err != nil {
		s.log.Error().Err(err).Msg("user list failed")
		return nil, 0, internalErr()
	}
	return users, total, nil
}

// UpdateUser applies an allow-listed administrative update.
func (s *AuthService) UpdateUser(ctx context.Context, userID uint64, upd model.UserUpdate) (*model.User, error) {
	if err := s.users.Update(ctx, userID, upd); err != nil {
		if err == repository.ErrNotFound {
			return nil, NewError(CodeUserNotFound, "user not found")
		}
		s.log.Error().Err(err).Uint64("user_id", userID).Msg("user update failed")
		return nil, internalErr()
	}
	return s.GetProfile(ctx, userID)
}

// DeactivateUser flips the account inactive. Existing sessions die on
// their next validity check because the owner flag is part of the
// predicate.
func (s *AuthService) DeactivateUser(ctx context.Context, userID uint64) (*model.User, error) {
	inactive := false
	return s.UpdateUser(ctx, userID, model.UserUpdate{Active: &inactive})
}

// ToggleActive flips the active flag and returns the updated user.
func (s *AuthService) ToggleActive(ctx context.Context, userID uint64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, NewError(CodeUserNotFound, "user not found")
		}
		s.log.Error().Err(err).Uint64("user_id", userID).Msg("user lookup failed")
		return nil, internalErr()
	}
	next := !user.Active
	return s.UpdateUser(ctx, userID, model.UserUpdate{Active: &next})
}

// AssignRole grants the named role to the user. Already-held roles are
// reported distinctly.
func (s *AuthService) AssignRole(ctx context.Context, userID uint64, roleName string) error {
	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		if err == repository.ErrNotFound {
			return NewError(CodeRoleNotFound, "role not found")
		}
		s.log.Error().Err(err).Str("role", roleName).Msg("role lookup failed")
		return internalErr()
	}
	switch err := s.users.AssignRole(ctx, userID, role.ID); err {
	case nil:
		return nil
	case repository.ErrRoleAssigned:
		return NewError(CodeRoleAssigned, "user already holds this role")
	case repository.ErrNotFound:
		return NewError(CodeUserNotFound, "user not found")
	default:
		s.log.Error().Err(err).Uint64("user_id", userID).Msg("role assignment failed")
		return internalErr()
	}
}

// RemoveRole revokes the named role from the user.
func (s *AuthService) RemoveRole(ctx context.Context, userID uint64, roleName string) error {
	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		if err == repository.ErrNotFound {
			return NewError(CodeRoleNotFound, "role not found")
		}
		s.log.Error().Err(err).Str("role", roleName).Msg("role lookup failed")
		return internalErr()
	}
	if err := s.users.RemoveRole(ctx, userID, role.ID); err != nil {
		if err == repository.ErrNotFound {
			return NewError(CodeRoleNotFound, "user does not hold this role")
		}
		s.log.Error().Err(err).Uint64("user_id", userID).Msg("role removal failed")
		return internalErr()
	}
	return nil
}

// ChangeRole replaces the user's entire role set with one role:
// remove-all-then-assign-one, never a differential update.
func (s *AuthService) ChangeRole(ctx context.Context, userID uint64, roleName string) (*model.User, error) {
	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, NewError(CodeRoleNotFound, "role not found")
		}
		s.log.Error().Err(err).Str("role", roleName).Msg("role lookup failed")
		return nil, internalErr()
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if err == repository.ErrNotFound {
			return nil, NewError(CodeUserNotFound, "user not found")
		}
		s.log.Error().Err(err).Uint64("user_id", userID).Msg("user lookup failed")
		return nil, internalErr()
	}
	if err := s.users.RemoveAllRoles(ctx, userID); err != nil {
		s.log.Error().Err(err).Uint64("user_id", userID).Msg("role clear failed")
		return nil, internalErr()
	}
	if err := s.users.AssignRole(ctx, userID, role.ID); err != nil && err != repository.ErrRoleAssigned {
		s.log.Error().Err(err).Uint64("user_id", userID).Msg("role assignment failed")
		return nil, internalErr()
	}
	return s.GetProfile(ctx, userID)
}

// ApprovePending promotes a registered account out of the pending
// state: activate it and replace the pending role. This is the only
// transition out of pending; there is no self-service path.
func (s *AuthService) ApprovePending(ctx context.Context, userID uint64, roleName string) (*model.User, error) {
	if roleName == "" {
		roleName = model.RoleClient
	}
	user, err := s.ChangeRole(ctx, userID, roleName)
	if err != nil {
		return nil, err
	}
	active := true
	user, err = s.UpdateUser(ctx, userID, model.UserUpdate{Active: &active})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.Event{Type: queue.EventUserApproved, UserID: userID, Email: user.Email})
	return user, nil
}

// DeleteUser permanently removes a user and their role associations.
// Business data outside this service that still references the user
// blocks the delete with a dependency conflict.
func (s *AuthService) DeleteUser(ctx context.Context, userID uint64) error {
	switch err := s.users.Delete(ctx, userID); err {
	case nil:
		return nil
	case repository.ErrNotFound:
		return NewError(CodeUserNotFound, "user not found")
	case repository.ErrHasDependencies:
		return NewError(CodeUserHasDependencies, "user is referenced by other records")
	default:
		s.log.Error().Err(err).Uint64("user_id", userID).Msg("user delete failed")
		return internalErr()
	}
}

// ListSessions returns the user's active sessions, newest first.
func (s *AuthService) ListSessions(ctx context.Context, userID uint64) ([]model.Session, error) {
	sessions, err := s.sessions.ListActiveForUser(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Uint64("user_id", userID).Msg("session list failed")
		return nil, internalErr()
	}
	return sessions, nil
}

// InvalidateSession revokes one of the user's sessions. The user scope
// doubles as the ownership check: someone else's session id behaves
// like a missing one.
func (s *AuthService) InvalidateSession(ctx context.Context, sessionID uuid.UUID, userID uint64) error {
	if err := s.sessions.Invalidate(ctx, sessionID, userID); err != nil {
		if err == repository.ErrNotFound {
			return NewError(CodeAccessDenied, "session not found")
		}
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("session invalidate failed")
		return internalErr()
	}
	s.publish(ctx, queue.Event{Type: queue.EventSessionRevoked, UserID: userID, SessionID: sessionID.String()})
	return nil
}

// SessionStats returns the user's active/total session counts.
func (s *AuthService) SessionStats(ctx context.Context, userID uint64) (model.SessionStats, error) {
	st, err := s.sessions.Stats(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Uint64("user_id", userID).Msg("session stats failed")
		return model.SessionStats{}, internalErr()
	}
	return st, nil
}
