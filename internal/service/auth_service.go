// Package service implements the authentication and session lifecycle
// state machine: issuance, rotation, validation and revocation of
// access/refresh token pairs and the credential and role invariants
// that gate them. All durability is delegated to the store interfaces;
// the service holds no in-process mutable state.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/utils"
)

// Config carries the options the auth service needs at construction
// time, rather than ambient environment lookups.
type Config struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

// ClientInfo describes the device making an auth request; it is
// recorded on the session for later review.
type ClientInfo struct {
	UserAgent string
	IP        string
}

// TokenPair is the access/refresh credential pair returned by
// register, login and refresh.
type TokenPair struct {
	Access    utils.AccessToken `json:"access"`
	Refresh   RefreshToken      `json:"refresh"`
	SessionID uuid.UUID         `json:"session_id"`
}

// RefreshToken is the opaque long-lived half of a TokenPair.
type RefreshToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires_at"`
}

// Publisher emits audit events. Publishing is always best-effort: a
// broker failure never changes a request's outcome.
type Publisher interface {
	Publish(ctx context.Context, event queue.Event) error
}

// AuthService orchestrates the credential utility and the three stores.
type AuthService struct {
	cfg      Config
	users    UserStore
	roles    RoleStore
	sessions SessionStore
	audit    Publisher
	log      zerolog.Logger
}

// NewAuthService wires the service. audit may be nil to disable event
// publishing.
func NewAuthService(cfg Config, users UserStore, roles RoleStore, sessions SessionStore, audit Publisher, log zerolog.Logger) *AuthService {
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = utils.DefaultBcryptCost
	}
	return &AuthService{cfg: cfg, users: users, roles: roles, sessions: sessions, audit: audit, log: log}
}

// Register creates an inactive account pending administrative
// approval, grants the pending role, opens a session and issues a
// token pair. The access token reflects the pending role, so it cannot
// pass route guards that require an approved account; that asymmetry
// is intentional.
func (s *AuthService) Register(ctx context.Context, email, password, name string, client ClientInfo) (*model.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	// is.Email skips blank values, so the empty check cannot be folded
	// into it.
	if email == "" || is.Email.Validate(email) != nil {
		return nil, nil, NewError(CodeEmailInvalid, "email address is not valid")
	}
	if reasons := utils.ValidatePasswordStrength(password); len(reasons) > 0 {
		return nil, nil, NewError(CodePasswordWeak, "password does not meet strength requirements", reasons...)
	}

	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		s.log.Error().Err(err).Msg("password hash failed")
		return nil, nil, internalErr()
	}

	user, err := s.users.Create(ctx, email, hash, name)
	if err != nil {
		if err == repository.ErrEmailExists {
			return nil, nil, NewError(CodeEmailExists, "an account with this email already exists")
		}
		s.log.Error().Err(err).Msg("user create failed")
		return nil, nil, internalErr()
	}

	pending, err := s.roles.GetByName(ctx, model.RolePending)
	if err != nil {
		s.log.Error().Err(err).Msg("pending role missing; role catalog not seeded")
		return nil, nil, internalErr()
	}
	if err := s.users.AssignRole(ctx, user.ID, pending.ID); err != nil && err != repository.ErrRoleAssigned {
		s.log.Error().Err(err).Uint64("user_id", user.ID).Msg("pending role assignment failed")
		return nil, nil, internalErr()
	}
	user.Roles = []model.Role{*pending}

	pair, err := s.openSession(ctx, user, client)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, queue.Event{Type: queue.EventUserRegistered, UserID: user.ID, Email: user.Email, IP: client.IP})
	return user, pair, nil
}

// Login verifies credentials and opens a new session. Logins are
// additive: each device gets its own session. Unknown email and wrong
// password are indistinguishable to the caller; the distinction is
// only logged.
func (s *AuthService) Login(ctx context.Context, email, password string, client ClientInfo) (*model.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.log.Error().Err(err).Msg("user lookup failed")
		return nil, nil, internalErr()
	}
	if user == nil {
		s.log.Debug().Str("email", email).Msg("login rejected: unknown email")
		return nil, nil, NewError(CodeInvalidCredentials, "invalid email or password")
	}
	if !user.Active {
		return nil, nil, NewError(CodeAccountDisabled, "account is not active")
	}
	if user.Locked {
		return nil, nil, NewError(CodeAccountLocked, "account is locked")
	}
	if !utils.VerifyPassword(user.PasswordHash, password) {
		s.log.Debug().Uint64("user_id", user.ID).Msg("login rejected: wrong password")
		attempts := user.FailedAttempts + 1
		if err := s.users.Update(ctx, user.ID, model.UserUpdate{FailedAttempts: &attempts}); err != nil {
			s.log.Warn().Err(err).Uint64("user_id", user.ID).Msg("failed-attempt counter update failed")
		}
		return nil, nil, NewError(CodeInvalidCredentials, "invalid email or password")
	}
	if user.FailedAttempts > 0 {
		zero := 0
		if err := s.users.Update(ctx, user.ID, model.UserUpdate{FailedAttempts: &zero}); err != nil {
			s.log.Warn().Err(err).Uint64("user_id", user.ID).Msg("failed-attempt counter reset failed")
		}
	}

	roles, err := s.roles.RolesForUser(ctx, user.ID)
	if err != nil {
		s.log.Error().Err(err).Uint64("user_id", user.ID).Msg("role lookup failed")
		return nil, nil, internalErr()
	}
	user.Roles = roles

	pair, err := s.openSession(ctx, user, client)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, queue.Event{Type: queue.EventUserLogin, UserID: user.ID, Email: user.Email, SessionID: pair.SessionID.String(), IP: client.IP})
	return user, pair, nil
}

// RefreshTokens rotates a session: the presented refresh token becomes
// permanently unusable and a new pair is issued. Roles are re-fetched
// so a role change since last login is picked up here. Of two racing
// refreshes on one token the first writer wins; the loser sees
// INVALID_REFRESH_TOKEN.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*model.User, *TokenPair, error) {
	sess, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil, NewError(CodeInvalidRefreshToken, "refresh token is not recognized")
		}
		s.log.Error().Err(err).Msg("session lookup failed")
		return nil, nil, internalErr()
	}

	valid, err := s.sessions.IsValid(ctx, sess)
	if err != nil {
		s.log.Error().Err(err).Msg("session validity check failed")
		return nil, nil, internalErr()
	}
	if !valid {
		return nil, nil, NewError(CodeSessionExpired, "session has expired or been revoked")
	}

	newToken, err := utils.NewRefreshToken()
	if err != nil {
		s.log.Error().Err(err).Msg("refresh token generation failed")
		return nil, nil, internalErr()
	}
	renewed, err := s.sessions.Renew(ctx, refreshToken, newToken, time.Now().UTC().Add(s.cfg.RefreshTokenTTL))
	if err != nil {
		if err == repository.ErrNotFound {
			// Lost a rotation race, or revoked between lookup and renew.
			return nil, nil, NewError(CodeInvalidRefreshToken, "refresh token is not recognized")
		}
		s.log.Error().Err(err).Msg("session renew failed")
		return nil, nil, internalErr()
	}

	user, err := s.users.GetWithRoles(ctx, renewed.UserID)
	if err != nil {
		s.log.Error().Err(err).Uint64("user_id", renewed.UserID).Msg("user reload failed")
		return nil, nil, internalErr()
	}

	access, err := utils.NewAccessToken(s.cfg.JWTSecret, user.ID, user.Email, user.RoleNames(), s.cfg.AccessTokenTTL)
	if err != nil {
		s.log.Error().Err(err).Msg("access token signing failed")
		return nil, nil, internalErr()
	}

	if err := s.sessions.TouchActivity(ctx, renewed.ID); err != nil {
		s.log.Debug().Err(err).Msg("touch last-activity failed")
	}

	return user, &TokenPair{
		Access:    access,
		Refresh:   RefreshToken{Token: newToken, Exp: renewed.ExpiresAt},
		SessionID: renewed.ID,
	}, nil
}

// Logout invalidates the session bound to a refresh token. It always
// reports success: with no token there is nothing to do, and an
// internal failure is swallowed because the client's interest is
// "stop using these credentials", which it can guarantee locally. The
// access token stays usable until its own expiry; only the refresh
// path is revoked.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if strings.TrimSpace(refreshToken) == "" {
		return
	}
	if err := s.sessions.InvalidateByRefreshToken(ctx, refreshToken); err != nil {
		s.log.Warn().Err(err).Msg("logout bookkeeping failed; reporting success anyway")
		return
	}
	s.publish(ctx, queue.Event{Type: queue.EventUserLogout})
}

// LogoutAll invalidates every active session for the user, optionally
// sparing one ("log out everywhere but here"). Returns the count
// invalidated.
func (s *AuthService) LogoutAll(ctx context.Context, userID uint64, except uuid.UUID) (int64, error) {
	n, err := s.sessions.InvalidateAllForUser(ctx, userID, except)
	if err != nil {
		s.log.Error().Err(err).Uint64("user_id", userID).Msg("bulk logout failed")
		return 0, internalErr()
	}
	s.publish(ctx, queue.Event{Type: queue.EventSessionRevoked, UserID: userID})
	return n, nil
}

// ChangePassword verifies the current password, validates the new one
// and stores its hash. Existing sessions are deliberately left alone;
// callers wanting the stricter behavior follow up with LogoutAll.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint64, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == repository.ErrNotFound {
			return NewError(CodeUserNotFound, "user not found")
		}
		s.log.Error().Err(err).Uint64("user_id", userID).Msg("user lookup failed")
		return internalErr()
	}
	if !utils.VerifyPassword(user.PasswordHash, currentPassword) {
		return NewError(CodeInvalidCurrentPassword, "current password is incorrect")
	}
	if reasons := utils.ValidatePasswordStrength(newPassword); len(reasons) > 0 {
		return NewError(CodePasswordWeak, "password does not meet strength requirements", reasons...)
	}
	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		s.log.Error().Err(err).Msg("password hash failed")
		return internalErr()
	}
	if err := s.users.ChangePassword(ctx, userID, hash); err != nil {
		s.log.Error().Err(err).Uint64("user_id", userID).Msg("password update failed")
		return internalErr()
	}
	s.publish(ctx, queue.Event{Type: queue.EventPasswordChanged, UserID: userID, Email: user.Email})
	return nil
}

// VerifyAccessToken checks signature and expiry, then reloads the user
// fresh from the store: account state at use time governs, not state
// at issuance. Returns the live user with roles, or a coded error.
func (s *AuthService) VerifyAccessToken(ctx context.Context, raw string) (*model.User, error) {
	claims, err := utils.ParseAccessToken(s.cfg.JWTSecret, raw)
	if err != nil {
		if err == utils.ErrTokenExpired {
			return nil, NewError(CodeTokenExpired, "access token has expired")
		}
		return nil, NewError(CodeInvalidToken, "access token is invalid")
	}
	user, err := s.users.GetWithRoles(ctx, claims.UserID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, NewError(CodeInvalidToken, "access token is invalid")
		}
		s.log.Error().Err(err).Uint64("user_id", claims.UserID).Msg("user reload failed")
		return nil, internalErr()
	}
	if !user.Active {
		return nil, NewError(CodeAccountDisabled, "account is not active")
	}
	if user.Locked {
		return nil, NewError(CodeAccountLocked, "account is locked")
	}
	return user, nil
}

// CleanExpiredSessions runs the lazy-expiry sweep eagerly across the
// whole table. Scheduling is the caller's concern.
func (s *AuthService) CleanExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.SweepExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("expired session sweep failed")
		return 0, internalErr()
	}
	if n > 0 {
		s.log.Info().Int64("count", n).Msg("expired sessions deactivated")
	}
	return n, nil
}

// openSession creates a session and signs an access token for the
// user's current roles.
func (s *AuthService) openSession(ctx context.Context, user *model.User, client ClientInfo) (*TokenPair, error) {
	refresh, err := utils.NewRefreshToken()
	if err != nil {
		s.log.Error().Err(err).Msg("refresh token generation failed")
		return nil, internalErr()
	}
	sess, err := s.sessions.Create(ctx, user.ID, refresh, client.UserAgent, client.IP,
		time.Now().UTC().Add(s.cfg.RefreshTokenTTL))
	if err != nil {
		s.log.Error().Err(err).Uint64("user_id", user.ID).Msg("session create failed")
		return nil, internalErr()
	}
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, user.ID, user.Email, user.RoleNames(), s.cfg.AccessTokenTTL)
	if err != nil {
		s.log.Error().Err(err).Msg("access token signing failed")
		return nil, internalErr()
	}
	return &TokenPair{
		Access:    access,
		Refresh:   RefreshToken{Token: refresh, Exp: sess.ExpiresAt},
		SessionID: sess.ID,
	}, nil
}

// publish sends an audit event, best-effort.
func (s *AuthService) publish(ctx context.Context, ev queue.Event) {
	if s.audit == nil {
		return
	}
	ev.At = time.Now().UTC()
	if err := s.audit.Publish(ctx, ev); err != nil {
		s.log.Debug().Err(err).Str("event", ev.Type).Msg("audit publish failed")
	}
}
