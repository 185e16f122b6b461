package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/service"
)

var testClient = service.ClientInfo{UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Chrome/125.0", IP: "10.0.0.1"}

const goodPassword = "Sup3r-Secret!"

func mustRegister(t *testing.T, svc *service.AuthService, email string) (*model.User, *service.TokenPair) {
	t.Helper()
	user, pair, err := svc.Register(context.Background(), email, goodPassword, "Test User", testClient)
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, pair)
	return user, pair
}

func mustApprove(t *testing.T, svc *service.AuthService, userID uint64) {
	t.Helper()
	_, err := svc.ApprovePending(context.Background(), userID, "")
	require.NoError(t, err)
}

func requireCode(t *testing.T, err error, code service.Code) {
	t.Helper()
	require.Error(t, err)
	svcErr, ok := service.AsError(err)
	require.True(t, ok, "expected a coded error, got %v", err)
	assert.Equal(t, code, svcErr.Code)
}

func TestRegisterStartsPending(t *testing.T) {
	svc, _, audit := newTestService()
	ctx := context.Background()

	user, pair := mustRegister(t, svc, "new@example.com")

	assert.False(t, user.Active)
	assert.Equal(t, []string{model.RolePending}, user.RoleNames())
	assert.NotEmpty(t, pair.Access.Token)
	assert.NotEmpty(t, pair.Refresh.Token)

	// A session exists even though the account is not approved yet.
	sessions, err := svc.ListSessions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, pair.SessionID, sessions[0].ID)

	// Pending accounts cannot log in again until approved.
	_, _, err = svc.Login(ctx, "new@example.com", goodPassword, testClient)
	requireCode(t, err, service.CodeAccountDisabled)

	require.Len(t, audit.events, 1)
	assert.Equal(t, queue.EventUserRegistered, audit.events[0].Type)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	mustRegister(t, svc, "dup@example.com")

	_, _, err := svc.Register(context.Background(), "Dup@Example.com", goodPassword, "Other", testClient)
	requireCode(t, err, service.CodeEmailExists)
}

func TestRegisterRejectsInvalidEmail(t *testing.T) {
	svc, _, _ := newTestService()
	// Blank and whitespace-only emails must fail the same way as
	// malformed ones; blank values skip ozzo's format rule.
	for _, email := range []string{"not-an-email", "", "   ", "a@"} {
		_, _, err := svc.Register(context.Background(), email, goodPassword, "X", testClient)
		requireCode(t, err, service.CodeEmailInvalid)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	svc, _, _ := newTestService()
	_, _, err := svc.Register(context.Background(), "weak@example.com", "short1!", "X", testClient)
	requireCode(t, err, service.CodePasswordWeak)

	svcErr, _ := service.AsError(err)
	assert.NotEmpty(t, svcErr.Reasons, "weak-password errors carry every violated rule")
}

func TestLoginWrongPasswordCountsFailure(t *testing.T) {
	svc, db, _ := newTestService()
	ctx := context.Background()

	user, _ := mustRegister(t, svc, "u@example.com")
	mustApprove(t, svc, user.ID)

	_, _, err := svc.Login(ctx, "u@example.com", "Wrong-Pass123!", testClient)
	requireCode(t, err, service.CodeInvalidCredentials)

	db.mu.Lock()
	attempts := db.users[user.ID].FailedAttempts
	db.mu.Unlock()
	assert.Equal(t, 1, attempts)

	// No session was opened for the failed attempt.
	sessions, err := svc.ListSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1) // only the registration session

	// A successful login resets the counter.
	_, _, err = svc.Login(ctx, "u@example.com", goodPassword, testClient)
	require.NoError(t, err)
	db.mu.Lock()
	attempts = db.users[user.ID].FailedAttempts
	db.mu.Unlock()
	assert.Equal(t, 0, attempts)
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	svc, _, _ := newTestService()
	_, _, err := svc.Login(context.Background(), "nobody@example.com", goodPassword, testClient)
	requireCode(t, err, service.CodeInvalidCredentials)
}

func TestLoginLockedAccount(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	user, _ := mustRegister(t, svc, "locked@example.com")
	mustApprove(t, svc, user.ID)
	locked := true
	_, err := svc.UpdateUser(ctx, user.ID, model.UserUpdate{Locked: &locked})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "locked@example.com", goodPassword, testClient)
	requireCode(t, err, service.CodeAccountLocked)
}

func TestLoginsAreAdditive(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	user, _ := mustRegister(t, svc, "multi@example.com")
	mustApprove(t, svc, user.ID)

	_, first, err := svc.Login(ctx, "multi@example.com", goodPassword, testClient)
	require.NoError(t, err)
	_, second, err := svc.Login(ctx, "multi@example.com", goodPassword, testClient)
	require.NoError(t, err)

	assert.NotEqual(t, first.Refresh.Token, second.Refresh.Token)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	sessions, err := svc.ListSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 3) // registration + two logins
}

func TestRefreshRotatesAndOldTokenDies(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	user, _ := mustRegister(t, svc, "rot@example.com")
	mustApprove(t, svc, user.ID)
	_, pair, err := svc.Login(ctx, "rot@example.com", goodPassword, testClient)
	require.NoError(t, err)

	refreshed, next, err := svc.RefreshTokens(ctx, pair.Refresh.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, refreshed.ID)
	assert.NotEqual(t, pair.Refresh.Token, next.Refresh.Token)
	assert.Equal(t, pair.SessionID, next.SessionID, "rotation reuses the session row")

	// The spent token is permanently unusable.
	_, _, err = svc.RefreshTokens(ctx, pair.Refresh.Token)
	requireCode(t, err, service.CodeInvalidRefreshToken)

	// The replacement still works.
	_, _, err = svc.RefreshTokens(ctx, next.Refresh.Token)
	require.NoError(t, err)
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	user, _ := mustRegister(t, svc, "promo@example.com")
	mustApprove(t, svc, user.ID)
	_, pair, err := svc.Login(ctx, "promo@example.com", goodPassword, testClient)
	require.NoError(t, err)

	_, err = svc.ChangeRole(ctx, user.ID, model.RoleAdmin)
	require.NoError(t, err)

	refreshed, _, err := svc.RefreshTokens(ctx, pair.Refresh.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{model.RoleAdmin}, refreshed.RoleNames())
}

func TestRefreshUnknownToken(t *testing.T) {
	svc, _, _ := newTestService()
	_, _, err := svc.RefreshTokens(context.Background(), "deadbeef")
	requireCode(t, err, service.CodeInvalidRefreshToken)
}

func TestRefreshExpiredSession(t *testing.T) {
	svc, db, _ := newTestService()
	ctx := context.Background()

	user, pair := mustRegister(t, svc, "exp@example.com")
	mustApprove(t, svc, user.ID)

	db.mu.Lock()
	db.sessions[pair.SessionID].ExpiresAt = time.Now().UTC().Add(-time.Minute)
	db.mu.Unlock()

	_, _, err := svc.RefreshTokens(ctx, pair.Refresh.Token)
	requireCode(t, err, service.CodeSessionExpired)

	// The validity check flipped the row inactive for good.
	db.mu.Lock()
	active := db.sessions[pair.SessionID].Active
	db.mu.Unlock()
	assert.False(t, active)
}

func TestLogoutRevokesRefreshNotAccess(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	user, _ := mustRegister(t, svc, "out@example.com")
	mustApprove(t, svc, user.ID)
	_, pair, err := svc.Login(ctx, "out@example.com", goodPassword, testClient)
	require.NoError(t, err)

	svc.Logout(ctx, pair.Refresh.Token)

	_, _, err = svc.RefreshTokens(ctx, pair.Refresh.Token)
	requireCode(t, err, service.CodeSessionExpired)

	// The short-lived access token rides out its own expiry.
	verified, err := svc.VerifyAccessToken(ctx, pair.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	// Unknown token, empty token, double logout: none of these error.
	svc.Logout(ctx, "no-such-token")
	svc.Logout(ctx, "")
	svc.Logout(ctx, "no-such-token")
}

func TestLogoutAllSparesException(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	user, _ := mustRegister(t, svc, "all@example.com")
	mustApprove(t, svc, user.ID)
	_, keep, err := svc.Login(ctx, "all@example.com", goodPassword, testClient)
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "all@example.com", goodPassword, testClient)
	require.NoError(t, err)

	n, err := svc.LogoutAll(ctx, user.ID, keep.SessionID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n) // registration session + second login

	sessions, err := svc.ListSessions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, keep.SessionID, sessions[0].ID)
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	user, _ := mustRegister(t, svc, "pw@example.com")
	mustApprove(t, svc, user.ID)

	err := svc.ChangePassword(ctx, user.ID, "Wrong-Current1!", "Next-Secret42!")
	requireCode(t, err, service.CodeInvalidCurrentPassword)

	err = svc.ChangePassword(ctx, user.ID, goodPassword, "weak")
	requireCode(t, err, service.CodePasswordWeak)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, goodPassword, "Next-Secret42!"))

	_, _, err = svc.Login(ctx, "pw@example.com", goodPassword, testClient)
	requireCode(t, err, service.CodeInvalidCredentials)
	_, _, err = svc.Login(ctx, "pw@example.com", "Next-Secret42!", testClient)
	require.NoError(t, err)

	// Sessions opened before the change stay alive.
	sessions, err := svc.ListSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestVerifyAccessTokenLiveState(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	user, _ := mustRegister(t, svc, "live@example.com")
	mustApprove(t, svc, user.ID)
	_, pair, err := svc.Login(ctx, "live@example.com", goodPassword, testClient)
	require.NoError(t, err)

	verified, err := svc.VerifyAccessToken(ctx, pair.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, user.Email, verified.Email)

	// Deactivation takes effect on the next verification, not at the
	// token's expiry.
	_, err = svc.DeactivateUser(ctx, user.ID)
	require.NoError(t, err)
	_, err = svc.VerifyAccessToken(ctx, pair.Access.Token)
	requireCode(t, err, service.CodeAccountDisabled)
}

func TestVerifyAccessTokenGarbage(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.VerifyAccessToken(context.Background(), "not.a.jwt")
	requireCode(t, err, service.CodeInvalidToken)
}

func TestChangeRoleReplacesWholeSet(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	user, _ := mustRegister(t, svc, "roles@example.com")
	require.NoError(t, svc.AssignRole(ctx, user.ID, model.RoleEmployee))

	updated, err := svc.ChangeRole(ctx, user.ID, model.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, []string{model.RoleClient}, updated.RoleNames())

	err = svc.AssignRole(ctx, user.ID, model.RoleClient)
	requireCode(t, err, service.CodeRoleAssigned)

	_, err = svc.ChangeRole(ctx, user.ID, "warlock")
	requireCode(t, err, service.CodeRoleNotFound)
}

func TestApprovePendingDefaultsToClient(t *testing.T) {
	svc, _, audit := newTestService()
	ctx := context.Background()

	user, _ := mustRegister(t, svc, "appr@example.com")

	approved, err := svc.ApprovePending(ctx, user.ID, "")
	require.NoError(t, err)
	assert.True(t, approved.Active)
	assert.Equal(t, []string{model.RoleClient}, approved.RoleNames())

	var types []string
	for _, ev := range audit.events {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, queue.EventUserApproved)

	_, _, err = svc.Login(ctx, "appr@example.com", goodPassword, testClient)
	require.NoError(t, err)
}

func TestInvalidateSessionScopedToOwner(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	alice, alicePair := mustRegister(t, svc, "alice@example.com")
	bob, _ := mustRegister(t, svc, "bob@example.com")

	// Bob cannot revoke Alice's session; the id behaves like a missing one.
	err := svc.InvalidateSession(ctx, alicePair.SessionID, bob.ID)
	requireCode(t, err, service.CodeAccessDenied)

	require.NoError(t, svc.InvalidateSession(ctx, alicePair.SessionID, alice.ID))

	// Revocation is monotonic: a second attempt finds nothing active.
	err = svc.InvalidateSession(ctx, alicePair.SessionID, alice.ID)
	requireCode(t, err, service.CodeAccessDenied)

	err = svc.InvalidateSession(ctx, uuid.New(), alice.ID)
	requireCode(t, err, service.CodeAccessDenied)
}

func TestCleanExpiredSessions(t *testing.T) {
	svc, db, _ := newTestService()
	ctx := context.Background()

	user, pair := mustRegister(t, svc, "sweep@example.com")
	mustApprove(t, svc, user.ID)
	_, _, err := svc.Login(ctx, "sweep@example.com", goodPassword, testClient)
	require.NoError(t, err)

	db.mu.Lock()
	db.sessions[pair.SessionID].ExpiresAt = time.Now().UTC().Add(-time.Hour)
	db.mu.Unlock()

	n, err := svc.CleanExpiredSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = svc.CleanExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	stats, err := svc.SessionStats(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStats{Active: 1, Total: 2}, stats)
}
