package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/utils"
)

// SessionRepo owns the `sessions` table. Sessions are only ever
// deactivated, never deleted, so revocations stay auditable.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

const sessionColumns = "id, user_id, refresh_token, user_agent, ip, is_active, created_at, expires_at, last_activity_at"

func scanSession(row interface{ Scan(...any) error }, extra ...any) (*model.Session, error) {
	var s model.Session
	var lastActivity sql.NullTime
	dest := []any{&s.ID, &s.UserID, &s.RefreshToken, &s.UserAgent, &s.IP,
		&s.Active, &s.CreatedAt, &s.ExpiresAt, &lastActivity}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if lastActivity.Valid {
		s.LastActivityAt = &lastActivity.Time
	}
	return &s, nil
}

// Create inserts a fresh session. The raw User-Agent is normalized to
// a coarse device label before storage; the refresh token must be a
// freshly generated value, enforced unique by the table constraint.
func (r *SessionRepo) Create(ctx context.Context, userID uint64, refreshToken, userAgent, ip string, expiresAt time.Time) (*model.Session, error) {
	row := r.DB.QueryRowContext(ctx,
		`INSERT INTO sessions (id, user_id, refresh_token, user_agent, ip, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+sessionColumns,
		uuid.New(), userID, refreshToken, utils.DeviceLabel(userAgent), ip, expiresAt)
	return scanSession(row)
}

// GetByRefreshToken looks up a session by its token, joining the
// owner's active/locked flags so the validity predicate needs no
// second query. A miss returns ErrNotFound.
func (r *SessionRepo) GetByRefreshToken(ctx context.Context, token string) (*model.Session, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT s.id, s.user_id, s.refresh_token, s.user_agent, s.ip, s.is_active,
		        s.created_at, s.expires_at, s.last_activity_at,
		        u.is_active, u.is_locked
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.refresh_token = $1 LIMIT 1`, token)
	s, err := scanSessionWithOwner(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return s, err
}

func scanSessionWithOwner(row interface{ Scan(...any) error }) (*model.Session, error) {
	var ownerActive, ownerLocked bool
	s, err := scanSession(row, &ownerActive, &ownerLocked)
	if err != nil {
		return nil, err
	}
	s.OwnerActive = ownerActive
	s.OwnerLocked = ownerLocked
	return s, nil
}

// ListActiveForUser returns the user's live sessions, newest first.
func (r *SessionRepo) ListActiveForUser(ctx context.Context, userID uint64) ([]model.Session, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND is_active AND expires_at > now()
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Invalidate deactivates one session. A non-zero userID scopes the
// update to that owner so callers can enforce ownership in one step.
func (r *SessionRepo) Invalidate(ctx context.Context, sessionID uuid.UUID, userID uint64) error {
	query := `UPDATE sessions SET is_active = false WHERE id = $1 AND is_active`
	args := []any{sessionID}
	if userID != 0 {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// InvalidateAllForUser deactivates every active session the user
// holds, optionally sparing one (used by "log out everywhere but
// here"). Returns the number of sessions invalidated.
func (r *SessionRepo) InvalidateAllForUser(ctx context.Context, userID uint64, except uuid.UUID) (int64, error) {
	query := `UPDATE sessions SET is_active = false WHERE user_id = $1 AND is_active`
	args := []any{userID}
	if except != uuid.Nil {
		query += ` AND id <> $2`
		args = append(args, except)
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InvalidateByRefreshToken deactivates the session bound to a token.
// Unknown tokens are a no-op, not an error; logout never fails over
// bookkeeping.
func (r *SessionRepo) InvalidateByRefreshToken(ctx context.Context, token string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE sessions SET is_active = false WHERE refresh_token = $1 AND is_active`, token)
	return err
}

// IsValid applies the full validity predicate: session active, not
// expired, owner active and unlocked. Discovering an expired but
// still-active session flips it inactive as a side effect (lazy
// expiry) rather than leaving it dangling.
func (r *SessionRepo) IsValid(ctx context.Context, s *model.Session) (bool, error) {
	if s == nil || !s.Active {
		return false, nil
	}
	if s.Expired(time.Now().UTC()) {
		if err := r.Invalidate(ctx, s.ID, 0); err != nil && err != ErrNotFound {
			return false, err
		}
		s.Active = false
		return false, nil
	}
	if !s.OwnerActive || s.OwnerLocked {
		return false, nil
	}
	return true, nil
}

// Renew rotates a session in a single conditional UPDATE keyed on the
// presented token: the old token dies and the expiry extends
// atomically, so two valid tokens never coexist for one session. Of
// two racing refreshes the first writer wins; the loser matches zero
// rows and gets ErrNotFound.
func (r *SessionRepo) Renew(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (*model.Session, error) {
	row := r.DB.QueryRowContext(ctx,
		`UPDATE sessions SET refresh_token = $1, expires_at = $2
		 WHERE refresh_token = $3 AND is_active
		 RETURNING `+sessionColumns, newToken, expiresAt, oldToken)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return s, err
}

// TouchActivity records last use. Advisory only; callers swallow the
// error.
func (r *SessionRepo) TouchActivity(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = now() WHERE id = $1`, sessionID)
	return err
}

// SweepExpired bulk-deactivates every session past its expiry and
// returns the count affected. Safe to run concurrently with normal
// traffic: it only touches rows that are already expired.
func (r *SessionRepo) SweepExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE sessions SET is_active = false WHERE is_active AND expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats returns the user's active and lifetime session counts.
func (r *SessionRepo) Stats(ctx context.Context, userID uint64) (model.SessionStats, error) {
	var st model.SessionStats
	err := r.DB.QueryRowContext(ctx,
		`SELECT count(*) FILTER (WHERE is_active AND expires_at > now()), count(*)
		 FROM sessions WHERE user_id = $1`, userID).Scan(&st.Active, &st.Total)
	return st, err
}
