package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/auth-service/internal/model"
)

// UserRepo owns the `users` table and the `user_roles` junction.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, email, name, password_hash, is_active, is_locked, failed_attempts, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Active, &u.Locked,
		&u.FailedAttempts, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a user. Accounts always start inactive and unlocked;
// approval is a separate administrative update. The email must already
// be normalized to lowercase by the caller.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, name string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		`INSERT INTO users (email, name, password_hash) VALUES ($1, $2, $3)
		 RETURNING `+userColumns, email, name, passwordHash)
	u, err := scanUser(row)
	if err != nil {
		if isPgErr(err, pgUniqueViolation) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email. A miss is a normal
// empty result: (nil, nil).
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = $1 LIMIT 1`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return u, err
}

// GetWithRoles fetches a user and joins in their role catalog entries.
func (r *UserRepo) GetWithRoles(ctx context.Context, id uint64) (*model.User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT r.id, r.name, r.description, r.created_at
		 FROM roles r JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1 ORDER BY r.name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
			return nil, err
		}
		u.Roles = append(u.Roles, role)
	}
	return u, rows.Err()
}

// Update mutates only the allow-listed fields carried by UserUpdate.
func (r *UserRepo) Update(ctx context.Context, id uint64, upd model.UserUpdate) error {
	set := []string{"updated_at = now()"}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Active != nil {
		add("is_active", *upd.Active)
	}
	if upd.Locked != nil {
		add("is_locked", *upd.Locked)
	}
	if upd.FailedAttempts != nil {
		add("failed_attempts", *upd.FailedAttempts)
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx,
		fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(set, ", "), len(args)), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// ChangePassword stores a new password hash. Only the hash is ever
// persisted.
func (r *UserRepo) ChangePassword(ctx context.Context, id uint64, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, passwordHash, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// AssignRole adds a (user, role) junction row. Assigning an already
// held role is reported as ErrRoleAssigned, distinct from other
// failures.
func (r *UserRepo) AssignRole(ctx context.Context, userID, roleID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID)
	if err != nil {
		if isPgErr(err, pgUniqueViolation) {
			return ErrRoleAssigned
		}
		if isPgErr(err, pgForeignKeyViolation) {
			return ErrNotFound
		}
	}
	return err
}

// RemoveRole deletes one junction row.
func (r *UserRepo) RemoveRole(ctx context.Context, userID, roleID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// RemoveAllRoles clears every role the user holds. Used by role
// replacement and permanent delete.
func (r *UserRepo) RemoveAllRoles(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID)
	return err
}

// ListFilter controls List pagination and filtering.
type ListFilter struct {
	Search          string // case-insensitive substring over email/name
	IncludeInactive bool
	Page            int // 1-based
	PerPage         int
}

// List returns a page of users plus the total count for the filter.
func (r *UserRepo) List(ctx context.Context, f ListFilter) ([]model.User, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
	where := []string{"true"}
	args := []any{}
	if !f.IncludeInactive {
		where = append(where, "is_active")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		where = append(where, fmt.Sprintf("(lower(email) LIKE $%d OR lower(name) LIKE $%d)", len(args), len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT count(*) FROM users WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	rows, err := r.DB.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM users WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		userColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

// Delete permanently removes a user. Role junction rows go first for
// referential cleanup; a remaining foreign-key reference from business
// data outside this service surfaces as ErrHasDependencies.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if isPgErr(err, pgForeignKeyViolation) {
			return ErrHasDependencies
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
