package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"

	"github.com/iliyamo/auth-service/internal/model"
)

// RoleRepo owns the small, mostly-static `roles` catalog and the
// junction queries against `user_roles`.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

const roleColumns = "id, name, description, created_at"

func scanRole(row interface{ Scan(...any) error }) (*model.Role, error) {
	var role model.Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
		return nil, err
	}
	return &role, nil
}

// Create inserts a role. Names are stored lowercase and must be
// unique; duplicates are reported as ErrRoleExists.
func (r *RoleRepo) Create(ctx context.Context, name, description string) (*model.Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	row := r.DB.QueryRowContext(ctx,
		`INSERT INTO roles (name, description) VALUES ($1, $2) RETURNING `+roleColumns,
		name, description)
	role, err := scanRole(row)
	if err != nil {
		if isPgErr(err, pgUniqueViolation) {
			return nil, ErrRoleExists
		}
		return nil, err
	}
	return role, nil
}

func (r *RoleRepo) GetByID(ctx context.Context, id uint64) (*model.Role, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1 LIMIT 1`, id)
	role, err := scanRole(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return role, err
}

func (r *RoleRepo) GetByName(ctx context.Context, name string) (*model.Role, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE name = $1 LIMIT 1`,
		strings.ToLower(strings.TrimSpace(name)))
	role, err := scanRole(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return role, err
}

// List returns the full catalog ordered by name.
func (r *RoleRepo) List(ctx context.Context) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *role)
	}
	return out, rows.Err()
}

// Update changes a role's name and/or description.
func (r *RoleRepo) Update(ctx context.Context, id uint64, name, description string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE roles SET name = $1, description = $2 WHERE id = $3`,
		strings.ToLower(strings.TrimSpace(name)), description, id)
	if err != nil {
		if isPgErr(err, pgUniqueViolation) {
			return ErrRoleExists
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a role from the catalog. Blocked with ErrRoleInUse
// while any user still holds it.
func (r *RoleRepo) Delete(ctx context.Context, id uint64) error {
	var held int
	if err := r.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM user_roles WHERE role_id = $1`, id).Scan(&held); err != nil {
		return err
	}
	if held > 0 {
		return ErrRoleInUse
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if isPgErr(err, pgForeignKeyViolation) {
			return ErrRoleInUse
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UsersForRole lists the users currently holding a role.
func (r *RoleRepo) UsersForRole(ctx context.Context, roleID uint64) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT u.`+strings.ReplaceAll(userColumns, ", ", ", u.")+`
		 FROM users u JOIN user_roles ur ON ur.user_id = u.id
		 WHERE ur.role_id = $1 ORDER BY u.email`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// RolesForUser lists the roles a user holds.
func (r *RoleRepo) RolesForUser(ctx context.Context, userID uint64) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT r.id, r.name, r.description, r.created_at
		 FROM roles r JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1 ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *role)
	}
	return out, rows.Err()
}

// HasRole reports whether the user holds the named role.
func (r *RoleRepo) HasRole(ctx context.Context, userID uint64, name string) (bool, error) {
	return r.HasAnyRole(ctx, userID, name)
}

// HasAnyRole reports whether the user holds at least one of the named
// roles. Names are matched case-insensitively.
func (r *RoleRepo) HasAnyRole(ctx context.Context, userID uint64, names ...string) (bool, error) {
	if len(names) == 0 {
		return false, nil
	}
	lowered := make([]string, len(names))
	for i, n := range names {
		lowered[i] = strings.ToLower(strings.TrimSpace(n))
	}
	var found bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		   WHERE ur.user_id = $1 AND r.name = ANY($2)
		 )`, userID, pq.Array(lowered)).Scan(&found)
	return found, err
}

// EnsureDefaults seeds the fixed role catalog. Roles that already
// exist are silently skipped, so the bootstrap is idempotent.
func (r *RoleRepo) EnsureDefaults(ctx context.Context) error {
	for _, role := range model.DefaultRoles {
		_, err := r.DB.ExecContext(ctx,
			`INSERT INTO roles (name, description) VALUES ($1, $2)
			 ON CONFLICT (name) DO NOTHING`, role.Name, role.Description)
		if err != nil {
			return err
		}
	}
	return nil
}
