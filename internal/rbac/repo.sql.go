package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-io/gatehouse/internal/platform/db"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// PGStore provides PostgreSQL backed persistence for the RBAC core.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PGStore.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// WithinTx runs fn inside a RepeatableRead transaction.
func (s *PGStore) WithinTx(ctx context.Context, fn func(StoreTx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgStoreTx{tx: tx})
	})
}

// ListPermissions returns all permissions.
func (s *PGStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at, updated_at FROM permissions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// CreatePermission inserts a permission, mapping unique violations to ErrDuplicate.
func (s *PGStore) CreatePermission(ctx context.Context, name string) (Permission, error) {
	var p Permission
	err := s.pool.QueryRow(ctx, `INSERT INTO permissions (name) VALUES ($1) RETURNING id, name, created_at, updated_at`, name).
		Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Permission{}, shared.ClassifyPGError(err)
	}
	return p, nil
}

// UpdatePermission renames a permission.
func (s *PGStore) UpdatePermission(ctx context.Context, id int64, name string) (Permission, error) {
	var p Permission
	err := s.pool.QueryRow(ctx, `UPDATE permissions SET name = $2, updated_at = NOW() WHERE id = $1 RETURNING id, name, created_at, updated_at`, id, name).
		Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Permission{}, shared.ClassifyPGError(err)
	}
	return p, nil
}

// DeletePermission removes a permission; role_permissions rows referencing it
// go away in the same statement via ON DELETE CASCADE.
func (s *PGStore) DeletePermission(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RoleNamesForUser returns the user's current role names.
func (s *PGStore) RoleNamesForUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT r.name FROM roles r JOIN user_roles ur ON ur.role_id = r.id WHERE ur.user_id = $1 ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

// PermissionNamesForUser returns deduplicated permission names for a user.
func (s *PGStore) PermissionNamesForUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT p.name FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1 ORDER BY p.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

type pgStoreTx struct {
	tx pgx.Tx
}

func (t *pgStoreTx) LockRole(ctx context.Context, roleID int64) error {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM roles WHERE id = $1 FOR UPDATE`, roleID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return err
}

func (t *pgStoreTx) LockUser(ctx context.Context, userID int64) error {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return err
}

func (t *pgStoreTx) PermissionsExist(ctx context.Context, ids []int64) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	var count int
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM permissions WHERE id = ANY($1)`, ids).Scan(&count); err != nil {
		return false, err
	}
	return count == len(ids), nil
}

func (t *pgStoreTx) RolesExist(ctx context.Context, ids []int64) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	var count int
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM roles WHERE id = ANY($1)`, ids).Scan(&count); err != nil {
		return false, err
	}
	return count == len(ids), nil
}

func (t *pgStoreTx) RolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (t *pgStoreTx) UserRoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (t *pgStoreTx) InsertRolePermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, permissionID)
	return err
}

func (t *pgStoreTx) DeleteRolePermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	return err
}

func (t *pgStoreTx) InsertUserRole(ctx context.Context, userID, roleID int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID)
	return err
}

func (t *pgStoreTx) DeleteUserRole(ctx context.Context, userID, roleID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

func scanIDs(rows pgx.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func scanStrings(rows pgx.Rows) ([]string, error) {
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

var _ Store = (*PGStore)(nil)
