package rbac

import "context"

// Store is the persistence port for permission entities and the
// assignment engine.
type Store interface {
	// WithinTx runs fn inside a single transaction. Everything the engine
	// does through the StoreTx either commits as a whole or not at all.
	WithinTx(ctx context.Context, fn func(StoreTx) error) error

	ListPermissions(ctx context.Context) ([]Permission, error)
	CreatePermission(ctx context.Context, name string) (Permission, error)
	UpdatePermission(ctx context.Context, id int64, name string) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error

	// RoleNamesForUser reads the caller's current role set. Callers must not
	// cache the result across requests.
	RoleNamesForUser(ctx context.Context, userID int64) ([]string, error)
	// PermissionNamesForUser returns deduplicated permission names granted
	// through the user's roles.
	PermissionNamesForUser(ctx context.Context, userID int64) ([]string, error)
}

// StoreTx exposes the row-level operations available inside a transaction.
type StoreTx interface {
	// LockRole takes a row lock on the owner role so concurrent syncs on the
	// same role serialize. Returns shared.ErrNotFound for unknown ids.
	LockRole(ctx context.Context, roleID int64) error
	// LockUser is the user-owner counterpart of LockRole.
	LockUser(ctx context.Context, userID int64) error

	PermissionsExist(ctx context.Context, ids []int64) (bool, error)
	RolesExist(ctx context.Context, ids []int64) (bool, error)

	RolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error)
	UserRoleIDs(ctx context.Context, userID int64) ([]int64, error)

	InsertRolePermission(ctx context.Context, roleID, permissionID int64) error
	DeleteRolePermission(ctx context.Context, roleID, permissionID int64) error
	InsertUserRole(ctx context.Context, userID, roleID int64) error
	DeleteUserRole(ctx context.Context, userID, roleID int64) error
}
