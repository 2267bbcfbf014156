package roles

import "time"

// Role represents a named grant bundle assignable to users.
type Role struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleWithPermissions pairs a role with its current permission names.
type RoleWithPermissions struct {
	Role
	Permissions []string
}
