package rbac

import "time"

// Permission represents an atomic capability.
type Permission struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}