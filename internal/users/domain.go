package users

import "time"

// User represents an account managed through the API.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserWithRoles pairs a user with their current role names.
type UserWithRoles struct {
	User
	Roles []string
}
