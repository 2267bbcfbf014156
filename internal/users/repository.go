package users

import "context"

// UpdateUserParams carries optional fields for a partial user update.
// Nil pointers leave the column untouched.
type UpdateUserParams struct {
	Name         *string
	Email        *string
	PasswordHash *string
	IsActive     *bool
}

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, limit, offset int) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, name, email, passwordHash string) (User, error)
	UpdateUser(ctx context.Context, id int64, params UpdateUserParams) (User, error)
	DeleteUser(ctx context.Context, id int64) error
	RoleNamesByUser(ctx context.Context, userIDs []int64) (map[int64][]string, error)
}
