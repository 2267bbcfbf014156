package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/gatehouse-io/gatehouse/internal/roles"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// RoleEngine is the slice of the assignment engine the user service needs.
type RoleEngine interface {
	AttachUserRole(ctx context.Context, userID, roleID int64) error
	ReplaceUserRoles(ctx context.Context, userID, roleID int64) error
}

// RoleFinder resolves role names to role records. The API accepts role
// names, the engine works on ids.
type RoleFinder interface {
	GetRoleByName(ctx context.Context, name string) (roles.Role, error)
}

// CreateUserParams carries input for user creation.
type CreateUserParams struct {
	Name     string
	Email    string
	Password string
	Roles    []string
}

// UpdateUserInput carries optional fields for user update.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
	IsActive *bool
}

// ListResult is one page of users with pagination metadata.
type ListResult struct {
	Users      []UserWithRoles
	Pagination shared.Pagination
}

// Service handles user management business logic.
type Service struct {
	repo   RepositoryPort
	engine RoleEngine
	roles  RoleFinder
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, engine RoleEngine, roleFinder RoleFinder) *Service {
	return &Service{repo: repo, engine: engine, roles: roleFinder}
}

// ListUsers returns one page of users with their role names. The page and
// total queries run concurrently.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) (ListResult, error) {
	if perPage > 100 {
		perPage = 20
	}
	pg := shared.NewPagination(page, perPage, 0)

	var (
		users []User
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.repo.ListUsers(gctx, pg.PerPage, pg.Offset())
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.CountUsers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ListResult{}, err
	}

	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	rolesByUser, err := s.repo.RoleNamesByUser(ctx, ids)
	if err != nil {
		return ListResult{}, err
	}

	out := make([]UserWithRoles, 0, len(users))
	for _, u := range users {
		out = append(out, UserWithRoles{User: u, Roles: rolesByUser[u.ID]})
	}
	return ListResult{Users: out, Pagination: shared.NewPagination(pg.Page, pg.PerPage, total)}, nil
}

// GetUser returns one user with their current role names.
func (s *Service) GetUser(ctx context.Context, id int64) (UserWithRoles, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return UserWithRoles{}, err
	}
	rolesByUser, err := s.repo.RoleNamesByUser(ctx, []int64{id})
	if err != nil {
		return UserWithRoles{}, err
	}
	return UserWithRoles{User: user, Roles: rolesByUser[id]}, nil
}

// CreateUser creates an account and attaches the requested roles additively.
func (s *Service) CreateUser(ctx context.Context, params CreateUserParams) (UserWithRoles, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	if params.Name == "" || params.Email == "" {
		return UserWithRoles{}, fmt.Errorf("users: name and email required: %w", shared.ErrInvalidInput)
	}
	if len(params.Password) < 8 {
		return UserWithRoles{}, fmt.Errorf("users: password must be at least 8 characters: %w", shared.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserWithRoles{}, fmt.Errorf("users: hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, params.Name, params.Email, string(hash))
	if err != nil {
		return UserWithRoles{}, err
	}
	for _, roleName := range params.Roles {
		role, err := s.roles.GetRoleByName(ctx, strings.TrimSpace(roleName))
		if err != nil {
			return UserWithRoles{}, err
		}
		if err := s.engine.AttachUserRole(ctx, user.ID, role.ID); err != nil {
			return UserWithRoles{}, err
		}
	}
	return s.GetUser(ctx, user.ID)
}

// UpdateUser applies a partial update; a new password is re-hashed.
func (s *Service) UpdateUser(ctx context.Context, id int64, input UpdateUserInput) (UserWithRoles, error) {
	params := UpdateUserParams{IsActive: input.IsActive}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return UserWithRoles{}, fmt.Errorf("users: name must not be blank: %w", shared.ErrInvalidInput)
		}
		params.Name = &name
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return UserWithRoles{}, fmt.Errorf("users: email must not be blank: %w", shared.ErrInvalidInput)
		}
		params.Email = &email
	}
	if input.Password != nil {
		if len(*input.Password) < 8 {
			return UserWithRoles{}, fmt.Errorf("users: password must be at least 8 characters: %w", shared.ErrInvalidInput)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return UserWithRoles{}, fmt.Errorf("users: hash password: %w", err)
		}
		hashStr := string(hash)
		params.PasswordHash = &hashStr
	}

	user, err := s.repo.UpdateUser(ctx, id, params)
	if err != nil {
		return UserWithRoles{}, err
	}
	rolesByUser, err := s.repo.RoleNamesByUser(ctx, []int64{id})
	if err != nil {
		return UserWithRoles{}, err
	}
	return UserWithRoles{User: user, Roles: rolesByUser[id]}, nil
}

// DeleteUser removes a user and their associations.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	return s.repo.DeleteUser(ctx, id)
}

// AssignRole replaces the user's role set with the single named role.
func (s *Service) AssignRole(ctx context.Context, userID int64, roleName string) (UserWithRoles, error) {
	role, err := s.roles.GetRoleByName(ctx, strings.TrimSpace(roleName))
	if err != nil {
		return UserWithRoles{}, err
	}
	if err := s.engine.ReplaceUserRoles(ctx, userID, role.ID); err != nil {
		return UserWithRoles{}, err
	}
	return s.GetUser(ctx, userID)
}
