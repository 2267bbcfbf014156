package users

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-io/gatehouse/internal/roles"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

type memoryUserRepo struct {
	users  map[int64]User
	roles  map[int64][]string
	nextID int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]User), roles: make(map[int64][]string)}
}

func (r *memoryUserRepo) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	all := make([]User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memoryUserRepo) CountUsers(ctx context.Context) (int, error) {
	return len(r.users), nil
}

func (r *memoryUserRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryUserRepo) CreateUser(ctx context.Context, name, email, passwordHash string) (User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return User{}, shared.ErrDuplicate
		}
	}
	r.nextID++
	u := User{ID: r.nextID, Name: name, Email: email, PasswordHash: passwordHash, IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryUserRepo) UpdateUser(ctx context.Context, id int64, params UpdateUserParams) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	if params.Name != nil {
		u.Name = *params.Name
	}
	if params.Email != nil {
		u.Email = *params.Email
	}
	if params.PasswordHash != nil {
		u.PasswordHash = *params.PasswordHash
	}
	if params.IsActive != nil {
		u.IsActive = *params.IsActive
	}
	u.UpdatedAt = time.Now()
	r.users[id] = u
	return u, nil
}

func (r *memoryUserRepo) DeleteUser(ctx context.Context, id int64) error {
	if _, ok := r.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.users, id)
	delete(r.roles, id)
	return nil
}

func (r *memoryUserRepo) RoleNamesByUser(ctx context.Context, userIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(userIDs))
	for _, id := range userIDs {
		if roles, ok := r.roles[id]; ok {
			out[id] = roles
		}
	}
	return out, nil
}

type stubEngine struct {
	attached [][2]int64
	replaced [][2]int64
	repo     *memoryUserRepo
	names    map[int64]string
	err      error
}

type stubRoleFinder struct {
	ids map[string]int64
}

func (f *stubRoleFinder) GetRoleByName(ctx context.Context, name string) (roles.Role, error) {
	id, ok := f.ids[name]
	if !ok {
		return roles.Role{}, shared.ErrNotFound
	}
	return roles.Role{ID: id, Name: name}, nil
}

func (e *stubEngine) AttachUserRole(ctx context.Context, userID, roleID int64) error {
	if e.err != nil {
		return e.err
	}
	e.attached = append(e.attached, [2]int64{userID, roleID})
	if e.repo != nil {
		e.repo.roles[userID] = append(e.repo.roles[userID], e.names[roleID])
	}
	return nil
}

func (e *stubEngine) ReplaceUserRoles(ctx context.Context, userID, roleID int64) error {
	if e.err != nil {
		return e.err
	}
	e.replaced = append(e.replaced, [2]int64{userID, roleID})
	if e.repo != nil {
		e.repo.roles[userID] = []string{e.names[roleID]}
	}
	return nil
}

func TestCreateUserHashesPasswordAndAttachesRoles(t *testing.T) {
	repo := newMemoryUserRepo()
	engine := &stubEngine{repo: repo, names: map[int64]string{3: "editor", 4: "viewer"}}
	finder := &stubRoleFinder{ids: map[string]int64{"editor": 3, "viewer": 4}}
	svc := NewService(repo, engine, finder)

	user, err := svc.CreateUser(context.Background(), CreateUserParams{
		Name:     "Alice",
		Email:    "Alice@Example.com",
		Password: "super-secret",
		Roles:    []string{"editor", "viewer"},
	})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email, "email is normalised")
	require.Equal(t, []string{"editor", "viewer"}, user.Roles)
	require.Equal(t, [][2]int64{{user.ID, 3}, {user.ID, 4}}, engine.attached)

	stored := repo.users[user.ID]
	require.NotEqual(t, "super-secret", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("super-secret")))
}

func TestCreateUserRejectsShortPassword(t *testing.T) {
	svc := NewService(newMemoryUserRepo(), &stubEngine{}, &stubRoleFinder{})
	_, err := svc.CreateUser(context.Background(), CreateUserParams{Name: "A", Email: "a@b.c", Password: "short"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo, &stubEngine{repo: repo}, &stubRoleFinder{})
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserParams{Name: "A", Email: "a@b.c", Password: "password1"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, CreateUserParams{Name: "B", Email: "a@b.c", Password: "password2"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestUpdateUserPartialFields(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo, &stubEngine{repo: repo}, &stubRoleFinder{})
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, CreateUserParams{Name: "Alice", Email: "alice@example.com", Password: "password1"})
	require.NoError(t, err)
	originalHash := repo.users[created.ID].PasswordHash

	newName := "Alice Cooper"
	updated, err := svc.UpdateUser(ctx, created.ID, UpdateUserInput{Name: &newName})
	require.NoError(t, err)
	require.Equal(t, "Alice Cooper", updated.Name)
	require.Equal(t, "alice@example.com", updated.Email)
	require.Equal(t, originalHash, repo.users[created.ID].PasswordHash, "password untouched")

	newPassword := "fresh-password"
	_, err = svc.UpdateUser(ctx, created.ID, UpdateUserInput{Password: &newPassword})
	require.NoError(t, err)
	require.NotEqual(t, originalHash, repo.users[created.ID].PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[created.ID].PasswordHash), []byte(newPassword)))
}

func TestAssignRoleReplacesSet(t *testing.T) {
	repo := newMemoryUserRepo()
	engine := &stubEngine{repo: repo, names: map[int64]string{1: "editor", 2: "admin"}}
	finder := &stubRoleFinder{ids: map[string]int64{"editor": 1, "admin": 2}}
	svc := NewService(repo, engine, finder)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, CreateUserParams{Name: "Alice", Email: "alice@example.com", Password: "password1", Roles: []string{"editor"}})
	require.NoError(t, err)

	user, err := svc.AssignRole(ctx, created.ID, "admin")
	require.NoError(t, err)
	require.Equal(t, []string{"admin"}, user.Roles)
	require.Equal(t, [][2]int64{{created.ID, 2}}, engine.replaced)
}

func TestAssignRoleUnknownName(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo, &stubEngine{repo: repo}, &stubRoleFinder{})
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, CreateUserParams{Name: "Alice", Email: "alice@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.AssignRole(ctx, created.ID, "ghost")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListUsersPaginates(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo, &stubEngine{repo: repo}, &stubRoleFinder{})
	ctx := context.Background()

	for _, email := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		_, err := svc.CreateUser(ctx, CreateUserParams{Name: email, Email: email, Password: "password1"})
		require.NoError(t, err)
	}

	result, err := svc.ListUsers(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, result.Users, 2)
	require.Equal(t, 3, result.Pagination.Total)
	require.Equal(t, 2, result.Pagination.TotalPages)

	result, err = svc.ListUsers(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, result.Users, 1)
}

func TestDeleteUser(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo, &stubEngine{repo: repo}, &stubRoleFinder{})
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, CreateUserParams{Name: "Alice", Email: "alice@example.com", Password: "password1"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteUser(ctx, created.ID))
	require.ErrorIs(t, svc.DeleteUser(ctx, created.ID), shared.ErrNotFound)
}
