package rbac

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/shared"
)

type memoryStore struct {
	permissions     map[int64]Permission
	roles           map[int64]string
	users           map[int64]string
	rolePermissions map[int64]map[int64]struct{}
	userRoles       map[int64]map[int64]struct{}
	nextID          int64

	inserts int
	deletes int
	ops     []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		permissions:     make(map[int64]Permission),
		roles:           make(map[int64]string),
		users:           make(map[int64]string),
		rolePermissions: make(map[int64]map[int64]struct{}),
		userRoles:       make(map[int64]map[int64]struct{}),
	}
}

func (s *memoryStore) addRole(name string) int64 {
	s.nextID++
	s.roles[s.nextID] = name
	return s.nextID
}

func (s *memoryStore) addUser(name string) int64 {
	s.nextID++
	s.users[s.nextID] = name
	return s.nextID
}

func (s *memoryStore) addPermission(name string) int64 {
	s.nextID++
	s.permissions[s.nextID] = Permission{ID: s.nextID, Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	return s.nextID
}

func (s *memoryStore) WithinTx(ctx context.Context, fn func(StoreTx) error) error {
	// The fake applies writes immediately; rollback fidelity is covered by
	// asserting no write happened before the failing step.
	return fn(&memoryStoreTx{store: s})
}

func (s *memoryStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) CreatePermission(ctx context.Context, name string) (Permission, error) {
	for _, p := range s.permissions {
		if p.Name == name {
			return Permission{}, shared.ErrDuplicate
		}
	}
	id := s.addPermission(name)
	return s.permissions[id], nil
}

func (s *memoryStore) UpdatePermission(ctx context.Context, id int64, name string) (Permission, error) {
	p, ok := s.permissions[id]
	if !ok {
		return Permission{}, shared.ErrNotFound
	}
	for _, other := range s.permissions {
		if other.ID != id && other.Name == name {
			return Permission{}, shared.ErrDuplicate
		}
	}
	p.Name = name
	s.permissions[id] = p
	return p, nil
}

func (s *memoryStore) DeletePermission(ctx context.Context, id int64) error {
	if _, ok := s.permissions[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.permissions, id)
	for _, set := range s.rolePermissions {
		delete(set, id)
	}
	return nil
}

func (s *memoryStore) RoleNamesForUser(ctx context.Context, userID int64) ([]string, error) {
	var out []string
	for roleID := range s.userRoles[userID] {
		out = append(out, s.roles[roleID])
	}
	sort.Strings(out)
	return out, nil
}

func (s *memoryStore) PermissionNamesForUser(ctx context.Context, userID int64) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for roleID := range s.userRoles[userID] {
		for permID := range s.rolePermissions[roleID] {
			name := s.permissions[permID].Name
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memoryStoreTx struct {
	store *memoryStore
}

func (tx *memoryStoreTx) LockRole(ctx context.Context, roleID int64) error {
	tx.store.ops = append(tx.store.ops, "lock-role")
	if _, ok := tx.store.roles[roleID]; !ok {
		return shared.ErrNotFound
	}
	return nil
}

func (tx *memoryStoreTx) LockUser(ctx context.Context, userID int64) error {
	tx.store.ops = append(tx.store.ops, "lock-user")
	if _, ok := tx.store.users[userID]; !ok {
		return shared.ErrNotFound
	}
	return nil
}

func (tx *memoryStoreTx) PermissionsExist(ctx context.Context, ids []int64) (bool, error) {
	for _, id := range ids {
		if _, ok := tx.store.permissions[id]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (tx *memoryStoreTx) RolesExist(ctx context.Context, ids []int64) (bool, error) {
	for _, id := range ids {
		if _, ok := tx.store.roles[id]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (tx *memoryStoreTx) RolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	tx.store.ops = append(tx.store.ops, "read-role-permissions")
	return sortedIDs(tx.store.rolePermissions[roleID]), nil
}

func (tx *memoryStoreTx) UserRoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	tx.store.ops = append(tx.store.ops, "read-user-roles")
	return sortedIDs(tx.store.userRoles[userID]), nil
}

func (tx *memoryStoreTx) InsertRolePermission(ctx context.Context, roleID, permissionID int64) error {
	tx.store.inserts++
	if tx.store.rolePermissions[roleID] == nil {
		tx.store.rolePermissions[roleID] = make(map[int64]struct{})
	}
	tx.store.rolePermissions[roleID][permissionID] = struct{}{}
	return nil
}

func (tx *memoryStoreTx) DeleteRolePermission(ctx context.Context, roleID, permissionID int64) error {
	tx.store.deletes++
	delete(tx.store.rolePermissions[roleID], permissionID)
	return nil
}

func (tx *memoryStoreTx) InsertUserRole(ctx context.Context, userID, roleID int64) error {
	tx.store.inserts++
	if tx.store.userRoles[userID] == nil {
		tx.store.userRoles[userID] = make(map[int64]struct{})
	}
	tx.store.userRoles[userID][roleID] = struct{}{}
	return nil
}

func (tx *memoryStoreTx) DeleteUserRole(ctx context.Context, userID, roleID int64) error {
	tx.store.deletes++
	delete(tx.store.userRoles[userID], roleID)
	return nil
}

func sortedIDs(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestSyncRolePermissionsReplacesSet(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	roleID := store.addRole("editor")
	read := store.addPermission("posts.read")
	write := store.addPermission("posts.write")
	remove := store.addPermission("posts.delete")

	require.NoError(t, svc.SyncRolePermissions(ctx, roleID, []int64{read, remove}))
	require.Equal(t, []int64{read, remove}, sortedIDs(store.rolePermissions[roleID]))

	require.NoError(t, svc.SyncRolePermissions(ctx, roleID, []int64{read, write}))
	require.Equal(t, []int64{read, write}, sortedIDs(store.rolePermissions[roleID]))
}

func TestSyncRolePermissionsIdempotent(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	roleID := store.addRole("editor")
	read := store.addPermission("posts.read")
	write := store.addPermission("posts.write")

	require.NoError(t, svc.SyncRolePermissions(ctx, roleID, []int64{read, write}))
	inserts, deletes := store.inserts, store.deletes

	require.NoError(t, svc.SyncRolePermissions(ctx, roleID, []int64{write, read}))
	require.Equal(t, inserts, store.inserts, "repeat sync must not insert")
	require.Equal(t, deletes, store.deletes, "repeat sync must not delete")
}

func TestSyncRolePermissionsEmptyTargetClears(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	roleID := store.addRole("editor")
	read := store.addPermission("posts.read")
	require.NoError(t, svc.SyncRolePermissions(ctx, roleID, []int64{read}))

	require.NoError(t, svc.SyncRolePermissions(ctx, roleID, nil))
	require.Empty(t, store.rolePermissions[roleID])
}

func TestSyncRolePermissionsUnknownTargetRejectsWholeCall(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	roleID := store.addRole("editor")
	read := store.addPermission("posts.read")

	err := svc.SyncRolePermissions(ctx, roleID, []int64{read, 9999})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, store.rolePermissions[roleID], "no partial writes on failed sync")
	require.Zero(t, store.inserts)
}

func TestSyncRolePermissionsUnknownRole(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)

	err := svc.SyncRolePermissions(context.Background(), 42, nil)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSyncRolePermissionsDeduplicatesTarget(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	roleID := store.addRole("editor")
	read := store.addPermission("posts.read")

	require.NoError(t, svc.SyncRolePermissions(ctx, roleID, []int64{read, read, read}))
	require.Equal(t, 1, store.inserts)
}

func TestAttachUserRoleIsAdditive(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	userID := store.addUser("alice")
	editor := store.addRole("editor")
	viewer := store.addRole("viewer")

	require.NoError(t, svc.AttachUserRole(ctx, userID, editor))
	require.NoError(t, svc.AttachUserRole(ctx, userID, viewer))
	require.Equal(t, []int64{editor, viewer}, sortedIDs(store.userRoles[userID]))
}

func TestAttachUserRoleTwiceKeepsSingleLink(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	userID := store.addUser("alice")
	editor := store.addRole("editor")

	require.NoError(t, svc.AttachUserRole(ctx, userID, editor))
	require.NoError(t, svc.AttachUserRole(ctx, userID, editor))
	require.Len(t, store.userRoles[userID], 1)
}

func TestAttachUserRoleUnknownRole(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)

	userID := store.addUser("alice")
	err := svc.AttachUserRole(context.Background(), userID, 77)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, store.userRoles[userID])
}

func TestReplaceUserRolesSwapsEntireSet(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	userID := store.addUser("alice")
	editor := store.addRole("editor")
	viewer := store.addRole("viewer")
	admin := store.addRole("admin")

	require.NoError(t, svc.AttachUserRole(ctx, userID, editor))
	require.NoError(t, svc.AttachUserRole(ctx, userID, viewer))

	require.NoError(t, svc.ReplaceUserRoles(ctx, userID, admin))
	require.Equal(t, []int64{admin}, sortedIDs(store.userRoles[userID]))
}

func TestReplaceUserRolesIdempotent(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	userID := store.addUser("alice")
	editor := store.addRole("editor")

	require.NoError(t, svc.ReplaceUserRoles(ctx, userID, editor))
	inserts, deletes := store.inserts, store.deletes

	require.NoError(t, svc.ReplaceUserRoles(ctx, userID, editor))
	require.Equal(t, inserts, store.inserts)
	require.Equal(t, deletes, store.deletes)
}

func TestRolesForUserReflectsCurrentAssignments(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	userID := store.addUser("alice")
	adminRole := store.addRole(shared.RoleAdmin)
	viewer := store.addRole("viewer")

	require.NoError(t, svc.AttachUserRole(ctx, userID, adminRole))
	roles, err := svc.RolesForUser(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, []string{shared.RoleAdmin}, roles)

	// Revoking admin is visible on the very next resolution.
	require.NoError(t, svc.ReplaceUserRoles(ctx, userID, viewer))
	roles, err = svc.RolesForUser(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, []string{"viewer"}, roles)
}

func TestEffectivePermissionsDeduplicates(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	userID := store.addUser("alice")
	editor := store.addRole("editor")
	viewer := store.addRole("viewer")
	read := store.addPermission("posts.read")
	write := store.addPermission("posts.write")

	require.NoError(t, svc.SyncRolePermissions(ctx, editor, []int64{read, write}))
	require.NoError(t, svc.SyncRolePermissions(ctx, viewer, []int64{read}))
	require.NoError(t, svc.AttachUserRole(ctx, userID, editor))
	require.NoError(t, svc.AttachUserRole(ctx, userID, viewer))

	names, err := svc.EffectivePermissions(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, []string{"posts.read", "posts.write"}, names)
}

func TestCreatePermissionRejectsBlankName(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)

	_, err := svc.CreatePermission(context.Background(), "   ")
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestCreatePermissionDuplicateName(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	_, err := svc.CreatePermission(ctx, "posts.read")
	require.NoError(t, err)
	_, err = svc.CreatePermission(ctx, "posts.read")
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestUpdatePermissionDuplicateName(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	read, err := svc.CreatePermission(ctx, "posts.read")
	require.NoError(t, err)
	_, err = svc.CreatePermission(ctx, "posts.write")
	require.NoError(t, err)

	_, err = svc.UpdatePermission(ctx, read.ID, "posts.write")
	require.ErrorIs(t, err, shared.ErrDuplicate)

	// Renaming a permission to its own current name is not a collision.
	renamed, err := svc.UpdatePermission(ctx, read.ID, "posts.read")
	require.NoError(t, err)
	require.Equal(t, "posts.read", renamed.Name)
}

func TestSyncRolePermissionsLocksBeforeReadingCurrentSet(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	roleID := store.addRole("editor")
	read := store.addPermission("posts.read")
	write := store.addPermission("posts.write")

	// Each sync must take the owner lock before reading the current set, so
	// a sync serialized behind another always diffs against the committed
	// state rather than a stale snapshot.
	require.NoError(t, svc.SyncRolePermissions(ctx, roleID, []int64{read}))
	require.NoError(t, svc.SyncRolePermissions(ctx, roleID, []int64{write}))

	require.Equal(t,
		[]string{"lock-role", "read-role-permissions", "lock-role", "read-role-permissions"},
		store.ops)

	// Last writer wins outright: the first sync's insert is removed.
	require.Equal(t, []int64{write}, sortedIDs(store.rolePermissions[roleID]))
}

func TestReplaceUserRolesLocksBeforeReadingCurrentSet(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	userID := store.addUser("alice")
	editor := store.addRole("editor")
	viewer := store.addRole("viewer")

	require.NoError(t, svc.ReplaceUserRoles(ctx, userID, editor))
	require.NoError(t, svc.ReplaceUserRoles(ctx, userID, viewer))

	require.Equal(t,
		[]string{"lock-user", "read-user-roles", "lock-user", "read-user-roles"},
		store.ops)
	require.Equal(t, []int64{viewer}, sortedIDs(store.userRoles[userID]))
}
