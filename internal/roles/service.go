package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// PermissionSyncer is the slice of the assignment engine the role service
// needs for role↔permission replacement.
type PermissionSyncer interface {
	SyncRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
}

// Service handles role business logic.
type Service struct {
	repo   RepositoryPort
	syncer PermissionSyncer
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, syncer PermissionSyncer) *Service {
	return &Service{repo: repo, syncer: syncer}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole returns a role with its current permission names.
func (s *Service) GetRole(ctx context.Context, id int64) (RoleWithPermissions, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return RoleWithPermissions{}, err
	}
	permissions, err := s.repo.PermissionNamesForRole(ctx, id)
	if err != nil {
		return RoleWithPermissions{}, err
	}
	return RoleWithPermissions{Role: role, Permissions: permissions}, nil
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("roles: name required: %w", shared.ErrInvalidInput)
	}
	return s.repo.CreateRole(ctx, name)
}

// UpdateRole renames a role.
func (s *Service) UpdateRole(ctx context.Context, id int64, name string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("roles: name required: %w", shared.ErrInvalidInput)
	}
	return s.repo.UpdateRole(ctx, id, name)
}

// DeleteRole removes a role and its associations.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.repo.DeleteRole(ctx, id)
}

// SyncPermissions replaces the role's permission set through the
// assignment engine.
func (s *Service) SyncPermissions(ctx context.Context, roleID int64, permissionIDs []int64) (RoleWithPermissions, error) {
	if err := s.syncer.SyncRolePermissions(ctx, roleID, permissionIDs); err != nil {
		return RoleWithPermissions{}, err
	}
	return s.GetRole(ctx, roleID)
}
