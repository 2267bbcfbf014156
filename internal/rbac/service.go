package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Service orchestrates RBAC operations: permission entities, the assignment
// engine for user↔role and role↔permission links, and role resolution.
type Service struct {
	store  Store
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service backed by the provided store.
// Audit logger and logger may be nil.
func NewService(store Store, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{store: store, audit: audit, logger: logger}
}

// ListPermissions returns all permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// CreatePermission inserts a new permission.
func (s *Service) CreatePermission(ctx context.Context, name string) (Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, fmt.Errorf("rbac: permission name required: %w", shared.ErrInvalidInput)
	}
	return s.store.CreatePermission(ctx, name)
}

// UpdatePermission renames an existing permission.
func (s *Service) UpdatePermission(ctx context.Context, id int64, name string) (Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, fmt.Errorf("rbac: permission name required: %w", shared.ErrInvalidInput)
	}
	return s.store.UpdatePermission(ctx, id, name)
}

// DeletePermission removes a permission and its role associations.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	return s.store.DeletePermission(ctx, id)
}

// SyncRolePermissions replaces the role's permission set with exactly the
// given ids. Ids present in the target but not current are inserted, current
// ids missing from the target are deleted, the overlap is left untouched.
// The whole diff applies in one transaction; a missing role or target id
// rejects the call with ErrNotFound before any write happens.
func (s *Service) SyncRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	target := dedupe(permissionIDs)
	err := s.store.WithinTx(ctx, func(tx StoreTx) error {
		if err := tx.LockRole(ctx, roleID); err != nil {
			return fmt.Errorf("rbac: sync permissions: role %d: %w", roleID, err)
		}
		ok, err := tx.PermissionsExist(ctx, target)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("rbac: sync permissions: unknown permission id: %w", shared.ErrNotFound)
		}
		current, err := tx.RolePermissionIDs(ctx, roleID)
		if err != nil {
			return err
		}
		toAdd, toRemove := diff(current, target)
		for _, id := range toAdd {
			if err := tx.InsertRolePermission(ctx, roleID, id); err != nil {
				return err
			}
		}
		for _, id := range toRemove {
			if err := tx.DeleteRolePermission(ctx, roleID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "permissions.synced", "role", roleID, map[string]any{"permission_ids": target})
	return nil
}

// AttachUserRole adds a single user↔role link without touching existing ones.
// Attaching an already present pair is a no-op, not an error.
func (s *Service) AttachUserRole(ctx context.Context, userID, roleID int64) error {
	err := s.store.WithinTx(ctx, func(tx StoreTx) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return fmt.Errorf("rbac: attach role: user %d: %w", userID, err)
		}
		ok, err := tx.RolesExist(ctx, []int64{roleID})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("rbac: attach role: role %d: %w", roleID, shared.ErrNotFound)
		}
		return tx.InsertUserRole(ctx, userID, roleID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "role.attached", "user", userID, map[string]any{"role_id": roleID})
	return nil
}

// ReplaceUserRoles replaces the user's entire role set with exactly the one
// given role, using the same diff-and-apply discipline as SyncRolePermissions.
func (s *Service) ReplaceUserRoles(ctx context.Context, userID, roleID int64) error {
	err := s.store.WithinTx(ctx, func(tx StoreTx) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return fmt.Errorf("rbac: replace roles: user %d: %w", userID, err)
		}
		ok, err := tx.RolesExist(ctx, []int64{roleID})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("rbac: replace roles: role %d: %w", roleID, shared.ErrNotFound)
		}
		current, err := tx.UserRoleIDs(ctx, userID)
		if err != nil {
			return err
		}
		toAdd, toRemove := diff(current, []int64{roleID})
		for _, id := range toAdd {
			if err := tx.InsertUserRole(ctx, userID, id); err != nil {
				return err
			}
		}
		for _, id := range toRemove {
			if err := tx.DeleteUserRole(ctx, userID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "roles.replaced", "user", userID, map[string]any{"role_id": roleID})
	return nil
}

// RolesForUser resolves the caller's current role set from the store.
// Called on every authenticated request; results are never cached, so a
// revoked admin loses access on their next request.
func (s *Service) RolesForUser(ctx context.Context, userID int64) ([]string, error) {
	return s.store.RoleNamesForUser(ctx, userID)
}

// EffectivePermissions returns deduplicated permission names for a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return s.store.PermissionNamesForUser(ctx, userID)
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	var actorID int64
	if id := shared.IdentityFromContext(ctx); id != nil {
		actorID = id.UserID
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("record audit", slog.Any("error", err))
	}
}

// diff computes the symmetric difference between the current and target sets.
func diff(current, target []int64) (toAdd, toRemove []int64) {
	existing := make(map[int64]struct{}, len(current))
	for _, id := range current {
		existing[id] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(target))
	for _, id := range target {
		keep[id] = struct{}{}
		if _, ok := existing[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for _, id := range current {
		if _, ok := keep[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	return toAdd, toRemove
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
