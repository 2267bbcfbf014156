package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

var validate = validator.New()

// PermissionsHandler exposes permission management endpoints.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service}
}

// MountRoutes registers permission routes. All routes sit behind the admin gate.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Get("/", h.listPermissions)
		r.Post("/", h.createPermission)
		r.Put("/{permissionID}", h.updatePermission)
		r.Delete("/{permissionID}", h.deletePermission)
	})
}

type permissionPayload struct {
	Name string `json:"name" validate:"required,max=191"`
}

type permissionResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toPermissionResponse(p Permission) permissionResponse {
	return permissionResponse{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	permissions, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]permissionResponse, 0, len(permissions))
	for _, p := range permissions {
		out = append(out, toPermissionResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}

func (h *PermissionsHandler) createPermission(w http.ResponseWriter, r *http.Request) {
	var payload permissionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrInvalidInput))
		return
	}
	if err := validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("name is required: %w", shared.ErrInvalidInput))
		return
	}
	permission, err := h.service.CreatePermission(r.Context(), payload.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"permission": toPermissionResponse(permission)})
}

func (h *PermissionsHandler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "permissionID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload permissionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrInvalidInput))
		return
	}
	if err := validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("name is required: %w", shared.ErrInvalidInput))
		return
	}
	permission, err := h.service.UpdatePermission(r.Context(), id, payload.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permission": toPermissionResponse(permission)})
}

func (h *PermissionsHandler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "permissionID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// pathID parses a numeric chi URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, shared.ErrInvalidInput)
	}
	return id, nil
}
