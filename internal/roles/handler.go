package roles

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/rbac"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

var validate = validator.New()

// Handler manages role management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers role routes. All routes sit behind the admin gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(rbac.RequireAdmin)
		r.Get("/", h.listRoles)
		r.Post("/", h.createRole)
		r.Get("/{roleID}", h.getRole)
		r.Put("/{roleID}", h.updateRole)
		r.Delete("/{roleID}", h.deleteRole)
		r.Post("/{roleID}/permissions", h.syncPermissions)
	})
}

type rolePayload struct {
	Name string `json:"name" validate:"required,max=191"`
}

type syncPermissionsPayload struct {
	Permissions []int64 `json:"permissions"`
}

type roleResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type roleDetailResponse struct {
	roleResponse
	Permissions []string `json:"permissions"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{ID: role.ID, Name: role.Name, CreatedAt: role.CreatedAt, UpdatedAt: role.UpdatedAt}
}

func toRoleDetailResponse(role RoleWithPermissions) roleDetailResponse {
	permissions := role.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	return roleDetailResponse{roleResponse: toRoleResponse(role.Role), Permissions: permissions}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": toRoleDetailResponse(role)})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var payload rolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrInvalidInput))
		return
	}
	if err := validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("name is required: %w", shared.ErrInvalidInput))
		return
	}
	role, err := h.service.CreateRole(r.Context(), payload.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"role": toRoleResponse(role)})
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload rolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrInvalidInput))
		return
	}
	if err := validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("name is required: %w", shared.ErrInvalidInput))
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, payload.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": toRoleResponse(role)})
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) syncPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload syncPermissionsPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrInvalidInput))
		return
	}
	role, err := h.service.SyncPermissions(r.Context(), id, payload.Permissions)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": toRoleDetailResponse(role)})
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, shared.ErrInvalidInput)
	}
	return id, nil
}
