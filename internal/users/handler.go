package users

import (
	"errors"
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

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers user routes. All routes sit behind the admin gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(rbac.RequireAdmin)
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Get("/{userID}", h.getUser)
		r.Put("/{userID}", h.updateUser)
		r.Delete("/{userID}", h.deleteUser)
		r.Post("/{userID}/assign-role", h.assignRole)
	})
}

type createUserPayload struct {
	Name     string   `json:"name" validate:"required,max=191"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	Roles    []string `json:"roles" validate:"omitempty,dive,required"`
}

type updateUserPayload struct {
	Name     *string `json:"name" validate:"omitempty,max=191"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8"`
	IsActive *bool   `json:"is_active"`
}

type assignRolePayload struct {
	Role string `json:"role" validate:"required"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserResponse(user UserWithRoles) userResponse {
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	return userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		IsActive:  user.IsActive,
		Roles:     roles,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	result, err := h.service.ListUsers(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]userResponse, 0, len(result.Users))
	for _, user := range result.Users {
		out = append(out, toUserResponse(user))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"users": out,
		"meta": map[string]any{
			"page":        result.Pagination.Page,
			"per_page":    result.Pagination.PerPage,
			"total":       result.Pagination.Total,
			"total_pages": result.Pagination.TotalPages,
		},
	})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var payload createUserPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrInvalidInput))
		return
	}
	if err := validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%s: %w", validationDetail(err), shared.ErrInvalidInput))
		return
	}
	user, err := h.service.CreateUser(r.Context(), CreateUserParams{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Roles:    payload.Roles,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"user": toUserResponse(user)})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload updateUserPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrInvalidInput))
		return
	}
	if err := validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%s: %w", validationDetail(err), shared.ErrInvalidInput))
		return
	}
	user, err := h.service.UpdateUser(r.Context(), id, UpdateUserInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		IsActive: payload.IsActive,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload assignRolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrInvalidInput))
		return
	}
	if err := validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("role is required: %w", shared.ErrInvalidInput))
		return
	}
	user, err := h.service.AssignRole(r.Context(), id, payload.Role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fmt.Sprintf("field %s failed on %s", fieldErrs[0].Field(), fieldErrs[0].Tag())
	}
	return "validation failed"
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, shared.ErrInvalidInput)
	}
	return id, nil
}
