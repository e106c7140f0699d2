package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// Handler exposes grant and assignment administration.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountPermissionRoutes registers /permissions routes.
func (h *Handler) MountPermissionRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.AdminOnly())
		r.Get("/", h.listGrants)
		r.Post("/", h.createGrant)
		r.Get("/{id}", h.getGrant)
		r.Delete("/{id}", h.deleteGrant)
	})
}

// MountAssignmentRoutes registers /user-roles routes.
func (h *Handler) MountAssignmentRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.AdminOnly())
		r.Get("/", h.listAssignments)
		r.Post("/", h.createAssignment)
		r.Get("/{id}", h.getAssignment)
		r.Delete("/{id}", h.deleteAssignment)
	})
}

// MountUserRoleRoutes registers the per-user role routes under /users.
func (h *Handler) MountUserRoleRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.AdminOnly())
		r.Get("/{id}/roles", h.listUserRoles)
		r.Post("/{id}/roles", h.assignRole)
		r.Delete("/{id}/roles/{roleID}", h.removeRole)
	})
}

type grantRequest struct {
	RoleID     int64 `json:"role_id" validate:"required,gt=0"`
	ResourceID int64 `json:"resource_id" validate:"required,gt=0"`
	ActionID   int64 `json:"action_id" validate:"required,gt=0"`
}

type assignRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

type assignmentRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

type assignResponse struct {
	Created    bool       `json:"created"`
	RoleName   string     `json:"role_name"`
	Message    string     `json:"message"`
	Assignment Assignment `json:"assignment"`
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.service.ListGrants(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	if grants == nil {
		grants = []Grant{}
	}
	httpx.JSON(w, http.StatusOK, grants)
}

func (h *Handler) getGrant(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	grant, err := h.service.GetGrant(r.Context(), id)
	if err != nil {
		h.fail(w, "get permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grant)
}

func (h *Handler) createGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	grant, err := h.service.CreateGrant(r.Context(), actorID(r), req.RoleID, req.ResourceID, req.ActionID)
	if err != nil {
		h.fail(w, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grant)
}

func (h *Handler) deleteGrant(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteGrant(r.Context(), actorID(r), id); err != nil {
		h.fail(w, "delete permission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListAssignments(r.Context())
	if err != nil {
		h.fail(w, "list assignments", err)
		return
	}
	if items == nil {
		items = []Assignment{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) getAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.GetAssignment(r.Context(), id)
	if err != nil {
		h.fail(w, "get assignment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) createAssignment(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.assign(w, r, req.UserID, req.RoleID)
}

func (h *Handler) deleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteAssignment(r.Context(), actorID(r), id); err != nil {
		h.fail(w, "delete assignment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListUserRoles(r.Context(), userID)
	if err != nil {
		h.fail(w, "list user roles", err)
		return
	}
	if items == nil {
		items = []Assignment{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req assignRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.assign(w, r, userID, req.RoleID)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request, userID, roleID int64) {
	var assignedBy *int64
	if id := actorID(r); id != 0 {
		assignedBy = &id
	}
	result, err := h.service.AssignRole(r.Context(), userID, roleID, assignedBy)
	if err != nil {
		h.fail(w, "assign role", err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, assignResponse{
		Created:    result.Created,
		RoleName:   result.RoleName,
		Message:    result.Message(),
		Assignment: result.Assignment,
	})
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	roleID, err := httpx.IDParam(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveRole(r.Context(), actorID(r), userID, roleID); err != nil {
		h.fail(w, "remove role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "role removed"})
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return httpx.Validate(h.validator, target)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op+" failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}

func actorID(r *http.Request) int64 {
	if p := shared.PrincipalFromContext(r.Context()); p != nil {
		return p.UserID
	}
	return 0
}
