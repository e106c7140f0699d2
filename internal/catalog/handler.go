package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// Handler exposes resource and action administration.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountResourceRoutes registers /resources routes.
func (h *Handler) MountResourceRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.AdminOnly())
		r.Get("/", h.listResources)
		r.Post("/", h.createResource)
		r.Get("/{id}", h.getResource)
		r.Put("/{id}", h.updateResource)
		r.Delete("/{id}", h.deleteResource)
	})
}

// MountActionRoutes registers /actions routes.
func (h *Handler) MountActionRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.AdminOnly())
		r.Get("/", h.listActions)
		r.Post("/", h.createAction)
		r.Get("/{id}", h.getAction)
		r.Put("/{id}", h.updateAction)
		r.Delete("/{id}", h.deleteAction)
	})
}

func (h *Handler) listResources(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListResources(r.Context())
	if err != nil {
		h.fail(w, "list resources", err)
		return
	}
	if items == nil {
		items = []Resource{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) getResource(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.GetResource(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) createResource(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := h.decode(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.CreateResource(r.Context(), actorID(r), in)
	if err != nil {
		h.fail(w, "create resource", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) updateResource(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in Input
	if err := h.decode(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.UpdateResource(r.Context(), actorID(r), id, in)
	if err != nil {
		h.fail(w, "update resource", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) deleteResource(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteResource(r.Context(), actorID(r), id); err != nil {
		h.fail(w, "delete resource", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListActions(r.Context())
	if err != nil {
		h.fail(w, "list actions", err)
		return
	}
	if items == nil {
		items = []Action{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) getAction(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	act, err := h.service.GetAction(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, act)
}

func (h *Handler) createAction(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := h.decode(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	act, err := h.service.CreateAction(r.Context(), actorID(r), in)
	if err != nil {
		h.fail(w, "create action", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, act)
}

func (h *Handler) updateAction(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in Input
	if err := h.decode(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	act, err := h.service.UpdateAction(r.Context(), actorID(r), id, in)
	if err != nil {
		h.fail(w, "update action", err)
		return
	}
	httpx.JSON(w, http.StatusOK, act)
}

func (h *Handler) deleteAction(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteAction(r.Context(), actorID(r), id); err != nil {
		h.fail(w, "delete action", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
