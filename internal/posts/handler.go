package posts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

var (
	updatePolicy = rbac.Policy(shared.ResourcePosts, shared.ActionUpdate, rbac.Ownership())
	deletePolicy = rbac.Policy(shared.ResourcePosts, shared.ActionDelete, rbac.Ownership())
)

// Handler manages post endpoints.
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

// MountRoutes registers post routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(shared.ResourcePosts, shared.ActionRead)).Get("/", h.listPosts)
	r.With(h.rbac.Require(shared.ResourcePosts, shared.ActionCreate)).Post("/", h.createPost)
	r.With(h.rbac.Require(shared.ResourcePosts, shared.ActionRead)).Get("/{id}", h.getPost)
	r.With(h.rbac.Enforce(updatePolicy)).Put("/{id}", h.updatePost)
	r.With(h.rbac.Enforce(deletePolicy)).Delete("/{id}", h.deletePost)
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), shared.PrincipalFromContext(r.Context()))
	if err != nil {
		h.logger.Error("list posts failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Post{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	post, err := h.service.Get(r.Context(), shared.PrincipalFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, post)
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	var in PostInput
	if err := h.decode(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	post, err := h.service.Create(r.Context(), shared.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.logger.Warn("create post failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, post)
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.load(w, r, updatePolicy)
	if !ok {
		return
	}
	var in PostInput
	if err := h.decode(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.Update(r.Context(), post.ID, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.load(w, r, deletePolicy)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), post.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// load fetches the addressed post within the caller's scope and runs the object guards.
func (h *Handler) load(w http.ResponseWriter, r *http.Request, policy rbac.EndpointPolicy) (Post, bool) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return Post{}, false
	}
	post, err := h.service.Get(r.Context(), shared.PrincipalFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return Post{}, false
	}
	if !h.rbac.AuthorizeObject(w, r, policy, post) {
		return Post{}, false
	}
	return post, true
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return httpx.Validate(h.validator, target)
}
