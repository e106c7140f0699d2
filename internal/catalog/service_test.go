package catalog_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-rbac/internal/catalog"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac/rbactest"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
	_ "github.com/odyssey-erp/odyssey-rbac/testing"
)

type memoryCatalogRepo struct {
	resources map[int64]catalog.Resource
	actions   map[int64]catalog.Action
	nextID    int64
}

func newMemoryCatalogRepo() *memoryCatalogRepo {
	return &memoryCatalogRepo{
		resources: make(map[int64]catalog.Resource),
		actions:   make(map[int64]catalog.Action),
	}
}

func (m *memoryCatalogRepo) ListResources(context.Context) ([]catalog.Resource, error) {
	out := make([]catalog.Resource, 0, len(m.resources))
	for _, r := range m.resources {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryCatalogRepo) GetResource(_ context.Context, id int64) (catalog.Resource, error) {
	r, ok := m.resources[id]
	if !ok {
		return catalog.Resource{}, catalog.ErrResourceNotFound
	}
	return r, nil
}

func (m *memoryCatalogRepo) CreateResource(_ context.Context, in catalog.Input) (catalog.Resource, error) {
	for _, r := range m.resources {
		if r.Name == in.Name {
			return catalog.Resource{}, catalog.ErrDuplicateName
		}
	}
	m.nextID++
	r := catalog.Resource{ID: m.nextID, Name: in.Name, Description: in.Description}
	m.resources[r.ID] = r
	return r, nil
}

func (m *memoryCatalogRepo) UpdateResource(_ context.Context, id int64, in catalog.Input) (catalog.Resource, error) {
	r, ok := m.resources[id]
	if !ok {
		return catalog.Resource{}, catalog.ErrResourceNotFound
	}
	r.Name, r.Description = in.Name, in.Description
	m.resources[id] = r
	return r, nil
}

func (m *memoryCatalogRepo) DeleteResource(_ context.Context, id int64) error {
	if _, ok := m.resources[id]; !ok {
		return catalog.ErrResourceNotFound
	}
	delete(m.resources, id)
	return nil
}

func (m *memoryCatalogRepo) ListActions(context.Context) ([]catalog.Action, error) {
	out := make([]catalog.Action, 0, len(m.actions))
	for _, a := range m.actions {
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryCatalogRepo) GetAction(_ context.Context, id int64) (catalog.Action, error) {
	a, ok := m.actions[id]
	if !ok {
		return catalog.Action{}, catalog.ErrActionNotFound
	}
	return a, nil
}

func (m *memoryCatalogRepo) CreateAction(_ context.Context, in catalog.Input) (catalog.Action, error) {
	for _, a := range m.actions {
		if a.Name == in.Name {
			return catalog.Action{}, catalog.ErrDuplicateName
		}
	}
	m.nextID++
	a := catalog.Action{ID: m.nextID, Name: in.Name, Description: in.Description}
	m.actions[a.ID] = a
	return a, nil
}

func (m *memoryCatalogRepo) UpdateAction(_ context.Context, id int64, in catalog.Input) (catalog.Action, error) {
	a, ok := m.actions[id]
	if !ok {
		return catalog.Action{}, catalog.ErrActionNotFound
	}
	a.Name, a.Description = in.Name, in.Description
	m.actions[id] = a
	return a, nil
}

func (m *memoryCatalogRepo) DeleteAction(_ context.Context, id int64) error {
	if _, ok := m.actions[id]; !ok {
		return catalog.ErrActionNotFound
	}
	delete(m.actions, id)
	return nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func TestCreateResourceNormalizesNames(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(newMemoryCatalogRepo(), rbac.Hooks{})

	res, err := svc.CreateResource(ctx, 1, catalog.Input{Name: "  Posts "})
	require.NoError(t, err)
	assert.Equal(t, "posts", res.Name)

	_, err = svc.CreateResource(ctx, 1, catalog.Input{Name: "POSTS"})
	assert.ErrorIs(t, err, catalog.ErrDuplicateName)

	_, err = svc.CreateResource(ctx, 1, catalog.Input{Name: " "})
	assert.ErrorIs(t, err, catalog.ErrInvalidName)
}

func TestActionMutationsInvalidateGrants(t *testing.T) {
	ctx := context.Background()
	inv := &countingInvalidator{}
	svc := catalog.NewService(newMemoryCatalogRepo(), rbac.Hooks{Invalidator: inv})

	act, err := svc.CreateAction(ctx, 1, catalog.Input{Name: "Publish"})
	require.NoError(t, err)
	assert.Equal(t, "publish", act.Name)
	assert.Zero(t, inv.calls)

	act, err = svc.UpdateAction(ctx, 1, act.ID, catalog.Input{Name: "release"})
	require.NoError(t, err)
	assert.Equal(t, "release", act.Name)
	assert.Equal(t, 1, inv.calls)

	require.NoError(t, svc.DeleteAction(ctx, 1, act.ID))
	assert.Equal(t, 2, inv.calls)
	assert.ErrorIs(t, svc.DeleteAction(ctx, 1, act.ID), catalog.ErrActionNotFound)
}

func TestHandlerCatalogRoutes(t *testing.T) {
	engine := rbac.NewEngine(rbactest.NewMemoryStore())
	mw := rbac.Middleware{Authorizer: rbac.NewAuthorizer(engine)}
	h := catalog.NewHandler(slog.Default(), catalog.NewService(newMemoryCatalogRepo(), rbac.Hooks{}), mw)
	r := chi.NewRouter()
	r.Route("/resources", h.MountResourceRoutes)
	r.Route("/actions", h.MountActionRoutes)

	staff := &shared.Principal{UserID: 1, IsActive: true, IsStaff: true}
	member := &shared.Principal{UserID: 2, IsActive: true}
	do := func(method, target, body string, p *shared.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), p))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/resources", `{"name":"Posts"}`, staff)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"name":"posts"`)
	assert.Equal(t, http.StatusConflict, do(http.MethodPost, "/resources", `{"name":"posts"}`, staff).Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/actions", `{"name":"read"}`, member).Code)
	assert.Equal(t, http.StatusCreated, do(http.MethodPost, "/actions", `{"name":"read"}`, staff).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/actions/2", "", member).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/actions/0", "", member).Code)
	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/resources/1", "", staff).Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, "/resources/1", "", staff).Code)
}
