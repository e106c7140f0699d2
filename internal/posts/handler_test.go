package posts_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-rbac/internal/posts"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac/rbactest"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
	_ "github.com/odyssey-erp/odyssey-rbac/testing"
)

type memoryPostRepo struct {
	posts  map[int64]posts.Post
	nextID int64
}

func newMemoryPostRepo() *memoryPostRepo {
	return &memoryPostRepo{posts: make(map[int64]posts.Post)}
}

func visible(p posts.Post, scope posts.Scope) bool {
	return scope.AuthorID == 0 || p.AuthorID == scope.AuthorID
}

func (m *memoryPostRepo) ListPosts(_ context.Context, scope posts.Scope) ([]posts.Post, error) {
	var out []posts.Post
	for _, p := range m.posts {
		if visible(p, scope) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memoryPostRepo) GetPost(_ context.Context, scope posts.Scope, id int64) (posts.Post, error) {
	p, ok := m.posts[id]
	if !ok || !visible(p, scope) {
		return posts.Post{}, posts.ErrNotFound
	}
	return p, nil
}

func (m *memoryPostRepo) CreatePost(_ context.Context, authorID int64, text string) (posts.Post, error) {
	m.nextID++
	p := posts.Post{ID: m.nextID, Text: text, AuthorID: authorID, PubDate: time.Now().UTC()}
	m.posts[p.ID] = p
	return p, nil
}

func (m *memoryPostRepo) UpdatePost(_ context.Context, id int64, text string) (posts.Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return posts.Post{}, posts.ErrNotFound
	}
	p.Text = text
	m.posts[id] = p
	return p, nil
}

func (m *memoryPostRepo) DeletePost(_ context.Context, id int64) error {
	if _, ok := m.posts[id]; !ok {
		return posts.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

type postsEnv struct {
	store  *rbactest.MemoryStore
	repo   *memoryPostRepo
	router http.Handler
	editor int64
	viewer int64
}

func newPostsEnv(t *testing.T) *postsEnv {
	t.Helper()
	ctx := context.Background()
	store := rbactest.NewMemoryStore()
	svc := rbac.NewService(store, rbac.Hooks{})
	res := store.AddResource(shared.ResourcePosts)
	actions := map[string]int64{}
	for _, name := range shared.CoreActions() {
		actions[name] = store.AddAction(name)
	}
	editor := store.AddRole("editor")
	viewer := store.AddRole("viewer")
	for _, name := range []string{shared.ActionRead, shared.ActionCreate, shared.ActionUpdate} {
		_, err := svc.CreateGrant(ctx, 0, editor, res, actions[name])
		require.NoError(t, err)
	}
	_, err := svc.CreateGrant(ctx, 0, viewer, res, actions[shared.ActionRead])
	require.NoError(t, err)

	mw := rbac.Middleware{Authorizer: rbac.NewAuthorizer(rbac.NewEngine(store))}
	repo := newMemoryPostRepo()
	h := posts.NewHandler(slog.Default(), posts.NewService(repo), mw)
	r := chi.NewRouter()
	r.Route("/posts", h.MountRoutes)
	return &postsEnv{store: store, repo: repo, router: r, editor: editor, viewer: viewer}
}

func (e *postsEnv) user(t *testing.T, roleIDs ...int64) *shared.Principal {
	t.Helper()
	id := e.store.AddUser()
	svc := rbac.NewService(e.store, rbac.Hooks{})
	for _, roleID := range roleIDs {
		_, err := svc.AssignRole(context.Background(), id, roleID, nil)
		require.NoError(t, err)
	}
	return &shared.Principal{UserID: id, IsActive: true}
}

func (e *postsEnv) do(method, target, body string, p *shared.Principal) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if p != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestAuthorMutationsGatedByOwnershipNotGrant(t *testing.T) {
	env := newPostsEnv(t)
	alice := env.user(t, env.editor)

	rec := env.do(http.MethodPost, "/posts", `{"text":"hello"}`, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created posts.Post
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, alice.UserID, created.AuthorID, "author stamped from caller")

	path := "/posts/" + strconv.FormatInt(created.ID, 10)
	rec = env.do(http.MethodPut, path, `{"text":"edited"}`, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "edited")

	rec = env.do(http.MethodDelete, path, "", alice)
	assert.Equal(t, http.StatusNoContent, rec.Code, "delete is gated by ownership only")
}

func TestViewerCannotCreate(t *testing.T) {
	env := newPostsEnv(t)
	bob := env.user(t, env.viewer)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/posts", "", bob).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/posts", `{"text":"nope"}`, bob).Code)
}

func TestUserWithoutRolesIsDenied(t *testing.T) {
	env := newPostsEnv(t)
	nobody := env.user(t)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/posts", "", nobody).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/posts", "", nil).Code)
}

func TestPostsAreScopedToAuthor(t *testing.T) {
	env := newPostsEnv(t)
	alice := env.user(t, env.editor)
	carol := env.user(t, env.editor)
	staff := env.user(t, env.viewer)
	staff.IsStaff = true

	rec := env.do(http.MethodPost, "/posts", `{"text":"alice's"}`, alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	var post posts.Post
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&post))
	path := "/posts/" + strconv.FormatInt(post.ID, 10)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, path, "", carol).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPut, path, `{"text":"hijack"}`, carol).Code)

	rec = env.do(http.MethodGet, "/posts", "", carol)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, path, "", staff).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, path, "", staff).Code, "staff are not owners")
	assert.Equal(t, "alice's", env.repo.posts[post.ID].Text)
}

func TestCreatePostRejectsBlankText(t *testing.T) {
	env := newPostsEnv(t)
	alice := env.user(t, env.editor)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/posts", `{"text":"   "}`, alice).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/posts", `{`, alice).Code)
}

func TestPostsUnavailableWhenGrantsCannotBeRead(t *testing.T) {
	env := newPostsEnv(t)
	alice := env.user(t, env.editor)
	env.store.SetFault(assert.AnError)

	rec := env.do(http.MethodGet, "/posts", "", alice)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
