package rbac_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac/rbactest"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

type countingLister struct {
	source rbac.GrantLister
	calls  atomic.Int64
}

func (c *countingLister) UserGrants(ctx context.Context, userID int64) ([]rbac.GrantKey, error) {
	c.calls.Add(1)
	return c.source.UserGrants(ctx, userID)
}

func newCachedFixture(t *testing.T) (*fixture, *rbac.GrantCache, *countingLister, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := rbactest.NewMemoryStore()
	lister := &countingLister{source: store}
	cache := rbac.NewGrantCache(client, lister, time.Minute, nil)
	f := &fixture{
		store:   store,
		service: rbac.NewService(store, rbac.Hooks{Invalidator: cache}),
		engine:  rbac.NewEngine(cache),
		posts:   store.AddResource(shared.ResourcePosts),
		read:    store.AddAction(shared.ActionRead),
		create:  store.AddAction(shared.ActionCreate),
		update:  store.AddAction(shared.ActionUpdate),
		del:     store.AddAction(shared.ActionDelete),
	}
	return f, cache, lister, mr
}

func TestGrantCacheServesRepeatedChecksFromRedis(t *testing.T) {
	f, _, lister, _ := newCachedFixture(t)
	user := f.store.AddUser()
	role := f.store.AddRole("viewer")
	f.grant(t, role, f.posts, f.read)
	f.assign(t, user, role)

	for i := 0; i < 5; i++ {
		assert.True(t, f.allowed(t, user, shared.ResourcePosts, shared.ActionRead))
		assert.False(t, f.allowed(t, user, shared.ResourcePosts, shared.ActionDelete))
	}
	assert.EqualValues(t, 1, lister.calls.Load())
}

func TestGrantCacheInvalidatedByMutations(t *testing.T) {
	f, _, _, _ := newCachedFixture(t)
	user := f.store.AddUser()
	role := f.store.AddRole("editor")
	g := f.grant(t, role, f.posts, f.update)

	assert.False(t, f.allowed(t, user, shared.ResourcePosts, shared.ActionUpdate))

	f.assign(t, user, role)
	assert.True(t, f.allowed(t, user, shared.ResourcePosts, shared.ActionUpdate), "assignment visible immediately")

	require.NoError(t, f.service.DeleteGrant(context.Background(), 0, g.ID))
	assert.False(t, f.allowed(t, user, shared.ResourcePosts, shared.ActionUpdate), "revocation visible immediately")
}

func TestGrantCacheFallsBackWhenRedisIsDown(t *testing.T) {
	f, _, lister, mr := newCachedFixture(t)
	user := f.store.AddUser()
	role := f.store.AddRole("viewer")
	f.grant(t, role, f.posts, f.read)
	f.assign(t, user, role)

	mr.Close()

	assert.True(t, f.allowed(t, user, shared.ResourcePosts, shared.ActionRead))
	assert.False(t, f.allowed(t, user, shared.ResourcePosts, shared.ActionCreate))
	assert.EqualValues(t, 2, lister.calls.Load())
}

func TestGrantCacheStoreFaultFailsClosed(t *testing.T) {
	f, _, _, _ := newCachedFixture(t)
	user := f.store.AddUser()
	f.store.SetFault(assert.AnError)

	ok, err := f.engine.IsAllowed(context.Background(), user, shared.ResourcePosts, shared.ActionRead)
	assert.False(t, ok)
	assert.ErrorIs(t, err, rbac.ErrStoreFault)
}

type blockingLister struct {
	source  rbac.GrantLister
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingLister) UserGrants(ctx context.Context, userID int64) ([]rbac.GrantKey, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.source.UserGrants(ctx, userID)
}

func TestGrantCacheSharedLoadSurvivesFirstCallerCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := rbactest.NewMemoryStore()
	service := rbac.NewService(store, rbac.Hooks{})
	user := store.AddUser()
	role := store.AddRole("viewer")
	_, err := service.CreateGrant(context.Background(), 0, role,
		store.AddResource(shared.ResourcePosts), store.AddAction(shared.ActionRead))
	require.NoError(t, err)
	_, err = service.AssignRole(context.Background(), user, role, nil)
	require.NoError(t, err)

	lister := &blockingLister{source: store, started: make(chan struct{}), release: make(chan struct{})}
	engine := rbac.NewEngine(rbac.NewGrantCache(client, lister, time.Minute, nil))

	ctx1, cancel1 := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := engine.IsAllowed(ctx1, user, shared.ResourcePosts, shared.ActionRead)
		first <- err
	}()
	<-lister.started

	type outcome struct {
		ok  bool
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		ok, err := engine.IsAllowed(context.Background(), user, shared.ResourcePosts, shared.ActionRead)
		second <- outcome{ok, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel1()
	require.Error(t, <-first)
	close(lister.release)

	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.True(t, res.ok)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not finish")
	}
}
