package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/servicehub/internal/logging"
	"github.com/me/servicehub/internal/store"
	"github.com/me/servicehub/internal/tokenstore"
	"github.com/me/servicehub/pkg/model"
)

func newItemStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", logging.Discard())
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func alice() *model.User {
	return &model.User{ID: "u1", Name: "Alice", Email: "alice@example.test", Role: model.RoleUser, IsActive: true}
}

// assertInvariant checks that authentication implies a user and a token.
func assertInvariant(t *testing.T, s *Store, tokens *tokenstore.TokenStore) {
	t.Helper()
	snap := s.Snapshot()
	if snap.IsAuthenticated {
		assert.NotNil(t, snap.User, "authenticated without user")
		assert.True(t, tokens.Has(context.Background()), "authenticated without token")
	}
}

func TestStore_InitializeWithoutToken(t *testing.T) {
	ctx := context.Background()
	tokens := tokenstore.NewMemory()
	s := New(ctx, tokens, nil, nil)

	assert.Equal(t, PhaseUninitialized, s.Snapshot().Phase())

	s.Initialize(ctx)
	snap := s.Snapshot()
	assert.True(t, snap.IsInitialized)
	assert.False(t, snap.IsAuthenticated)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, PhaseUnauthenticated, snap.Phase())
}

func TestStore_InitializeTokenWithoutUser(t *testing.T) {
	ctx := context.Background()
	tokens := tokenstore.NewMemory()
	require.True(t, tokens.Store(ctx, "tok"))

	s := New(ctx, tokens, nil, nil)
	s.Initialize(ctx)

	assert.False(t, s.Snapshot().IsAuthenticated, "a token alone does not authenticate")
	assertInvariant(t, s, tokens)
}

func TestStore_HydrateThenInitialize(t *testing.T) {
	ctx := context.Background()
	items := newItemStore(t)
	p := NewItemPersister(items)
	require.NoError(t, p.Save(ctx, Mirror{User: alice(), IsAuthenticated: true}))

	tokens := tokenstore.NewMemory()
	require.True(t, tokens.Store(ctx, "tok"))

	s := New(ctx, tokens, p, nil)
	before := s.Snapshot()
	require.NotNil(t, before.User)
	assert.False(t, before.IsAuthenticated, "hydration alone must not authenticate")

	s.Initialize(ctx)
	snap := s.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "u1", snap.User.ID)
	assert.Equal(t, PhaseAuthenticated, snap.Phase())
}

func TestStore_HydratedUserWithoutToken(t *testing.T) {
	ctx := context.Background()
	items := newItemStore(t)
	p := NewItemPersister(items)
	require.NoError(t, p.Save(ctx, Mirror{User: alice(), IsAuthenticated: true}))

	tokens := tokenstore.NewMemory()
	s := New(ctx, tokens, p, nil)
	s.Initialize(ctx)

	assert.False(t, s.Snapshot().IsAuthenticated)
	assertInvariant(t, s, tokens)
}

func TestStore_InitializeIdempotent(t *testing.T) {
	ctx := context.Background()
	tokens := tokenstore.NewMemory()
	s := New(ctx, tokens, nil, nil)

	s.Initialize(ctx)
	first := s.Snapshot()

	// A token appearing later does not change an initialized store.
	require.True(t, tokens.Store(ctx, "tok"))
	s.Initialize(ctx)

	assert.Equal(t, first, s.Snapshot())
}

func TestStore_UpdateUser(t *testing.T) {
	ctx := context.Background()
	tokens := tokenstore.NewMemory()
	s := New(ctx, tokens, nil, nil)
	s.Initialize(ctx)
	s.SetError(ctx, "old failure")

	require.True(t, tokens.Store(ctx, "tok"))
	s.UpdateUser(ctx, alice())

	snap := s.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Empty(t, snap.Error)
	assert.Equal(t, model.RoleUser, snap.User.Role)
	assertInvariant(t, s, tokens)

	s.UpdateUser(ctx, nil)
	assert.NotNil(t, s.Snapshot().User, "nil update is ignored")
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, tokenstore.NewMemory(), nil, nil)
	s.UpdateUser(ctx, alice())

	snap := s.Snapshot()
	snap.User.Role = model.RoleAdmin
	assert.Equal(t, model.RoleUser, s.Snapshot().User.Role)
}

func TestStore_Logout(t *testing.T) {
	ctx := context.Background()
	items := newItemStore(t)
	p := NewItemPersister(items)
	st := newItemStore(t)
	tokens := tokenstore.New(tokenstore.NewCookieBackend(st, 0), tokenstore.NewLocalBackend(st), nil)

	s := New(ctx, tokens, p, nil)
	s.Initialize(ctx)
	require.True(t, tokens.Store(ctx, "tok"))
	s.UpdateUser(ctx, alice())

	s.Logout(ctx)

	snap := s.Snapshot()
	assert.Nil(t, snap.User)
	assert.False(t, snap.IsAuthenticated)
	assert.True(t, snap.IsInitialized, "logout keeps the store initialized")

	c, err := st.GetCookie(ctx, tokenstore.CookieName)
	require.NoError(t, err)
	assert.Nil(t, c, "cookie backend still has a token")
	_, ok, err := st.GetItem(ctx, tokenstore.LocalKey)
	require.NoError(t, err)
	assert.False(t, ok, "durable backend still has a token")
	_, ok = tokens.Retrieve(ctx)
	assert.False(t, ok)

	m, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, m, "persisted mirror should be cleared")
}

func TestStore_Revalidate(t *testing.T) {
	ctx := context.Background()
	tokens := tokenstore.NewMemory()
	s := New(ctx, tokens, nil, nil)
	s.Initialize(ctx)
	require.True(t, tokens.Store(ctx, "tok"))
	s.UpdateUser(ctx, alice())

	assert.True(t, s.Revalidate(ctx).IsAuthenticated)

	// The API client drops the token behind the store's back.
	tokens.Remove(ctx)

	snap := s.Revalidate(ctx)
	assert.False(t, snap.IsAuthenticated)
	assert.Equal(t, PhaseUnauthenticated, snap.Phase())
	assertInvariant(t, s, tokens)
}

// unreadableTokens wraps a TokenStore and fails reads while broken is set.
type unreadableTokens struct {
	*tokenstore.TokenStore
	broken bool
}

func (u *unreadableTokens) Check(ctx context.Context) (bool, error) {
	if u.broken {
		return false, errors.New("database is locked")
	}
	return u.TokenStore.Check(ctx)
}

func TestStore_RevalidateKeepsStateOnReadError(t *testing.T) {
	ctx := context.Background()
	tokens := &unreadableTokens{TokenStore: tokenstore.NewMemory()}
	s := New(ctx, tokens, nil, nil)
	s.Initialize(ctx)
	require.True(t, tokens.Store(ctx, "tok"))
	s.UpdateUser(ctx, alice())

	tokens.broken = true
	assert.True(t, s.Revalidate(ctx).IsAuthenticated, "read error must not read as a missing token")

	tokens.broken = false
	assert.True(t, s.Revalidate(ctx).IsAuthenticated)
}

func TestStore_InitializeRetriesAfterReadError(t *testing.T) {
	ctx := context.Background()
	tokens := &unreadableTokens{TokenStore: tokenstore.NewMemory(), broken: true}
	require.True(t, tokens.Store(ctx, "tok"))
	items := newItemStore(t)
	p := NewItemPersister(items)
	require.NoError(t, p.Save(ctx, Mirror{User: alice(), IsAuthenticated: true}))

	s := New(ctx, tokens, p, nil)
	s.Initialize(ctx)
	snap := s.Snapshot()
	assert.False(t, snap.IsInitialized)
	assert.False(t, snap.IsLoading)

	tokens.broken = false
	s.Initialize(ctx)
	snap = s.Snapshot()
	assert.True(t, snap.IsInitialized)
	assert.True(t, snap.IsAuthenticated)
}

func TestStore_LogoutWithCancelledContext(t *testing.T) {
	items := newItemStore(t)
	p := NewItemPersister(items)
	st := newItemStore(t)
	tokens := tokenstore.New(tokenstore.NewCookieBackend(st, 0), tokenstore.NewLocalBackend(st), nil)

	live := context.Background()
	s := New(live, tokens, p, nil)
	s.Initialize(live)
	require.True(t, tokens.Store(live, "tok"))
	s.UpdateUser(live, alice())

	ctx, cancel := context.WithCancel(live)
	cancel()
	s.Logout(ctx)

	assert.False(t, tokens.Has(live), "token survived logout")
	m, err := p.Load(live)
	require.NoError(t, err)
	assert.Nil(t, m, "persisted mirror survived logout")

	restarted := New(live, tokens, p, nil)
	restarted.Initialize(live)
	assert.False(t, restarted.Snapshot().IsAuthenticated)
}

func TestStore_ClearError(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, tokenstore.NewMemory(), nil, nil)
	s.SetError(ctx, "Invalid credentials")
	assert.Equal(t, "Invalid credentials", s.Snapshot().Error)

	s.ClearError(ctx)
	assert.Empty(t, s.Snapshot().Error)
}

func TestStore_InitializeDeferredDuringOperation(t *testing.T) {
	ctx := context.Background()
	tokens := tokenstore.NewMemory()
	s := New(ctx, tokens, nil, nil)

	end := s.BeginOperation(ctx)
	assert.Equal(t, PhaseInitializing, s.Snapshot().Phase())

	s.Initialize(ctx)
	assert.False(t, s.Snapshot().IsInitialized, "initialize must wait for the operation")

	require.True(t, tokens.Store(ctx, "tok"))
	s.UpdateUser(ctx, alice())
	end()
	end() // idempotent

	snap := s.Snapshot()
	assert.True(t, snap.IsInitialized)
	assert.True(t, snap.IsAuthenticated)
	assert.False(t, snap.IsLoading)
}

func TestStore_FailedOperationStillInitializes(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, tokenstore.NewMemory(), nil, nil)

	end := s.BeginOperation(ctx)
	s.SetError(ctx, "Invalid credentials")
	end()

	snap := s.Snapshot()
	assert.True(t, snap.IsInitialized)
	assert.False(t, snap.IsAuthenticated)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, "Invalid credentials", snap.Error)
}

func TestStore_LoadingUntilAllOperationsEnd(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, tokenstore.NewMemory(), nil, nil)

	end1 := s.BeginOperation(ctx)
	end2 := s.BeginOperation(ctx)
	end1()
	assert.True(t, s.Snapshot().IsLoading)
	end2()
	assert.False(t, s.Snapshot().IsLoading)
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, tokenstore.NewMemory(), nil, nil)

	var got []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) { got = append(got, snap) })

	s.Initialize(ctx)
	s.SetError(ctx, "x")
	unsubscribe()
	s.ClearError(ctx)

	require.Len(t, got, 2)
	assert.True(t, got[0].IsInitialized)
	assert.Equal(t, "x", got[1].Error)
}

func TestStore_ConcurrentInitialize(t *testing.T) {
	ctx := context.Background()
	tokens := tokenstore.NewMemory()
	s := New(ctx, tokens, nil, nil)

	var mu sync.Mutex
	notifications := 0
	s.Subscribe(func(Snapshot) {
		mu.Lock()
		notifications++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Initialize(ctx)
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, notifications, "initialization must happen exactly once")
	assert.True(t, s.Snapshot().IsInitialized)
}
