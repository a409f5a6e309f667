package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"object-sync-service/internal/user"
)

func newUser(t *testing.T, identity string) *user.User {
	t.Helper()
	u := user.New(identity, user.Profile{Name: "Jane", Email: "jane@example.com"})
	u.SetTokens("access-"+identity, "refresh-"+identity)
	return u
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	u := newUser(t, "user-1")
	require.NoError(t, s.Save(ctx, "default", u))

	got, err := s.Load(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.Identity())
	assert.True(t, got.Authenticated())
	access, refresh := got.Tokens()
	assert.Equal(t, "access-user-1", access)
	assert.Equal(t, "refresh-user-1", refresh)
	assert.Equal(t, "Jane", got.Profile().Name)
}

func TestMemoryStoreLoadAbsentKey(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	got, err := s.Load(context.Background(), "never-saved")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreSaveOverwrites(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "default", newUser(t, "user-1")))
	require.NoError(t, s.Save(ctx, "default", newUser(t, "user-2")))

	got, err := s.Load(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "user-2", got.Identity())

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "default", newUser(t, "user-1")))
	require.NoError(t, s.Delete(ctx, "default"))
	require.NoError(t, s.Delete(ctx, "default")) // idempotent

	got, err := s.Load(ctx, "default")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreAll(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "a", newUser(t, "user-a")))
	require.NoError(t, s.Save(ctx, "b", newUser(t, "user-b")))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	identities := map[string]bool{}
	for _, u := range all {
		identities[u.Identity()] = true
	}
	assert.True(t, identities["user-a"])
	assert.True(t, identities["user-b"])
}

func TestSaveAndLoadAsync(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	saved := make(chan error, 1)
	SaveAsync(ctx, s, "default", newUser(t, "user-1"), func(err error) { saved <- err })
	select {
	case err := <-saved:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("save callback never ran")
	}

	type loadResult struct {
		u   *user.User
		err error
	}
	loaded := make(chan loadResult, 1)
	LoadAsync(ctx, s, "default", func(u *user.User, err error) { loaded <- loadResult{u, err} })
	select {
	case res := <-loaded:
		require.NoError(t, res.err)
		require.NotNil(t, res.u)
		assert.Equal(t, "user-1", res.u.Identity())
	case <-time.After(5 * time.Second):
		t.Fatal("load callback never ran")
	}
}

func TestMemoryStorePersistsInvalidatedUsers(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	u := newUser(t, "user-1")
	u.Invalidate()
	require.NoError(t, s.Save(ctx, "default", u))

	got, err := s.Load(ctx, "default")
	require.NoError(t, err)
	assert.False(t, got.Authenticated())
}
