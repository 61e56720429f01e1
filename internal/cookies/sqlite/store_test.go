package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/wspanel/internal/cookies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func cookie(domain, name, value string) cookies.Cookie {
	return cookies.Cookie{Domain: domain, Path: "/", Name: name, Value: value}
}

func TestStore_SaveAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Save(ctx, cookie("b.example.com", "session", "1")))
	require.NoError(t, store.Save(ctx, cookie("a.example.com", "session", "2")))
	require.NoError(t, store.Save(ctx, cookie("a.example.com", "session", "3")))

	all, err := store.List(ctx, cookies.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a.example.com", all[0].Domain)
	assert.Equal(t, "3", all[0].Value)
	assert.False(t, all[0].UpdatedAt.IsZero())

	byDomain, err := store.List(ctx, cookies.QueryOptions{Domain: "B.example.com"})
	require.NoError(t, err)
	require.Len(t, byDomain, 1)
	assert.Equal(t, "1", byDomain[0].Value)
}

func TestStore_Attributes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	c := cookies.Cookie{
		Domain: "example.com", Path: "/ws", Name: "token", Value: "abc",
		Secure: true, HTTPOnly: true, SameSite: "strict", HostOnly: true, Expires: expires,
	}
	require.NoError(t, store.Save(ctx, c))

	got, err := store.List(ctx, cookies.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Secure)
	assert.True(t, got[0].HTTPOnly)
	assert.True(t, got[0].HostOnly)
	assert.Equal(t, "strict", got[0].SameSite)
	assert.Equal(t, "/ws", got[0].Path)
	assert.True(t, expires.Equal(got[0].Expires))
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	old := cookie("example.com", "old", "x")
	old.Expires = time.Now().Add(-time.Minute)
	require.NoError(t, store.Save(ctx, old))
	require.NoError(t, store.Save(ctx, cookie("example.com", "session", "y")))

	live, err := store.List(ctx, cookies.QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, live, 1)

	withExpired, err := store.List(ctx, cookies.QueryOptions{IncludeExpired: true})
	require.NoError(t, err)
	assert.Len(t, withExpired, 2)

	n, err := store.RemoveExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, cookie("example.com", "a", "1")))
	require.NoError(t, store.Save(ctx, cookie("example.com", "b", "2")))

	require.NoError(t, store.Remove(ctx, "example.com", "/", "a"))
	assert.ErrorIs(t, store.Remove(ctx, "example.com", "/", "a"), cookies.ErrNotFound)

	require.NoError(t, store.Clear(ctx))
	all, err := store.List(ctx, cookies.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	store, err := NewInMemory()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Save(ctx, cookie("example.com", "a", "1")), cookies.ErrStoreClosed)
	_, err = store.List(ctx, cookies.QueryOptions{})
	assert.ErrorIs(t, err, cookies.ErrStoreClosed)
}

func TestStore_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cookies.db")

	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, cookie("example.com", "a", "1")))
	require.NoError(t, store.Close())

	store, err = New(path)
	require.NoError(t, err)
	defer store.Close()
	all, err := store.List(ctx, cookies.QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
