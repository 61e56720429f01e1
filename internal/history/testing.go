package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreTests runs the standard store test suite against any Store implementation.
func RunStoreTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("Record", func(t *testing.T) {
		runRecordTests(t, newStore)
	})
	t.Run("Get", func(t *testing.T) {
		runGetTests(t, newStore)
	})
	t.Run("List", func(t *testing.T) {
		runListTests(t, newStore)
	})
	t.Run("Delete", func(t *testing.T) {
		runDeleteTests(t, newStore)
	})
	t.Run("Prune", func(t *testing.T) {
		runPruneTests(t, newStore)
	})
	t.Run("Closed", func(t *testing.T) {
		runClosedTests(t, newStore)
	})
}

func runRecordTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("creates entry", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		entry, err := store.Record(context.Background(), "wss://echo.websocket.org", nil)

		require.NoError(t, err)
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, "wss://echo.websocket.org", entry.URL)
		assert.Equal(t, 1, entry.UseCount)
		assert.False(t, entry.LastUsed.IsZero())
		assert.Equal(t, entry.FirstUsed, entry.LastUsed)
	})

	t.Run("deduplicates by url", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		first, err := store.Record(context.Background(), "ws://localhost:8080", nil)
		require.NoError(t, err)
		second, err := store.Record(context.Background(), "ws://localhost:8080", []string{"graphql-ws"})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 2, second.UseCount)
		assert.Equal(t, []string{"graphql-ws"}, second.Subprotocols)
		assert.False(t, second.LastUsed.Before(first.LastUsed))

		count, err := store.Count(context.Background(), QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("trims whitespace", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		entry, err := store.Record(context.Background(), "  ws://a  ", nil)
		require.NoError(t, err)
		assert.Equal(t, "ws://a", entry.URL)
	})

	t.Run("rejects empty url", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		_, err := store.Record(context.Background(), "   ", nil)
		assert.ErrorIs(t, err, ErrInvalidURL)
	})
}

func runGetTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("returns recorded entry", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		recorded, err := store.Record(context.Background(), "ws://a", nil)
		require.NoError(t, err)

		got, err := store.Get(context.Background(), recorded.ID)
		require.NoError(t, err)
		assert.Equal(t, recorded.URL, got.URL)
	})

	t.Run("not found", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		_, err := store.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		_, err := store.Get(context.Background(), "")
		assert.ErrorIs(t, err, ErrInvalidID)
	})
}

func runListTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("most recent first", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		for _, u := range []string{"ws://a", "ws://b", "ws://c"} {
			_, err := store.Record(ctx, u, nil)
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
		}
		_, err := store.Record(ctx, "ws://a", nil)
		require.NoError(t, err)

		entries, err := store.List(ctx, QueryOptions{})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "ws://a", entries[0].URL)
		assert.Equal(t, "ws://c", entries[1].URL)
		assert.Equal(t, "ws://b", entries[2].URL)
	})

	t.Run("search and pagination", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		for _, u := range []string{"ws://localhost:1", "wss://echo.websocket.org", "ws://localhost:2", "ws://100%_sure"} {
			_, err := store.Record(ctx, u, nil)
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
		}

		entries, err := store.List(ctx, QueryOptions{Search: "localhost"})
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		entries, err = store.List(ctx, QueryOptions{Search: "%_"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "ws://100%_sure", entries[0].URL)

		entries, err = store.List(ctx, QueryOptions{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		entries, err = store.List(ctx, QueryOptions{Limit: 2, Offset: 3})
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		entries, err = store.List(ctx, QueryOptions{Offset: 1})
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("empty store", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		entries, err := store.List(context.Background(), QueryOptions{})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func runDeleteTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("deletes entry", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		entry, err := store.Record(ctx, "ws://a", nil)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, entry.ID))
		_, err = store.Get(ctx, entry.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, entry.ID), ErrNotFound)
	})

	t.Run("clear", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		store.Record(ctx, "ws://a", nil)
		store.Record(ctx, "ws://b", nil)
		require.NoError(t, store.Clear(ctx))

		count, err := store.Count(ctx, QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}

func runPruneTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("keep last", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		for _, u := range []string{"ws://a", "ws://b", "ws://c"} {
			_, err := store.Record(ctx, u, nil)
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
		}

		deleted, err := store.Prune(ctx, PruneOptions{KeepLast: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		entries, err := store.List(ctx, QueryOptions{})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "ws://c", entries[0].URL)
		assert.Equal(t, "ws://b", entries[1].URL)
	})

	t.Run("no options deletes nothing", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		store.Record(ctx, "ws://a", nil)
		deleted, err := store.Prune(ctx, PruneOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(0), deleted)
	})

	t.Run("older than keeps fresh entries", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		store.Record(ctx, "ws://a", nil)
		deleted, err := store.Prune(ctx, PruneOptions{OlderThan: time.Hour})
		require.NoError(t, err)
		assert.Equal(t, int64(0), deleted)
	})
}

func runClosedTests(t *testing.T, newStore func() (Store, func())) {
	store, cleanup := newStore()
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Close())

	_, err := store.Record(ctx, "ws://a", nil)
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.List(ctx, QueryOptions{})
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Clear(ctx), ErrStoreClosed)
	assert.NoError(t, store.Close())
}
