package app

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/wspanel/internal/config"
	cookiesqlite "github.com/artpar/wspanel/internal/cookies/sqlite"
	"github.com/artpar/wspanel/internal/history"
	"github.com/artpar/wspanel/internal/history/sqlite"
	"github.com/artpar/wspanel/internal/protocol/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DataDir: filepath.Join(t.TempDir(), "data"),
		WebSocket: config.WebSocketConfig{
			ConnectTimeout: 3 * time.Second,
		},
	}
}

func TestNew(t *testing.T) {
	t.Run("builds client from config", func(t *testing.T) {
		a := New(WithConfig(testConfig(t)))
		require.NotNil(t, a.Client())
		assert.Nil(t, a.History())
		assert.NoError(t, a.Close())
	})

	t.Run("uses supplied client", func(t *testing.T) {
		client := websocket.NewClient(nil)
		a := New(WithClient(client))
		assert.Same(t, client, a.Client())
	})
}

func TestApp_Open(t *testing.T) {
	t.Run("opens sqlite store in data dir", func(t *testing.T) {
		cfg := testConfig(t)
		a := New(WithConfig(cfg))
		require.NoError(t, a.Open(context.Background()))
		require.NotNil(t, a.History())

		_, err := a.History().Record(context.Background(), "ws://x", nil)
		require.NoError(t, err)
		require.NoError(t, a.Close())
		assert.FileExists(t, cfg.HistoryPath())
	})

	t.Run("prunes to keep_last", func(t *testing.T) {
		store, err := sqlite.NewInMemory()
		require.NoError(t, err)
		defer store.Close()
		for _, u := range []string{"ws://a", "ws://b", "ws://c"} {
			_, err := store.Record(context.Background(), u, nil)
			require.NoError(t, err)
		}

		cfg := testConfig(t)
		cfg.History.KeepLast = 2
		a := New(WithConfig(cfg), WithHistoryStore(store))
		require.NoError(t, a.Open(context.Background()))

		n, err := store.Count(context.Background(), history.QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("supplied store is not closed", func(t *testing.T) {
		store, err := sqlite.NewInMemory()
		require.NoError(t, err)
		defer store.Close()

		a := New(WithConfig(testConfig(t)), WithHistoryStore(store))
		require.NoError(t, a.Open(context.Background()))
		require.NoError(t, a.Close())

		_, err = store.Count(context.Background(), history.QueryOptions{})
		assert.NoError(t, err)
	})
}

func TestApp_Cookies(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		a := New(WithConfig(testConfig(t)))
		require.NoError(t, a.Open(context.Background()))
		defer a.Close()
		assert.Nil(t, a.Cookies())
	})

	t.Run("persistent jar is installed in the client", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.WebSocket.PersistCookies = true
		a := New(WithConfig(cfg))
		require.NoError(t, a.Open(context.Background()))
		defer a.Close()

		require.NotNil(t, a.Cookies())
		assert.Same(t, a.Cookies(), a.Client().Jar())
		assert.FileExists(t, cfg.CookiesPath())
	})

	t.Run("cookies survive a restart", func(t *testing.T) {
		store, err := cookiesqlite.NewInMemory()
		require.NoError(t, err)
		defer store.Close()

		cfg := testConfig(t)
		cfg.WebSocket.PersistCookies = true
		u, _ := url.Parse("http://example.com/ws")

		first := New(WithConfig(cfg), WithCookieStore(store))
		require.NoError(t, first.Open(context.Background()))
		first.Client().Jar().SetCookies(u, []*http.Cookie{{Name: "sid", Value: "42"}})
		require.NoError(t, first.Close())

		second := New(WithConfig(cfg), WithCookieStore(store))
		require.NoError(t, second.Open(context.Background()))
		defer second.Close()
		got := second.Client().Jar().Cookies(u)
		require.Len(t, got, 1)
		assert.Equal(t, "42", got[0].Value)
	})
}

func TestApp_Close(t *testing.T) {
	t.Run("closers run once and errors are joined", func(t *testing.T) {
		calls := 0
		a := New(WithConfig(testConfig(t)))
		a.AddCloser(closerFunc(func() error {
			calls++
			return errors.New("boom")
		}))

		err := a.Close()
		assert.ErrorContains(t, err, "boom")
		assert.NoError(t, a.Close())
		assert.Equal(t, 1, calls)
	})
}
