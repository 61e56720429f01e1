package websocket

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"testing"
	"time"

	"github.com/artpar/wspanel/internal/interfaces"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.PongTimeout)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxMessageSize)
	assert.Equal(t, 0, cfg.MaxConnections)
	assert.Equal(t, 1024, cfg.EventBuffer)
	assert.False(t, cfg.TLSInsecure)
}

func TestNewClient(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		client := NewClient(nil)
		assert.Equal(t, "websocket", client.Protocol())
		assert.NotNil(t, client.Jar())
		assert.Equal(t, 0, client.ConnectionCount())
	})

	t.Run("cookie jar can be replaced", func(t *testing.T) {
		client := NewClient(nil)
		jar, err := cookiejar.New(nil)
		require.NoError(t, err)
		client.SetCookieJar(jar)
		assert.Same(t, jar, client.Jar())
	})
}

func TestClient_Connect(t *testing.T) {
	t.Run("connects and tracks connection", func(t *testing.T) {
		server := newTestWSServer(t, nil)
		defer server.Close()

		client := NewClient(testConfig())
		conn, err := client.Connect(context.Background(), wsURL(server), interfaces.ConnectionOptions{})
		require.NoError(t, err)

		assert.Equal(t, interfaces.ConnectionStateConnected, conn.State())
		assert.Equal(t, 1, client.ConnectionCount())

		got, err := client.GetConnection(conn.ID())
		require.NoError(t, err)
		assert.Equal(t, conn.ID(), got.ID())

		infos := client.ListConnections()
		require.Len(t, infos, 1)
		assert.Equal(t, "websocket", infos[0].Protocol)
		assert.Equal(t, wsURL(server), infos[0].Endpoint)

		require.NoError(t, client.Disconnect(conn.ID()))
		assert.Equal(t, 0, client.ConnectionCount())
	})

	t.Run("failed connect is untracked", func(t *testing.T) {
		client := NewClient(&Config{ConnectTimeout: 500 * time.Millisecond})
		_, err := client.Connect(context.Background(), "ws://127.0.0.1:1", interfaces.ConnectionOptions{})
		assert.Error(t, err)

		assert.Eventually(t, func() bool { return client.ConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
	})

	t.Run("max connections", func(t *testing.T) {
		server := newTestWSServer(t, nil)
		defer server.Close()

		cfg := testConfig()
		cfg.MaxConnections = 1
		client := NewClient(cfg)
		defer client.CloseAll()

		_, err := client.Connect(context.Background(), wsURL(server), interfaces.ConnectionOptions{})
		require.NoError(t, err)

		_, err = client.Connect(context.Background(), wsURL(server), interfaces.ConnectionOptions{})
		assert.ErrorIs(t, err, ErrMaxConnectionsReached)
	})

	t.Run("cookies set by handshake are kept in the jar", func(t *testing.T) {
		upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
		server := newTestWSServerWith(t, func(w http.ResponseWriter, r *http.Request) {
			hdr := http.Header{}
			hdr.Add("Set-Cookie", "session=abc; Path=/")
			c, err := upgrader.Upgrade(w, r, hdr)
			if err != nil {
				return
			}
			defer c.Close()
			c.ReadMessage()
		})
		defer server.Close()

		client := NewClient(testConfig())
		defer client.CloseAll()

		_, err := client.Connect(context.Background(), wsURL(server), interfaces.ConnectionOptions{})
		require.NoError(t, err)

		u, _ := url.Parse(server.URL)
		cookies := client.Jar().Cookies(u)
		require.Len(t, cookies, 1)
		assert.Equal(t, "abc", cookies[0].Value)
	})
}

func TestClient_Dial(t *testing.T) {
	server := newTestWSServer(t, nil)
	defer server.Close()

	client := NewClient(testConfig())
	conn, err := client.Dial(wsURL(server), interfaces.ConnectionOptions{
		Headers: map[string]string{"X-Test": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, interfaces.ConnectionStateDisconnected, conn.State())
	assert.Equal(t, 1, client.ConnectionCount())

	require.NoError(t, conn.Connect(context.Background()))
	first := nextEvent(t, conn, interfaces.EventStateChanged)
	assert.Equal(t, interfaces.ConnectionStateConnecting, first.State)

	client.CloseAll()
	assert.Equal(t, 0, client.ConnectionCount())
	assert.Equal(t, interfaces.ConnectionStateDisconnected, conn.State())
}

func TestClient_Dial_Overrides(t *testing.T) {
	client := NewClient(testConfig())
	conn, err := client.Dial("ws://localhost:1", interfaces.ConnectionOptions{
		Timeout:      time.Second,
		PingInterval: 5 * time.Second,
		TLSInsecure:  true,
	})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, time.Second, conn.config.ConnectTimeout)
	assert.Equal(t, 5*time.Second, conn.config.PingInterval)
	assert.True(t, conn.config.TLSInsecure)
	assert.False(t, client.config.TLSInsecure, "client config is not modified")
}

func TestClient_Disconnect_NotFound(t *testing.T) {
	client := NewClient(nil)
	assert.ErrorIs(t, client.Disconnect("missing"), ErrConnectionNotFound)

	_, err := client.GetConnection("missing")
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}
