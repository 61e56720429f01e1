package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/artpar/wspanel/internal/interfaces"
	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

var (
	// ErrConnectionNotFound is returned when a connection is not found.
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrMaxConnectionsReached is returned when max connections limit is reached.
	ErrMaxConnectionsReached = errors.New("max connections reached")
)

// Config holds WebSocket client configuration.
type Config struct {
	// ConnectTimeout is the timeout for the opening handshake.
	ConnectTimeout time.Duration

	// WriteTimeout is the timeout for write operations.
	WriteTimeout time.Duration

	// PingInterval is the interval between ping messages. 0 disables pings.
	PingInterval time.Duration

	// PongTimeout is how long to wait for any frame while pings are enabled.
	PongTimeout time.Duration

	// MaxMessageSize is the maximum size of a received message in bytes.
	MaxMessageSize int64

	// MaxConnections is the maximum number of concurrent connections. 0 means unlimited.
	MaxConnections int

	// EventBuffer is the capacity of each connection's event channel.
	EventBuffer int

	// TLSInsecure allows insecure TLS connections.
	TLSInsecure bool
}

// DefaultConfig returns the default WebSocket client configuration.
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout: 30 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		MaxMessageSize: 10 * 1024 * 1024, // 10 MB
		MaxConnections: 0,
		EventBuffer:    1024,
		TLSInsecure:    false,
	}
}

// Client manages WebSocket connections and the cookie jar they share.
type Client struct {
	config      *Config
	jar         http.CookieJar
	connections map[string]*Connection
	mu          sync.RWMutex
}

// NewClient creates a new WebSocket client with the given configuration.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	// cookiejar.New never returns an error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &Client{
		config:      config,
		jar:         jar,
		connections: make(map[string]*Connection),
	}
}

// Protocol returns the protocol identifier.
func (c *Client) Protocol() string {
	return "websocket"
}

// Jar returns the cookie jar shared by all connections.
func (c *Client) Jar() http.CookieJar {
	return c.jar
}

// SetCookieJar replaces the jar used by connections created afterwards.
func (c *Client) SetCookieJar(jar http.CookieJar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jar = jar
}

// Connect establishes a connection to the given endpoint.
func (c *Client) Connect(ctx context.Context, endpoint string, opts interfaces.ConnectionOptions) (interfaces.Connection, error) {
	conn, err := c.newConnection(endpoint, opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// Dial registers a connection without connecting it, so the caller can
// subscribe to its events before the handshake starts.
func (c *Client) Dial(endpoint string, opts interfaces.ConnectionOptions) (*Connection, error) {
	return c.newConnection(endpoint, opts)
}

func (c *Client) newConnection(endpoint string, opts interfaces.ConnectionOptions) (*Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.MaxConnections > 0 && len(c.connections) >= c.config.MaxConnections {
		return nil, ErrMaxConnectionsReached
	}

	connConfig := *c.config
	connConfig.TLSInsecure = opts.TLSInsecure || c.config.TLSInsecure
	if opts.Timeout > 0 {
		connConfig.ConnectTimeout = opts.Timeout
	}
	if opts.PingInterval > 0 {
		connConfig.PingInterval = opts.PingInterval
	}

	id := generateConnectionID()
	conn := NewConnection(id, endpoint, &connConfig)
	if opts.Headers != nil {
		conn.SetHeaders(opts.Headers)
	}
	conn.SetSubprotocols(opts.Subprotocols)
	conn.SetCookieJar(c.jar)
	conn.onFinish = func() {
		c.mu.Lock()
		delete(c.connections, id)
		c.mu.Unlock()
	}

	c.connections[id] = conn
	return conn, nil
}

// Disconnect closes the connection with the given ID.
func (c *Client) Disconnect(id string) error {
	c.mu.Lock()
	conn, ok := c.connections[id]
	if !ok {
		c.mu.Unlock()
		return ErrConnectionNotFound
	}
	delete(c.connections, id)
	c.mu.Unlock()

	return conn.Close()
}

// ListConnections returns all active connections.
func (c *Client) ListConnections() []interfaces.ConnectionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]interfaces.ConnectionInfo, 0, len(c.connections))
	for _, conn := range c.connections {
		infos = append(infos, interfaces.ConnectionInfo{
			ID:        conn.ID(),
			Endpoint:  conn.Endpoint(),
			State:     conn.State(),
			CreatedAt: conn.CreatedAt(),
			Protocol:  "websocket",
		})
	}
	return infos
}

// GetConnection returns a specific connection by ID.
func (c *Client) GetConnection(id string) (interfaces.Connection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conn, ok := c.connections[id]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	return conn, nil
}

// CloseAll closes all connections.
func (c *Client) CloseAll() {
	c.mu.Lock()
	connections := make([]*Connection, 0, len(c.connections))
	for _, conn := range c.connections {
		connections = append(connections, conn)
	}
	c.connections = make(map[string]*Connection)
	c.mu.Unlock()

	for _, conn := range connections {
		conn.Close()
	}
}

// ConnectionCount returns the number of tracked connections.
func (c *Client) ConnectionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.connections)
}

func generateConnectionID() string {
	return "ws-" + uuid.NewString()
}
