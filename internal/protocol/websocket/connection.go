package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/artpar/wspanel/internal/interfaces"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var (
	// ErrConnectionClosed is returned when a finished connection is reused.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrConnectionNotConnected is returned when trying to use a disconnected connection.
	ErrConnectionNotConnected = errors.New("connection not connected")
)

// Connection is a single-use WebSocket connection. All activity is reported
// on the Events channel, which is closed when the connection is finished.
type Connection struct {
	id       string
	endpoint string
	config   *Config
	headers  http.Header
	protos   []string
	jar      http.CookieJar
	log      *logrus.Entry

	mu        sync.Mutex
	writeMu   sync.Mutex
	state     interfaces.ConnectionState
	conn      *websocket.Conn
	closing   chan struct{}
	events    chan interfaces.ConnectionEvent
	finished  bool
	onFinish  func()
	createdAt time.Time

	lastPing time.Time
	lastPong time.Time
}

// NewConnection creates a disconnected connection to endpoint.
func NewConnection(id, endpoint string, config *Config) *Connection {
	if config == nil {
		config = DefaultConfig()
	}
	buf := config.EventBuffer
	if buf <= 0 {
		buf = DefaultConfig().EventBuffer
	}
	return &Connection{
		id:        id,
		endpoint:  endpoint,
		config:    config,
		headers:   make(http.Header),
		log:       logrus.WithFields(logrus.Fields{"component": "websocket", "connection": id}),
		state:     interfaces.ConnectionStateDisconnected,
		closing:   make(chan struct{}),
		events:    make(chan interfaces.ConnectionEvent, buf),
		createdAt: time.Now(),
	}
}

// ID returns the unique connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// Endpoint returns the connection endpoint.
func (c *Connection) Endpoint() string {
	return c.endpoint
}

// CreatedAt returns when the connection was created.
func (c *Connection) CreatedAt() time.Time {
	return c.createdAt
}

// State returns the current connection state.
func (c *Connection) State() interfaces.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events returns the event channel.
func (c *Connection) Events() <-chan interfaces.ConnectionEvent {
	return c.events
}

// SetHeaders sets handshake headers.
func (c *Connection) SetHeaders(headers map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range headers {
		c.headers.Set(k, v)
	}
}

// SetSubprotocols sets the subprotocols requested during the handshake.
func (c *Connection) SetSubprotocols(protos []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.protos = append([]string(nil), protos...)
}

// SetCookieJar sets the jar used for handshake cookies.
func (c *Connection) SetCookieJar(jar http.CookieJar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jar = jar
}

// Connect dials the endpoint. A connection can only be connected once.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	if c.state == interfaces.ConnectionStateConnected || c.state == interfaces.ConnectionStateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.setState(interfaces.ConnectionStateConnecting)
	headers := c.headers.Clone()
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.ConnectTimeout,
		Subprotocols:     c.protos,
		Jar:              c.jar,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		Proxy:            http.ProxyFromEnvironment,
	}
	c.mu.Unlock()

	if c.config.TLSInsecure {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	dialCtx := ctx
	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	c.log.WithField("endpoint", c.endpoint).Debug("dialing")
	conn, resp, err := dialer.DialContext(dialCtx, c.endpoint, headers)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		err = fmt.Errorf("failed to connect: %w", err)
		c.log.WithError(err).Warn("dial failed")
		c.mu.Lock()
		c.setState(interfaces.ConnectionStateError)
		c.emitLocked(interfaces.ConnectionEvent{Kind: interfaces.EventError, Err: err})
		c.finishLocked()
		c.mu.Unlock()
		return err
	}

	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.mu.Lock()
	if c.finished {
		// Closed while dialing.
		c.mu.Unlock()
		conn.Close()
		return ErrConnectionClosed
	}
	c.conn = conn
	c.setState(interfaces.ConnectionStateConnected)
	c.mu.Unlock()

	c.setupPingPong(conn)
	go c.readLoop(conn)
	if c.config.PingInterval > 0 {
		go c.pingLoop(conn)
	}

	return nil
}

func (c *Connection) setupPingPong(conn *websocket.Conn) {
	if c.config.PingInterval > 0 && c.config.PongTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(c.config.PongTimeout))
	}

	conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()
		if c.config.PingInterval > 0 && c.config.PongTimeout > 0 {
			return conn.SetReadDeadline(time.Now().Add(c.config.PongTimeout))
		}
		return nil
	})
}

func (c *Connection) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closing:
				return
			default:
			}

			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.WithError(err).Warn("read failed")
				c.mu.Lock()
				c.emitLocked(interfaces.ConnectionEvent{Kind: interfaces.EventError, Err: err})
				c.mu.Unlock()
			}
			c.handleDisconnect()
			return
		}

		if c.config.PingInterval > 0 && c.config.PongTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(c.config.PongTimeout))
		}

		c.log.WithField("bytes", len(data)).Debug("message received")
		c.mu.Lock()
		c.emitLocked(interfaces.ConnectionEvent{
			Kind:   interfaces.EventMessage,
			Data:   data,
			Binary: msgType == websocket.BinaryMessage,
		})
		c.mu.Unlock()
	}
}

func (c *Connection) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closing:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.lastPing = time.Now()
			c.mu.Unlock()

			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				c.log.WithError(err).Debug("ping failed")
			}
		}
	}
}

// Send sends a text message.
func (c *Connection) Send(ctx context.Context, data []byte) error {
	return c.write(ctx, websocket.TextMessage, data)
}

// SendBinary sends a binary message.
func (c *Connection) SendBinary(ctx context.Context, data []byte) error {
	return c.write(ctx, websocket.BinaryMessage, data)
}

func (c *Connection) write(ctx context.Context, msgType int, data []byte) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != interfaces.ConnectionStateConnected || conn == nil {
		return ErrConnectionNotConnected
	}

	deadline, ok := ctx.Deadline()
	if !ok && c.config.WriteTimeout > 0 {
		deadline = time.Now().Add(c.config.WriteTimeout)
	}

	// Emitted before the write so an echo is always logged after it.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	c.emitLocked(interfaces.ConnectionEvent{
		Kind:   interfaces.EventMessage,
		Data:   data,
		Binary: msgType == websocket.BinaryMessage,
		Sent:   true,
	})
	c.mu.Unlock()

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(msgType, data); err != nil {
		err = fmt.Errorf("send failed: %w", err)
		c.log.WithError(err).Warn("write failed")
		c.mu.Lock()
		c.emitLocked(interfaces.ConnectionEvent{Kind: interfaces.EventError, Err: err})
		c.mu.Unlock()
		return err
	}
	return nil
}

// Close closes the connection and finishes its event stream.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return nil
	}

	close(c.closing)

	var err error
	if c.conn != nil {
		c.setState(interfaces.ConnectionStateDisconnecting)
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = c.conn.Close()
		c.conn = nil
	}

	c.setState(interfaces.ConnectionStateDisconnected)
	c.finishLocked()
	return err
}

func (c *Connection) handleDisconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return
	}

	close(c.closing)
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.setState(interfaces.ConnectionStateDisconnected)
	c.finishLocked()
}

// setState must be called with mu held.
func (c *Connection) setState(state interfaces.ConnectionState) {
	if c.state == state {
		return
	}
	c.state = state
	c.log.WithField("state", state.String()).Debug("state changed")
	c.emitLocked(interfaces.ConnectionEvent{Kind: interfaces.EventStateChanged, State: state})
}

// emitLocked must be called with mu held. Events are dropped when the
// consumer falls a full buffer behind.
func (c *Connection) emitLocked(ev interfaces.ConnectionEvent) {
	if c.finished {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case c.events <- ev:
	default:
		c.log.WithField("kind", ev.Kind).Warn("event buffer full, dropping event")
	}
}

func (c *Connection) finishLocked() {
	if c.finished {
		return
	}
	c.finished = true
	close(c.events)
	if c.onFinish != nil {
		go c.onFinish()
	}
}

// LastPing returns the time of the last ping sent.
func (c *Connection) LastPing() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPing
}

// LastPong returns the time of the last pong received.
func (c *Connection) LastPong() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPong
}
