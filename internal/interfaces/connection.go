package interfaces

import (
	"context"
	"time"
)

// ConnectionManager manages connections for stateful protocols.
// Implemented by: websocket.Client
type ConnectionManager interface {
	// Connect establishes a connection to the given endpoint.
	Connect(ctx context.Context, endpoint string, opts ConnectionOptions) (Connection, error)

	// Disconnect closes the connection with the given ID.
	Disconnect(id string) error

	// ListConnections returns all active connections.
	ListConnections() []ConnectionInfo

	// GetConnection returns a specific connection by ID.
	GetConnection(id string) (Connection, error)
}

// Connection represents an active connection for stateful protocols.
type Connection interface {
	// ID returns the unique connection identifier.
	ID() string

	// Endpoint returns the connection endpoint.
	Endpoint() string

	// State returns the current connection state.
	State() ConnectionState

	// Send sends a text message on this connection.
	Send(ctx context.Context, data []byte) error

	// Events returns the channel carrying state changes, messages and errors.
	// It is closed once the connection is fully shut down.
	Events() <-chan ConnectionEvent

	// Close closes the connection.
	Close() error
}

// ConnectionOptions contains options for establishing a connection.
type ConnectionOptions struct {
	Headers      map[string]string
	Subprotocols []string
	Timeout      time.Duration
	TLSInsecure  bool
	// PingInterval overrides the client keepalive interval when > 0.
	PingInterval time.Duration
}

// ConnectionInfo provides metadata about a connection.
type ConnectionInfo struct {
	ID        string
	Endpoint  string
	State     ConnectionState
	CreatedAt time.Time
	Protocol  string
}

// ConnectionEvent is emitted by a Connection. Exactly one of State, Data or
// Err is meaningful, selected by Kind.
type ConnectionEvent struct {
	Kind      EventKind
	State     ConnectionState
	Data      []byte
	Binary    bool
	Sent      bool
	Err       error
	Timestamp time.Time
}

// EventKind selects the payload of a ConnectionEvent.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventMessage
	EventError
)

// ConnectionState represents the state of a connection.
type ConnectionState int

const (
	ConnectionStateConnecting ConnectionState = iota
	ConnectionStateConnected
	ConnectionStateDisconnecting
	ConnectionStateDisconnected
	ConnectionStateError
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateConnecting:
		return "connecting"
	case ConnectionStateConnected:
		return "connected"
	case ConnectionStateDisconnecting:
		return "disconnecting"
	case ConnectionStateDisconnected:
		return "disconnected"
	case ConnectionStateError:
		return "error"
	default:
		return "unknown"
	}
}
