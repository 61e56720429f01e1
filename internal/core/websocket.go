package core

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Message directions.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// ErrInvalidEndpoint is returned for URLs that are not ws:// or wss://.
var ErrInvalidEndpoint = errors.New("endpoint must be a ws:// or wss:// URL")

// WebSocketDefinition is an endpoint profile used when connecting.
type WebSocketDefinition struct {
	// Name is the human-readable name.
	Name string `yaml:"name" json:"name"`

	// Endpoint is the default URL; the panel URL overrides it.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// Headers are sent during the handshake.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Subprotocols are requested during the handshake.
	Subprotocols []string `yaml:"subprotocols,omitempty" json:"subprotocols,omitempty"`

	// FilterScript hides messages in the data view when it returns false.
	// The script sees the message as `message` and must evaluate to a boolean.
	FilterScript string `yaml:"filterScript,omitempty" json:"filterScript,omitempty"`

	// PingInterval in seconds. 0 keeps the client default.
	PingInterval int `yaml:"pingInterval,omitempty" json:"pingInterval,omitempty"`

	// Variables fill {{name}} placeholders in the endpoint, headers and
	// outgoing messages.
	Variables map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// NewWebSocketDefinition creates a definition with empty headers.
func NewWebSocketDefinition(name, endpoint string) *WebSocketDefinition {
	return &WebSocketDefinition{
		Name:         name,
		Endpoint:     endpoint,
		Headers:      make(map[string]string),
		Subprotocols: []string{},
	}
}

// LoadWebSocketDefinition reads a YAML definition from path.
func LoadWebSocketDefinition(path string) (*WebSocketDefinition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}

	def := NewWebSocketDefinition("", "")
	if err := yaml.Unmarshal(content, def); err != nil {
		return nil, fmt.Errorf("failed to parse definition %s: %w", path, err)
	}
	// Templated endpoints are checked once expanded.
	if def.Endpoint != "" && !strings.Contains(def.Endpoint, "{{") {
		if err := ValidateEndpoint(def.Endpoint); err != nil {
			return nil, err
		}
	}
	if def.Headers == nil {
		def.Headers = make(map[string]string)
	}
	return def, nil
}

// ValidateEndpoint checks that raw is an absolute ws:// or wss:// URL.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, raw)
	}
	return nil
}

// WebSocketMessage is one entry in the communication log.
type WebSocketMessage struct {
	ID           string    `yaml:"id" json:"id"`
	ConnectionID string    `yaml:"connectionId" json:"connectionId"`
	Content      string    `yaml:"content" json:"content"`
	Direction    string    `yaml:"direction" json:"direction"`
	Timestamp    time.Time `yaml:"timestamp" json:"timestamp"`

	// Type is "text" or "binary".
	Type string `yaml:"type" json:"type"`

	// Error is set for transport failures logged into the conversation.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

// NewWebSocketMessage creates a text message.
func NewWebSocketMessage(connectionID, content, direction string) *WebSocketMessage {
	return &WebSocketMessage{
		ID:           uuid.New().String(),
		ConnectionID: connectionID,
		Content:      content,
		Direction:    direction,
		Timestamp:    time.Now(),
		Type:         "text",
	}
}

// NewWebSocketError creates a log entry describing a transport error.
func NewWebSocketError(connectionID string, err error) *WebSocketMessage {
	msg := NewWebSocketMessage(connectionID, "", DirectionReceived)
	msg.Error = err.Error()
	return msg
}

// IsSent returns true if this message was sent by the client.
func (m *WebSocketMessage) IsSent() bool {
	return m.Direction == DirectionSent
}

// IsReceived returns true if this message was received from the server.
func (m *WebSocketMessage) IsReceived() bool {
	return m.Direction == DirectionReceived
}
