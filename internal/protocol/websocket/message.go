// Package websocket provides the WebSocket transport used by the request editor.
package websocket

import (
	"encoding/hex"

	"github.com/artpar/wspanel/internal/core"
	"github.com/artpar/wspanel/internal/interfaces"
)

// ToMessage converts a message or error event into a log entry. It returns
// nil for state changes.
func ToMessage(connectionID string, ev interfaces.ConnectionEvent) *core.WebSocketMessage {
	switch ev.Kind {
	case interfaces.EventMessage:
		direction := core.DirectionReceived
		if ev.Sent {
			direction = core.DirectionSent
		}
		msg := core.NewWebSocketMessage(connectionID, string(ev.Data), direction)
		if ev.Binary {
			msg.Type = "binary"
			msg.Content = hex.EncodeToString(ev.Data)
		}
		if !ev.Timestamp.IsZero() {
			msg.Timestamp = ev.Timestamp
		}
		return msg
	case interfaces.EventError:
		if ev.Err == nil {
			return nil
		}
		msg := core.NewWebSocketError(connectionID, ev.Err)
		if !ev.Timestamp.IsZero() {
			msg.Timestamp = ev.Timestamp
		}
		return msg
	default:
		return nil
	}
}
