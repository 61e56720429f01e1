package websocket

import (
	"errors"
	"testing"
	"time"

	"github.com/artpar/wspanel/internal/core"
	"github.com/artpar/wspanel/internal/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMessage(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("received text", func(t *testing.T) {
		msg := ToMessage("c1", interfaces.ConnectionEvent{
			Kind:      interfaces.EventMessage,
			Data:      []byte("hello"),
			Timestamp: ts,
		})
		require.NotNil(t, msg)
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, core.DirectionReceived, msg.Direction)
		assert.Equal(t, "text", msg.Type)
		assert.Equal(t, "c1", msg.ConnectionID)
		assert.Equal(t, ts, msg.Timestamp)
	})

	t.Run("sent binary is hex encoded", func(t *testing.T) {
		msg := ToMessage("c1", interfaces.ConnectionEvent{
			Kind:   interfaces.EventMessage,
			Data:   []byte{0xde, 0xad},
			Binary: true,
			Sent:   true,
		})
		require.NotNil(t, msg)
		assert.True(t, msg.IsSent())
		assert.Equal(t, "binary", msg.Type)
		assert.Equal(t, "dead", msg.Content)
	})

	t.Run("error", func(t *testing.T) {
		msg := ToMessage("c1", interfaces.ConnectionEvent{
			Kind: interfaces.EventError,
			Err:  errors.New("reset by peer"),
		})
		require.NotNil(t, msg)
		assert.Equal(t, "reset by peer", msg.Error)
	})

	t.Run("state change yields nil", func(t *testing.T) {
		assert.Nil(t, ToMessage("c1", interfaces.ConnectionEvent{Kind: interfaces.EventStateChanged}))
		assert.Nil(t, ToMessage("c1", interfaces.ConnectionEvent{Kind: interfaces.EventError}))
	})
}
