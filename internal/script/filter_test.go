package script

import (
	"testing"
	"time"

	"github.com/artpar/wspanel/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(content, direction string) *core.WebSocketMessage {
	return core.NewWebSocketMessage("c1", content, direction)
}

func TestNewFilter(t *testing.T) {
	t.Run("empty source keeps everything", func(t *testing.T) {
		f, err := NewFilter("  ")
		require.NoError(t, err)
		assert.True(t, f.Empty())

		ok, err := f.Keep(msg("x", core.DirectionSent))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := NewFilter("message.content ===")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "syntax error")
	})

	t.Run("nil filter is empty", func(t *testing.T) {
		var f *Filter
		assert.True(t, f.Empty())
	})
}

func TestFilter_Keep(t *testing.T) {
	t.Run("by content", func(t *testing.T) {
		f, err := NewFilter(`message.content !== "ping"`)
		require.NoError(t, err)

		ok, err := f.Keep(msg("ping", core.DirectionReceived))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = f.Keep(msg("hello", core.DirectionReceived))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("by direction", func(t *testing.T) {
		f, err := NewFilter(`message.direction === "received"`)
		require.NoError(t, err)

		ok, _ := f.Keep(msg("a", core.DirectionSent))
		assert.False(t, ok)
		ok, _ = f.Keep(msg("a", core.DirectionReceived))
		assert.True(t, ok)
	})

	t.Run("json payload", func(t *testing.T) {
		f, err := NewFilter(`JSON.parse(message.content).type === "tick"`)
		require.NoError(t, err)

		ok, err := f.Keep(msg(`{"type":"tick"}`, core.DirectionReceived))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.Keep(msg(`not json`, core.DirectionReceived))
		assert.Error(t, err)
		assert.True(t, ok, "failed evaluation keeps the message")
	})

	t.Run("console does not panic", func(t *testing.T) {
		f, err := NewFilter(`console.log("seen", message.content); true`)
		require.NoError(t, err)

		ok, err := f.Keep(msg("a", core.DirectionSent))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("timeout", func(t *testing.T) {
		f, err := NewFilter(`while (true) {}`)
		require.NoError(t, err)
		f.SetTimeout(20 * time.Millisecond)

		ok, err := f.Keep(msg("a", core.DirectionSent))
		assert.ErrorIs(t, err, ErrScriptTimeout)
		assert.True(t, ok)

		// A later message is evaluated from scratch and times out again.
		_, err = f.Keep(msg("b", core.DirectionSent))
		assert.ErrorIs(t, err, ErrScriptTimeout)
		assert.Equal(t, 2, f.Runs())
	})
}

func TestFilter_Isolation(t *testing.T) {
	ticks := []*core.WebSocketMessage{
		msg(`{"type":"tick"}`, core.DirectionReceived),
		msg(`{"type":"quote"}`, core.DirectionReceived),
		msg(`{"type":"tick"}`, core.DirectionReceived),
		msg(`{"type":"trade"}`, core.DirectionReceived),
	}

	t.Run("top-level const", func(t *testing.T) {
		f, err := NewFilter(`const m = JSON.parse(message.content); m.type === "tick"`)
		require.NoError(t, err)

		out, err := f.Apply(ticks)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Same(t, ticks[0], out[0])
		assert.Same(t, ticks[2], out[1])
	})

	t.Run("top-level let", func(t *testing.T) {
		f, err := NewFilter(`let kind = JSON.parse(message.content).type; kind !== "tick"`)
		require.NoError(t, err)

		out, err := f.Apply(ticks)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Same(t, ticks[1], out[0])
		assert.Same(t, ticks[3], out[1])
	})

	t.Run("var counter starts fresh", func(t *testing.T) {
		f, err := NewFilter(`var seen = (typeof seen === "undefined" ? 0 : seen) + 1; seen === 1`)
		require.NoError(t, err)

		out, err := f.Apply(ticks)
		require.NoError(t, err)
		assert.Len(t, out, len(ticks))
	})

	t.Run("globals do not leak", func(t *testing.T) {
		f, err := NewFilter(`const first = globalThis.last === undefined; globalThis.last = message.content; first`)
		require.NoError(t, err)

		out, err := f.Apply(ticks)
		require.NoError(t, err)
		assert.Len(t, out, len(ticks))
		assert.Equal(t, len(ticks), f.Runs())
	})
}

func TestFilter_Apply(t *testing.T) {
	f, err := NewFilter(`message.content.length > 1`)
	require.NoError(t, err)

	in := []*core.WebSocketMessage{
		msg("a", core.DirectionSent),
		msg("bb", core.DirectionReceived),
		msg("ccc", core.DirectionReceived),
	}
	out, err := f.Apply(in)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "bb", out[0].Content)
	assert.Equal(t, "ccc", out[1].Content)
}
