package tui

import (
	"reflect"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deliver runs cmd the way the runtime would and returns the deferred
// messages it produces, in order.
func deliver(t *testing.T, cmd tea.Cmd) []DeferredMsg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if d, ok := msg.(DeferredMsg); ok {
		return []DeferredMsg{d}
	}

	v := reflect.ValueOf(msg)
	require.Equal(t, reflect.Slice, v.Kind(), "unexpected message %T", msg)
	var out []DeferredMsg
	for i := 0; i < v.Len(); i++ {
		c, ok := v.Index(i).Interface().(tea.Cmd)
		require.True(t, ok)
		out = append(out, deliver(t, c)...)
	}
	return out
}

func TestScheduler(t *testing.T) {
	t.Run("flush with nothing pending", func(t *testing.T) {
		s := NewScheduler()
		assert.Nil(t, s.Flush())
	})

	t.Run("deferred action does not run until delivered", func(t *testing.T) {
		s := NewScheduler()
		ran := false
		s.Defer(func() { ran = true })

		assert.Equal(t, 1, s.Pending())
		cmd := s.Flush()
		require.NotNil(t, cmd)
		assert.Equal(t, 0, s.Pending())
		assert.False(t, ran)

		msgs := deliver(t, cmd)
		require.Len(t, msgs, 1)
		assert.False(t, ran)

		s.Run(msgs[0])
		assert.True(t, ran)
	})

	t.Run("actions run in order", func(t *testing.T) {
		s := NewScheduler()
		var order []int
		s.Defer(func() { order = append(order, 1) })
		s.Defer(func() { order = append(order, 2) })

		for _, m := range deliver(t, s.Flush()) {
			s.Run(m)
		}
		assert.Equal(t, []int{1, 2}, order)
	})

	t.Run("run ignores empty message", func(t *testing.T) {
		s := NewScheduler()
		assert.NotPanics(t, func() { s.Run(DeferredMsg{}) })
	})
}
