package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// DeferredMsg carries an action scheduled for a later Update.
type DeferredMsg struct {
	fn func()
}

// Scheduler defers actions to a later turn of the bubbletea loop. Actions
// collected during one Update are returned by Flush as commands, and the
// runtime delivers them back as DeferredMsg after the frame is rendered.
type Scheduler struct {
	pending []func()
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Defer schedules fn.
func (s *Scheduler) Defer(fn func()) {
	s.pending = append(s.pending, fn)
}

// Pending returns the number of actions not yet flushed.
func (s *Scheduler) Pending() int {
	return len(s.pending)
}

// Flush turns the pending actions into a command that delivers them in
// order. It returns nil when nothing is pending.
func (s *Scheduler) Flush() tea.Cmd {
	if len(s.pending) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, len(s.pending))
	for i, fn := range s.pending {
		cmds[i] = Emit(DeferredMsg{fn: fn})
	}
	s.pending = nil
	return tea.Sequence(cmds...)
}

// Run executes a delivered action.
func (s *Scheduler) Run(msg DeferredMsg) {
	if msg.fn != nil {
		msg.fn()
	}
}
