// Package panel holds the state of the WebSocket testing panel and decides
// which child view is visible.
package panel

import (
	"github.com/artpar/wspanel/internal/core"
)

// Editor is the request editor as seen by the controller.
type Editor interface {
	// Connect asks the editor to open a connection to its current URL.
	Connect()
}

// Scheduler defers work to a later turn of the event loop.
type Scheduler interface {
	Defer(fn func())
}

// Pane identifies the child view rendered below the request editor.
type Pane int

const (
	PaneNone Pane = iota
	PaneHistory
	PaneDataView
)

func (p Pane) String() string {
	switch p {
	case PaneHistory:
		return "history"
	case PaneDataView:
		return "data-view"
	default:
		return "none"
	}
}

// State is a snapshot of the panel.
type State struct {
	URL        string
	Connecting bool
	Connected  bool
	Messages   []*core.WebSocketMessage
	Narrow     bool
}

// View is the render decision derived from a State.
type View struct {
	ShowDataView bool
	ShowHistory  bool
}

// Derive computes the render decision for s.
func Derive(s State) View {
	return View{
		ShowDataView: len(s.Messages) > 0,
		ShowHistory:  !s.Connected && !s.Connecting,
	}
}

// Visible returns the single pane that gets rendered. The data view wins
// when both predicates hold.
func (v View) Visible() Pane {
	switch {
	case v.ShowDataView:
		return PaneDataView
	case v.ShowHistory:
		return PaneHistory
	default:
		return PaneNone
	}
}

// Controller owns the panel state. It is not safe for concurrent use; all
// calls are expected from the UI event loop.
type Controller struct {
	state     State
	editor    Editor
	scheduler Scheduler

	urlListeners    []func(string)
	changeListeners []func(State, View)
}

// Option configures a Controller.
type Option func(*Controller)

// WithEditor sets the request editor that receives connect commands.
func WithEditor(e Editor) Option {
	return func(c *Controller) {
		c.editor = e
	}
}

// WithScheduler sets the scheduler used for deferred commands.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		c.scheduler = s
	}
}

// NewController creates a controller with empty state. Without
// WithScheduler, deferred connects wait in a Queue that the owner drains
// through Scheduler.
func NewController(opts ...Option) *Controller {
	c := &Controller{}
	for _, opt := range opts {
		opt(c)
	}
	if c.scheduler == nil {
		c.scheduler = NewQueue()
	}
	return c
}

// Scheduler returns the scheduler holding deferred connects.
func (c *Controller) Scheduler() Scheduler {
	return c.scheduler
}

// OnURLChange registers fn to be called with every new URL.
func (c *Controller) OnURLChange(fn func(string)) {
	c.urlListeners = append(c.urlListeners, fn)
}

// OnChange registers fn to be called after every mutation.
func (c *Controller) OnChange(fn func(State, View)) {
	c.changeListeners = append(c.changeListeners, fn)
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	return c.state
}

// View returns the render decision for the current state.
func (c *Controller) View() View {
	return Derive(c.state)
}

// URL returns the current URL.
func (c *Controller) URL() string {
	return c.state.URL
}

// SetURL sets the URL. Setting the current value again has no effect.
func (c *Controller) SetURL(url string) {
	if url == c.state.URL {
		return
	}
	c.state.URL = url
	for _, fn := range c.urlListeners {
		fn(url)
	}
	c.changed()
}

// SetNarrow sets the layout hint passed to every child.
func (c *Controller) SetNarrow(narrow bool) {
	if narrow == c.state.Narrow {
		return
	}
	c.state.Narrow = narrow
	c.changed()
}

// HistoryURLSelected sets the URL and, on the next turn, tells the editor
// to connect.
func (c *Controller) HistoryURLSelected(url string) {
	c.SetURL(url)
	c.scheduler.Defer(func() {
		if c.editor != nil {
			c.editor.Connect()
		}
	})
}

// URLChanged mirrors the editor's URL.
func (c *Controller) URLChanged(url string) {
	c.SetURL(url)
}

// MessagesChanged replaces the message log. nil clears it.
func (c *Controller) MessagesChanged(messages []*core.WebSocketMessage) {
	c.state.Messages = messages
	c.changed()
}

// MessagesCleared empties the message log.
func (c *Controller) MessagesCleared() {
	c.MessagesChanged(nil)
}

// ConnectingChanged sets the connecting flag.
func (c *Controller) ConnectingChanged(connecting bool) {
	if connecting == c.state.Connecting {
		return
	}
	c.state.Connecting = connecting
	c.changed()
}

// ConnectedChanged sets the connected flag.
func (c *Controller) ConnectedChanged(connected bool) {
	if connected == c.state.Connected {
		return
	}
	c.state.Connected = connected
	c.changed()
}

func (c *Controller) changed() {
	view := Derive(c.state)
	for _, fn := range c.changeListeners {
		fn(c.state, view)
	}
}
