package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/artpar/wspanel/internal/core"
	"github.com/artpar/wspanel/internal/history"
	"github.com/artpar/wspanel/internal/panel"
	"github.com/artpar/wspanel/internal/protocol/websocket"
	"github.com/artpar/wspanel/internal/script"
	"github.com/artpar/wspanel/internal/tui"
	"github.com/artpar/wspanel/internal/tui/components"
	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

// DefaultNarrowWidth is the terminal width below which the panel switches
// to its compact layout.
const DefaultNarrowWidth = 80

// Focus identifies the child receiving keystrokes.
type Focus int

const (
	FocusEditor Focus = iota
	FocusPane
)

// clearNotificationMsg is sent to clear the notification.
type clearNotificationMsg struct{}

// copyFunc writes to the system clipboard.
var copyFunc = clipboard.WriteAll

// WebSocketView is the testing panel: the request editor on top and, below
// it, either the message log or the URL history.
type WebSocketView struct {
	width       int
	height      int
	narrowWidth int
	focus       Focus
	pane        panel.Pane
	showHelp    bool
	autoConnect bool

	controller *panel.Controller
	scheduler  *tui.Scheduler
	pending    []tea.Cmd

	editor   *components.RequestEditor
	messages *components.MessageView
	history  *components.HistoryList

	notification string
	log          *logrus.Entry
}

// editorAdapter lets the controller command the request editor. The
// command the editor returns is queued for the current Update.
type editorAdapter struct {
	view *WebSocketView
}

func (a editorAdapter) Connect() {
	a.view.pending = append(a.view.pending, a.view.editor.Connect())
}

// NewWebSocketView creates the panel. store may be nil.
func NewWebSocketView(client *websocket.Client, store history.Store) *WebSocketView {
	v := &WebSocketView{
		narrowWidth: DefaultNarrowWidth,
		scheduler:   tui.NewScheduler(),
		pane:        panel.PaneHistory,
		editor:      components.NewRequestEditor(client, store),
		messages:    components.NewMessageView(),
		history:     components.NewHistoryList(store),
		log:         logrus.WithField("component", "websocket_view"),
	}
	v.controller = panel.NewController(
		panel.WithEditor(editorAdapter{view: v}),
		panel.WithScheduler(v.scheduler),
	)
	v.controller.OnURLChange(v.editor.SetURL)
	v.controller.OnChange(v.stateChanged)
	v.editor.Focus()
	return v
}

// SetDefinition applies an endpoint profile to the request editor.
func (v *WebSocketView) SetDefinition(def *core.WebSocketDefinition) {
	v.editor.SetDefinition(def)
	v.controller.URLChanged(v.editor.URL())
}

// SetURL sets the panel URL.
func (v *WebSocketView) SetURL(url string) {
	v.controller.SetURL(url)
}

// SetFilter installs the data view filter.
func (v *WebSocketView) SetFilter(f *script.Filter) {
	v.messages.SetFilter(f)
}

// SetNarrowWidth sets the width threshold of the compact layout.
func (v *WebSocketView) SetNarrowWidth(width int) {
	if width > 0 {
		v.narrowWidth = width
	}
}

// SetHistoryLimit sets how many history entries are loaded.
func (v *WebSocketView) SetHistoryLimit(limit int) {
	v.history.SetLimit(limit)
}

// ConnectOnStart makes Init connect to the current URL.
func (v *WebSocketView) ConnectOnStart() {
	v.autoConnect = true
}

// Init loads the history and, if requested, connects.
func (v *WebSocketView) Init() tea.Cmd {
	if v.autoConnect && v.controller.URL() != "" {
		v.scheduler.Defer(editorAdapter{view: v}.Connect)
	}
	return tea.Batch(v.history.Init(), v.scheduler.Flush())
}

// Update handles messages.
func (v *WebSocketView) Update(msg tea.Msg) (tui.Component, tea.Cmd) {
	cmd := v.update(msg)
	cmds := append(v.pending, cmd, v.scheduler.Flush())
	v.pending = nil
	return v, tea.Batch(cmds...)
}

func (v *WebSocketView) update(msg tea.Msg) tea.Cmd {
	if v.showHelp {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			if keyMsg.Type == tea.KeyEsc || string(keyMsg.Runes) == "?" {
				v.showHelp = false
			}
			return nil
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.controller.SetNarrow(msg.Width < v.narrowWidth)
		v.layout()
		return nil

	case tea.KeyMsg:
		return v.handleKey(msg)

	case tui.DeferredMsg:
		v.scheduler.Run(msg)
		return nil

	case components.URLChangedMsg:
		v.controller.URLChanged(msg.URL)
		return nil

	case components.ConnectingChangedMsg:
		v.controller.ConnectingChanged(msg.Connecting)
		return nil

	case components.ConnectedChangedMsg:
		v.controller.ConnectedChanged(msg.Connected)
		return nil

	case components.MessagesChangedMsg:
		v.controller.MessagesChanged(msg.Messages)
		return nil

	case components.MessagesClearedMsg:
		v.controller.MessagesCleared()
		return nil

	case components.URLSelectedMsg:
		v.controller.HistoryURLSelected(msg.URL)
		v.setFocus(FocusEditor)
		return nil

	case components.CopyMsg:
		return v.handleCopy(msg.Content)

	case clearNotificationMsg:
		v.notification = ""
		return nil
	}

	// Transport and store results go to every child; each ignores what is
	// not addressed to it.
	_, c1 := v.editor.Update(msg)
	_, c2 := v.history.Update(msg)
	_, c3 := v.messages.Update(msg)
	return tea.Batch(c1, c2, c3)
}

func (v *WebSocketView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		v.Close()
		return tea.Quit
	}

	if v.isEditing() {
		return v.forwardToFocused(msg)
	}

	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab:
		v.toggleFocus()
		return nil
	case tea.KeyRunes:
		switch string(msg.Runes) {
		case "q":
			v.Close()
			return tea.Quit
		case "?":
			v.showHelp = true
			return nil
		}
	}
	return v.forwardToFocused(msg)
}

func (v *WebSocketView) isEditing() bool {
	return v.editor.IsEditing() || v.history.IsSearching()
}

func (v *WebSocketView) forwardToFocused(msg tea.Msg) tea.Cmd {
	if v.focus == FocusEditor {
		_, cmd := v.editor.Update(msg)
		return cmd
	}
	switch v.controller.View().Visible() {
	case panel.PaneDataView:
		_, cmd := v.messages.Update(msg)
		return cmd
	case panel.PaneHistory:
		_, cmd := v.history.Update(msg)
		return cmd
	}
	return nil
}

func (v *WebSocketView) handleCopy(content string) tea.Cmd {
	if err := copyFunc(content); err != nil {
		v.log.WithError(err).Warn("copy failed")
		v.notification = "✗ Copy failed"
	} else {
		size := len(content)
		if size > 1024 {
			v.notification = fmt.Sprintf("✓ Copied %.1fKB", float64(size)/1024)
		} else {
			v.notification = fmt.Sprintf("✓ Copied %dB", size)
		}
	}
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg {
		return clearNotificationMsg{}
	})
}

// stateChanged pushes controller state down to the children.
func (v *WebSocketView) stateChanged(s panel.State, view panel.View) {
	v.editor.SetNarrow(s.Narrow)
	v.editor.SetMessages(s.Messages)
	v.messages.SetNarrow(s.Narrow)
	v.messages.SetMessages(s.Messages)
	v.history.SetNarrow(s.Narrow)

	pane := view.Visible()
	if pane != v.pane {
		v.pane = pane
		if v.focus == FocusPane {
			if pane == panel.PaneNone {
				v.setFocus(FocusEditor)
			} else {
				v.setFocus(FocusPane)
			}
		}
	}
	v.layout()
}

func (v *WebSocketView) toggleFocus() {
	if v.focus == FocusEditor && v.controller.View().Visible() != panel.PaneNone {
		v.setFocus(FocusPane)
		return
	}
	v.setFocus(FocusEditor)
}

func (v *WebSocketView) setFocus(f Focus) {
	v.focus = f
	v.editor.Blur()
	v.messages.Blur()
	v.history.Blur()
	if f == FocusEditor {
		v.editor.Focus()
		return
	}
	switch v.controller.View().Visible() {
	case panel.PaneDataView:
		v.messages.Focus()
	case panel.PaneHistory:
		v.history.Focus()
	}
}

func (v *WebSocketView) layout() {
	editorHeight := v.editor.PreferredHeight()
	v.editor.SetSize(v.width, editorHeight)

	paneHeight := v.height - editorHeight - 1 // help bar
	if paneHeight < 0 {
		paneHeight = 0
	}
	v.messages.SetSize(v.width, paneHeight)
	v.history.SetSize(v.width, paneHeight)
}

// View renders the component.
func (v *WebSocketView) View() string {
	if v.width == 0 || v.height == 0 {
		return "Loading..."
	}
	if v.showHelp {
		return v.renderHelp()
	}

	parts := []string{v.editor.View()}
	switch v.controller.View().Visible() {
	case panel.PaneDataView:
		parts = append(parts, v.messages.View())
	case panel.PaneHistory:
		parts = append(parts, v.history.View())
	}
	parts = append(parts, v.renderHelpBar())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (v *WebSocketView) renderHelpBar() string {
	if v.notification != "" {
		style := lipgloss.NewStyle().Foreground(tui.ColorReceived).Bold(true)
		return style.Render(v.notification)
	}
	hint := "Tab: switch pane  ?: help  q: quit"
	if v.controller.State().Narrow {
		hint = "Tab  ?  q"
	}
	return tui.Hint(tui.Truncate(hint, v.width))
}

func (v *WebSocketView) renderHelp() string {
	sections := []struct {
		title string
		keys  [][2]string
	}{
		{"Request", [][2]string{
			{"e", "edit URL"},
			{"Enter", "connect / type message"},
			{"i", "type message"},
			{"d", "disconnect"},
			{"Ctrl+R", "reconnect"},
		}},
		{"Messages", [][2]string{
			{"j/k", "move"},
			{"Enter", "expand"},
			{"y", "copy"},
			{"x", "clear"},
			{"f", "toggle filter"},
		}},
		{"History", [][2]string{
			{"Enter", "connect"},
			{"/", "search"},
			{"d", "delete"},
			{"r", "reload"},
		}},
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(tui.ColorTitle)
	keyStyle := lipgloss.NewStyle().Foreground(tui.ColorWarn).Width(8)

	var b strings.Builder
	for _, s := range sections {
		b.WriteString(titleStyle.Render(s.title) + "\n")
		for _, k := range s.keys {
			b.WriteString("  " + keyStyle.Render(k[0]) + k[1] + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(tui.Hint("Esc or ? to close"))
	return tui.RenderBorder(b.String(), true)
}

// Close releases the connection.
func (v *WebSocketView) Close() {
	v.editor.Close()
}

// Title returns the component title.
func (v *WebSocketView) Title() string {
	return "WebSocket"
}

// Focused returns true; the view is always the root.
func (v *WebSocketView) Focused() bool {
	return true
}

// Focus is a no-op for the root view.
func (v *WebSocketView) Focus() {}

// Blur is a no-op for the root view.
func (v *WebSocketView) Blur() {}

// SetSize sets dimensions.
func (v *WebSocketView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.controller.SetNarrow(width < v.narrowWidth)
	v.layout()
}

// Width returns the width.
func (v *WebSocketView) Width() int {
	return v.width
}

// Height returns the height.
func (v *WebSocketView) Height() int {
	return v.height
}

// Controller returns the panel controller.
func (v *WebSocketView) Controller() *panel.Controller {
	return v.controller
}

// Editor returns the request editor.
func (v *WebSocketView) Editor() *components.RequestEditor {
	return v.editor
}

// MessageView returns the data view.
func (v *WebSocketView) MessageView() *components.MessageView {
	return v.messages
}

// HistoryList returns the history list.
func (v *WebSocketView) HistoryList() *components.HistoryList {
	return v.history
}

// FocusedChild returns which child receives keys.
func (v *WebSocketView) FocusedChild() Focus {
	return v.focus
}

// ShowingHelp returns true if the help overlay is shown.
func (v *WebSocketView) ShowingHelp() bool {
	return v.showHelp
}

// Notification returns the current notification text.
func (v *WebSocketView) Notification() string {
	return v.notification
}
