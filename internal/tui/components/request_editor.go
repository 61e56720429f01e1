package components

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/wspanel/internal/core"
	"github.com/artpar/wspanel/internal/history"
	"github.com/artpar/wspanel/internal/interfaces"
	"github.com/artpar/wspanel/internal/interpolate"
	"github.com/artpar/wspanel/internal/protocol/websocket"
	"github.com/artpar/wspanel/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

// editorHeight is the fixed height of the request editor, borders included.
const editorHeight = 6

// RequestEditor edits the target URL, owns the WebSocket connection and
// keeps the message log for it.
type RequestEditor struct {
	title   string
	focused bool
	width   int
	height  int
	narrow  bool

	client     *websocket.Client
	store      history.Store
	definition *core.WebSocketDefinition
	vars       *interpolate.Engine
	log        *logrus.Entry

	url        textField
	editingURL bool
	input      textField
	inputMode  bool

	conn     *websocket.Connection
	state    interfaces.ConnectionState
	messages []*core.WebSocketMessage
}

// NewRequestEditor creates an editor that dials through client. store may
// be nil, in which case connections are not recorded.
func NewRequestEditor(client *websocket.Client, store history.Store) *RequestEditor {
	if client == nil {
		client = websocket.NewClient(nil)
	}
	return &RequestEditor{
		title:  "Request",
		client: client,
		store:  store,
		vars:   interpolate.NewEngine(nil),
		state:  interfaces.ConnectionStateDisconnected,
		log:    logrus.WithField("component", "request_editor"),
	}
}

// SetDefinition applies an endpoint profile. Its endpoint becomes the URL
// when none is set yet.
func (e *RequestEditor) SetDefinition(def *core.WebSocketDefinition) {
	e.definition = def
	if def == nil {
		e.vars = interpolate.NewEngine(nil)
		return
	}
	e.vars = interpolate.NewEngine(def.Variables)
	if def.Endpoint != "" && e.url.String() == "" {
		e.url.Set(def.Endpoint)
	}
}

// Variables returns the placeholder engine used for the endpoint, headers
// and outgoing messages.
func (e *RequestEditor) Variables() *interpolate.Engine {
	return e.vars
}

// Definition returns the endpoint profile, if any.
func (e *RequestEditor) Definition() *core.WebSocketDefinition {
	return e.definition
}

// Init initializes the component.
func (e *RequestEditor) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (e *RequestEditor) Update(msg tea.Msg) (tui.Component, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		e.width = msg.Width
		e.height = msg.Height

	case tui.FocusMsg:
		e.focused = true

	case tui.BlurMsg:
		e.Blur()

	case connectionEventMsg:
		return e, e.handleEvent(msg)

	case connectResultMsg:
		if msg.err != nil {
			e.log.WithError(msg.err).WithField("connection", msg.connectionID).Debug("connect failed")
		}

	case HistoryRecordedMsg:
		if msg.Err != nil {
			e.log.WithError(msg.Err).Warn("failed to record history")
		}

	case tea.KeyMsg:
		if e.focused {
			return e, e.handleKey(msg)
		}
	}

	return e, nil
}

func (e *RequestEditor) handleKey(msg tea.KeyMsg) tea.Cmd {
	if e.editingURL {
		return e.handleURLKey(msg)
	}
	if e.inputMode {
		return e.handleInputKey(msg)
	}

	switch msg.Type {
	case tea.KeyEnter:
		if e.Connected() {
			e.inputMode = true
			return nil
		}
		return e.Connect()

	case tea.KeyCtrlR:
		return e.Connect()

	case tea.KeyRunes:
		switch string(msg.Runes) {
		case "e", "u":
			e.editingURL = true
		case "i":
			e.inputMode = true
		case "c":
			if !e.Connected() && !e.Connecting() {
				return e.Connect()
			}
		case "d":
			return e.Disconnect()
		}
	}
	return nil
}

func (e *RequestEditor) handleURLKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		e.editingURL = false
		return nil
	case tea.KeyEnter:
		e.editingURL = false
		return e.Connect()
	}

	if _, changed := e.url.HandleKey(msg); changed {
		return tui.Emit(URLChangedMsg{URL: e.url.String()})
	}
	return nil
}

func (e *RequestEditor) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		e.inputMode = false
		return nil
	case tea.KeyEnter:
		if e.input.String() == "" || !e.Connected() {
			return nil
		}
		content := e.input.String()
		e.input.Clear()
		return e.Send(content)
	}

	e.input.HandleKey(msg)
	return nil
}

// Connect opens a connection to the current URL, closing any existing one.
func (e *RequestEditor) Connect() tea.Cmd {
	endpoint := strings.TrimSpace(e.url.String())
	if endpoint == "" {
		return nil
	}

	var cmds []tea.Cmd
	if e.conn != nil {
		e.closeConnection()
		cmds = append(cmds, e.setState(interfaces.ConnectionStateDisconnected)...)
	}

	endpoint, err := e.vars.Expand(endpoint)
	if err == nil {
		err = core.ValidateEndpoint(endpoint)
	}
	if err != nil {
		e.appendMessage(core.NewWebSocketError("", err))
		return tea.Sequence(append(cmds, e.messagesChanged())...)
	}

	opts, err := e.connectionOptions()
	if err != nil {
		e.appendMessage(core.NewWebSocketError("", err))
		return tea.Sequence(append(cmds, e.messagesChanged())...)
	}

	conn, err := e.client.Dial(endpoint, opts)
	if err != nil {
		e.log.WithError(err).Warn("dial refused")
		e.appendMessage(core.NewWebSocketError("", err))
		return tea.Sequence(append(cmds, e.messagesChanged())...)
	}

	e.log.WithFields(logrus.Fields{"endpoint": endpoint, "connection": conn.ID()}).Info("connecting")
	e.conn = conn
	cmds = append(cmds, e.setState(interfaces.ConnectionStateConnecting)...)
	cmds = append(cmds, tea.Batch(connect(conn), listen(conn)))
	return tea.Sequence(cmds...)
}

// Disconnect closes the current connection. The resulting state changes
// arrive through the event stream.
func (e *RequestEditor) Disconnect() tea.Cmd {
	if e.conn == nil {
		return nil
	}
	e.log.WithField("connection", e.conn.ID()).Info("disconnecting")
	if err := e.conn.Close(); err != nil {
		e.log.WithError(err).Debug("close failed")
	}
	return nil
}

// Send writes content as a text frame once its placeholders are expanded.
// Content with undefined placeholders is not sent; the error is logged
// into the conversation instead.
func (e *RequestEditor) Send(content string) tea.Cmd {
	conn := e.conn
	if conn == nil || !e.Connected() {
		return nil
	}
	content, err := e.vars.Expand(content)
	if err != nil {
		e.appendMessage(core.NewWebSocketError(conn.ID(), err))
		return e.messagesChanged()
	}
	log := e.log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := conn.Send(ctx, []byte(content)); err != nil {
			log.WithError(err).Warn("send failed")
		}
		return nil
	}
}

// Close releases the connection without emitting notifications.
func (e *RequestEditor) Close() {
	e.closeConnection()
}

func (e *RequestEditor) closeConnection() {
	if e.conn == nil {
		return
	}
	e.conn.Close()
	e.conn = nil
}

func (e *RequestEditor) connectionOptions() (interfaces.ConnectionOptions, error) {
	opts := interfaces.ConnectionOptions{}
	if e.definition != nil {
		headers, err := e.vars.ExpandMap(e.definition.Headers)
		if err != nil {
			return opts, err
		}
		opts.Headers = headers
		opts.Subprotocols = e.definition.Subprotocols
		if e.definition.PingInterval > 0 {
			opts.PingInterval = time.Duration(e.definition.PingInterval) * time.Second
		}
	}
	return opts, nil
}

func connect(conn *websocket.Connection) tea.Cmd {
	return func() tea.Msg {
		return connectResultMsg{connectionID: conn.ID(), err: conn.Connect(context.Background())}
	}
}

func listen(conn *websocket.Connection) tea.Cmd {
	id := conn.ID()
	events := conn.Events()
	return func() tea.Msg {
		ev, ok := <-events
		return connectionEventMsg{connectionID: id, event: ev, closed: !ok}
	}
}

func (e *RequestEditor) handleEvent(msg connectionEventMsg) tea.Cmd {
	if e.conn == nil || msg.connectionID != e.conn.ID() {
		return nil
	}

	if msg.closed {
		e.conn = nil
		return tea.Sequence(e.setState(interfaces.ConnectionStateDisconnected)...)
	}

	var cmds []tea.Cmd
	switch msg.event.Kind {
	case interfaces.EventStateChanged:
		cmds = e.setState(msg.event.State)
		if msg.event.State == interfaces.ConnectionStateConnected {
			cmds = append(cmds, e.recordHistory(e.conn.Endpoint()))
		}
	case interfaces.EventMessage, interfaces.EventError:
		if m := websocket.ToMessage(msg.connectionID, msg.event); m != nil {
			e.appendMessage(m)
			cmds = append(cmds, e.messagesChanged())
		}
	}

	cmds = append(cmds, listen(e.conn))
	return tea.Sequence(cmds...)
}

// setState records state and returns the notifications for whichever of
// connecting and connected changed.
func (e *RequestEditor) setState(state interfaces.ConnectionState) []tea.Cmd {
	wasConnecting, wasConnected := e.Connecting(), e.Connected()
	e.state = state

	var cmds []tea.Cmd
	if c := e.Connecting(); c != wasConnecting {
		cmds = append(cmds, tui.Emit(ConnectingChangedMsg{Connecting: c}))
	}
	if c := e.Connected(); c != wasConnected {
		cmds = append(cmds, tui.Emit(ConnectedChangedMsg{Connected: c}))
		if !c {
			e.inputMode = false
		}
	}
	return cmds
}

func (e *RequestEditor) recordHistory(endpoint string) tea.Cmd {
	if e.store == nil {
		return nil
	}
	store := e.store
	var protos []string
	if e.definition != nil {
		protos = e.definition.Subprotocols
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entry, err := store.Record(ctx, endpoint, protos)
		return HistoryRecordedMsg{Entry: entry, Err: err}
	}
}

func (e *RequestEditor) appendMessage(m *core.WebSocketMessage) {
	e.messages = append(e.messages, m)
}

func (e *RequestEditor) messagesChanged() tea.Cmd {
	return tui.Emit(MessagesChangedMsg{Messages: e.messages})
}

// View renders the component.
func (e *RequestEditor) View() string {
	if e.width == 0 {
		return ""
	}

	innerWidth := e.width - 2
	if innerWidth < 1 {
		innerWidth = 1
	}

	lines := []string{
		tui.RenderTitle(e.Title(), innerWidth, e.focused),
		e.renderURLLine(innerWidth),
		e.renderInputLine(innerWidth),
		e.renderHints(innerWidth),
	}
	return tui.RenderBorder(strings.Join(lines, "\n"), e.focused)
}

func (e *RequestEditor) renderURLLine(width int) string {
	status := e.renderStatus()
	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(tui.ColorText)
	label := labelStyle.Render("URL ")

	url := e.url.Render(e.editingURL)
	if url == "" {
		url = tui.Hint("ws://host/path")
	} else {
		avail := width - lipgloss.Width(status) - lipgloss.Width(label) - 2
		url = tui.Truncate(url, avail)
	}
	return fmt.Sprintf("%s%s  %s", label, url, status)
}

func (e *RequestEditor) renderStatus() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Padding(0, 1)
	var text string
	switch e.state {
	case interfaces.ConnectionStateConnected:
		style = style.Background(lipgloss.Color("34")).Bold(true)
		text = "Connected"
	case interfaces.ConnectionStateConnecting:
		style = style.Background(tui.ColorWarn).Foreground(lipgloss.Color("0")).Bold(true)
		text = "Connecting..."
	case interfaces.ConnectionStateDisconnecting:
		style = style.Background(lipgloss.Color("208")).Bold(true)
		text = "Disconnecting..."
	case interfaces.ConnectionStateError:
		style = style.Background(tui.ColorError).Bold(true)
		text = "Error"
	default:
		style = style.Background(tui.ColorBorder)
		text = "Disconnected"
	}
	if e.narrow {
		text = string([]rune(text)[0])
	}
	return style.Render(text)
}

func (e *RequestEditor) renderInputLine(width int) string {
	promptStyle := lipgloss.NewStyle().Foreground(tui.ColorWarn).Bold(true)
	prompt := "> "
	if e.inputMode {
		prompt = ">> "
	}
	text := tui.Truncate(e.input.Render(e.inputMode), width-len(prompt))
	return promptStyle.Render(prompt) + lipgloss.NewStyle().Foreground(tui.ColorText).Render(text)
}

func (e *RequestEditor) renderHints(width int) string {
	var hint string
	switch {
	case e.editingURL:
		hint = "Enter: connect  Esc: done"
	case e.inputMode:
		hint = "Enter: send  Esc: cancel"
	case e.Connected():
		hint = "i: type  d: disconnect  ^R: reconnect  e: edit url"
	default:
		hint = "e: edit url  Enter: connect"
	}
	if e.narrow {
		hint = strings.SplitN(hint, "  ", 2)[0]
	}
	return tui.Hint(tui.Truncate(hint, width))
}

// Title returns the component title.
func (e *RequestEditor) Title() string {
	if e.definition != nil && e.definition.Name != "" {
		return fmt.Sprintf("%s: %s", e.title, e.definition.Name)
	}
	return e.title
}

// Focused returns true if focused.
func (e *RequestEditor) Focused() bool {
	return e.focused
}

// Focus sets the component as focused.
func (e *RequestEditor) Focus() {
	e.focused = true
}

// Blur removes focus and leaves any edit mode.
func (e *RequestEditor) Blur() {
	e.focused = false
	e.editingURL = false
	e.inputMode = false
}

// SetSize sets dimensions.
func (e *RequestEditor) SetSize(width, height int) {
	e.width = width
	e.height = height
}

// Width returns the width.
func (e *RequestEditor) Width() int {
	return e.width
}

// Height returns the height.
func (e *RequestEditor) Height() int {
	return e.height
}

// PreferredHeight is the height the editor renders at.
func (e *RequestEditor) PreferredHeight() int {
	return editorHeight
}

// SetNarrow sets the compact layout hint.
func (e *RequestEditor) SetNarrow(narrow bool) {
	e.narrow = narrow
}

// Narrow returns the layout hint.
func (e *RequestEditor) Narrow() bool {
	return e.narrow
}

// URL returns the URL being edited.
func (e *RequestEditor) URL() string {
	return e.url.String()
}

// SetURL replaces the URL without emitting a notification.
func (e *RequestEditor) SetURL(url string) {
	if url == e.url.String() {
		return
	}
	e.url.Set(url)
}

// SetMessages replaces the message log.
func (e *RequestEditor) SetMessages(messages []*core.WebSocketMessage) {
	e.messages = messages
}

// Messages returns the message log.
func (e *RequestEditor) Messages() []*core.WebSocketMessage {
	return e.messages
}

// State returns the connection state.
func (e *RequestEditor) State() interfaces.ConnectionState {
	return e.state
}

// Connecting reports whether a handshake is in progress.
func (e *RequestEditor) Connecting() bool {
	return e.state == interfaces.ConnectionStateConnecting
}

// Connected reports whether the connection is open.
func (e *RequestEditor) Connected() bool {
	return e.state == interfaces.ConnectionStateConnected
}

// IsEditing reports whether keystrokes go to a text field.
func (e *RequestEditor) IsEditing() bool {
	return e.editingURL || e.inputMode
}

// IsEditingURL reports whether the URL field is active.
func (e *RequestEditor) IsEditingURL() bool {
	return e.editingURL
}

// StartURLEdit activates the URL field.
func (e *RequestEditor) StartURLEdit() {
	e.editingURL = true
	e.inputMode = false
}

// IsInputMode reports whether the message field is active.
func (e *RequestEditor) IsInputMode() bool {
	return e.inputMode
}

// InputText returns the pending message.
func (e *RequestEditor) InputText() string {
	return e.input.String()
}

// SetInputText sets the pending message.
func (e *RequestEditor) SetInputText(text string) {
	e.input.Set(text)
}
