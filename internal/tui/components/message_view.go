package components

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/artpar/wspanel/internal/core"
	"github.com/artpar/wspanel/internal/script"
	"github.com/artpar/wspanel/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// MessageView is the data view: a scrollable log of sent and received
// frames.
type MessageView struct {
	title    string
	focused  bool
	width    int
	height   int
	narrow   bool
	gPressed bool

	messages []*core.WebSocketMessage
	visible  []*core.WebSocketMessage

	filter        *script.Filter
	filterEnabled bool
	filterErr     error
	verdicts      map[*core.WebSocketMessage]verdict

	cursor     int
	offset     int
	autoScroll bool
	expanded   bool
}

// verdict is the cached filter result of one message.
type verdict struct {
	keep bool
	err  error
}

// NewMessageView creates an empty data view.
func NewMessageView() *MessageView {
	return &MessageView{
		title:      "Messages",
		autoScroll: true,
	}
}

// Init initializes the component.
func (v *MessageView) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (v *MessageView) Update(msg tea.Msg) (tui.Component, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height

	case tui.FocusMsg:
		v.focused = true

	case tui.BlurMsg:
		v.focused = false

	case tea.KeyMsg:
		if v.focused {
			return v, v.handleKey(msg)
		}
	}
	return v, nil
}

func (v *MessageView) handleKey(msg tea.KeyMsg) tea.Cmd {
	page := v.listHeight()
	if page < 1 {
		page = 1
	}

	switch msg.Type {
	case tea.KeyUp:
		v.move(-1)
	case tea.KeyDown:
		v.move(1)
	case tea.KeyPgUp, tea.KeyCtrlU:
		v.move(-page)
	case tea.KeyPgDown, tea.KeyCtrlD:
		v.move(page)
	case tea.KeyEnter:
		v.expanded = !v.expanded
	case tea.KeyRunes:
		key := string(msg.Runes)
		if key != "g" {
			v.gPressed = false
		}
		switch key {
		case "j":
			v.move(1)
		case "k":
			v.move(-1)
		case "G":
			v.cursor = len(v.visible) - 1
			v.autoScroll = true
			v.clamp()
		case "g":
			if v.gPressed {
				v.cursor = 0
				v.autoScroll = false
				v.clamp()
				v.gPressed = false
			} else {
				v.gPressed = true
			}
		case "x":
			return tui.Emit(MessagesClearedMsg{})
		case "y":
			if m := v.Selected(); m != nil {
				content := m.Content
				if m.Error != "" {
					content = m.Error
				}
				return tui.Emit(CopyMsg{Content: content})
			}
		case "f":
			if !v.filter.Empty() {
				v.filterEnabled = !v.filterEnabled
				v.refilter()
			}
		}
	}
	return nil
}

func (v *MessageView) move(delta int) {
	v.cursor += delta
	v.clamp()
	v.autoScroll = v.cursor >= len(v.visible)-1
}

func (v *MessageView) clamp() {
	if v.cursor >= len(v.visible) {
		v.cursor = len(v.visible) - 1
	}
	if v.cursor < 0 {
		v.cursor = 0
	}

	h := v.listHeight()
	if h < 1 {
		h = 1
	}
	if v.cursor < v.offset {
		v.offset = v.cursor
	}
	if v.cursor >= v.offset+h {
		v.offset = v.cursor - h + 1
	}
	if v.offset < 0 {
		v.offset = 0
	}
}

// refilter rebuilds the visible list. Messages are immutable, so each one
// is evaluated once per filter and the verdict reused on later passes.
func (v *MessageView) refilter() {
	v.filterErr = nil
	if v.filterEnabled && !v.filter.Empty() {
		verdicts := make(map[*core.WebSocketMessage]verdict, len(v.messages))
		visible := make([]*core.WebSocketMessage, 0, len(v.messages))
		for _, m := range v.messages {
			vd, ok := v.verdicts[m]
			if !ok {
				vd.keep, vd.err = v.filter.Keep(m)
			}
			verdicts[m] = vd
			if vd.err != nil && v.filterErr == nil {
				v.filterErr = vd.err
			}
			if vd.keep {
				visible = append(visible, m)
			}
		}
		v.verdicts = verdicts
		v.visible = visible
	} else {
		v.visible = v.messages
	}

	if v.autoScroll {
		v.cursor = len(v.visible) - 1
	}
	v.clamp()
}

// SetMessages replaces the log.
func (v *MessageView) SetMessages(messages []*core.WebSocketMessage) {
	v.messages = messages
	if len(messages) == 0 {
		v.cursor, v.offset = 0, 0
		v.autoScroll = true
		v.expanded = false
	}
	v.refilter()
}

// Messages returns every message, filtered or not.
func (v *MessageView) Messages() []*core.WebSocketMessage {
	return v.messages
}

// VisibleMessages returns the messages that pass the filter.
func (v *MessageView) VisibleMessages() []*core.WebSocketMessage {
	return v.visible
}

// SetFilter installs a message filter and enables it.
func (v *MessageView) SetFilter(f *script.Filter) {
	v.filter = f
	v.filterEnabled = !f.Empty()
	v.verdicts = nil
	v.refilter()
}

// FilterEnabled reports whether the filter is applied.
func (v *MessageView) FilterEnabled() bool {
	return v.filterEnabled
}

// FilterError returns the first error from the last filter pass.
func (v *MessageView) FilterError() error {
	return v.filterErr
}

// Selected returns the message under the cursor.
func (v *MessageView) Selected() *core.WebSocketMessage {
	if v.cursor < 0 || v.cursor >= len(v.visible) {
		return nil
	}
	return v.visible[v.cursor]
}

// Cursor returns the selected index into VisibleMessages.
func (v *MessageView) Cursor() int {
	return v.cursor
}

// AutoScroll reports whether the view follows new messages.
func (v *MessageView) AutoScroll() bool {
	return v.autoScroll
}

// GPressed returns true if waiting for the second 'g'.
func (v *MessageView) GPressed() bool {
	return v.gPressed
}

// Expanded reports whether the selected message is shown in full.
func (v *MessageView) Expanded() bool {
	return v.expanded
}

func (v *MessageView) listHeight() int {
	// Border, title and footer.
	return v.height - 4
}

// View renders the component.
func (v *MessageView) View() string {
	if v.width == 0 || v.height == 0 {
		return ""
	}

	innerWidth := v.width - 2
	if innerWidth < 1 {
		innerWidth = 1
	}

	lines := []string{tui.RenderTitle(v.Title(), innerWidth, v.focused)}
	lines = append(lines, tui.FitLines(v.renderList(innerWidth), v.listHeight())...)
	lines = append(lines, v.renderFooter(innerWidth))
	return tui.RenderBorder(strings.Join(lines, "\n"), v.focused)
}

func (v *MessageView) renderList(width int) []string {
	if len(v.visible) == 0 {
		if len(v.messages) > 0 {
			return []string{"", tui.Hint("All messages hidden by filter (f: toggle)")}
		}
		return []string{"", tui.Hint("No messages yet")}
	}

	sentStyle := lipgloss.NewStyle().Foreground(tui.ColorSent)
	recvStyle := lipgloss.NewStyle().Foreground(tui.ColorReceived)
	errorStyle := lipgloss.NewStyle().Foreground(tui.ColorError)
	timeStyle := lipgloss.NewStyle().Foreground(tui.ColorMuted)
	selectedStyle := lipgloss.NewStyle().Background(lipgloss.Color("237"))

	var lines []string
	for i := v.offset; i < len(v.visible); i++ {
		msg := v.visible[i]

		prefix := "← "
		style := recvStyle
		if msg.IsSent() {
			prefix = "→ "
			style = sentStyle
		}
		content := msg.Content
		if msg.Error != "" {
			prefix = "✗ "
			style = errorStyle
			content = msg.Error
		}
		if msg.Type == "binary" {
			content = "[bin] " + content
		}
		content = strings.ReplaceAll(content, "\n", " ")

		stamp := ""
		if !v.narrow {
			stamp = "  " + timeStyle.Render(msg.Timestamp.Format("15:04:05"))
		}
		avail := width - lipgloss.Width(prefix) - lipgloss.Width(stamp)
		line := prefix + style.Render(tui.Truncate(content, avail)) + stamp
		if i == v.cursor && v.focused {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)

		if i == v.cursor && v.expanded {
			body, isJSON := prettyContent(msg)
			for _, l := range strings.Split(body, "\n") {
				l = tui.Truncate(l, width-2)
				if isJSON {
					l = highlightJSONLine(l, defaultJSONStyles)
				}
				lines = append(lines, "  "+l)
			}
		}
	}
	return lines
}

func (v *MessageView) renderFooter(width int) string {
	if v.filterErr != nil {
		style := lipgloss.NewStyle().Foreground(tui.ColorError)
		return style.Render(tui.Truncate("filter: "+v.filterErr.Error(), width))
	}
	hint := "j/k: move  Enter: expand  y: copy  x: clear"
	if !v.filter.Empty() {
		hint += "  f: filter"
	}
	if v.narrow {
		hint = "y: copy  x: clear"
	}
	return tui.Hint(tui.Truncate(hint, width))
}

// prettyContent indents JSON payloads and returns anything else as is.
func prettyContent(msg *core.WebSocketMessage) (string, bool) {
	if msg.Error != "" {
		return msg.Error, false
	}
	var buf bytes.Buffer
	if json.Valid([]byte(msg.Content)) && json.Indent(&buf, []byte(msg.Content), "", "  ") == nil {
		return buf.String(), true
	}
	return msg.Content, false
}

// Title returns the component title.
func (v *MessageView) Title() string {
	switch {
	case len(v.messages) == 0:
		return v.title
	case len(v.visible) != len(v.messages):
		return fmt.Sprintf("%s (%d/%d)", v.title, len(v.visible), len(v.messages))
	default:
		return fmt.Sprintf("%s (%d)", v.title, len(v.messages))
	}
}

// Focused returns true if focused.
func (v *MessageView) Focused() bool {
	return v.focused
}

// Focus sets the component as focused.
func (v *MessageView) Focus() {
	v.focused = true
}

// Blur removes focus.
func (v *MessageView) Blur() {
	v.focused = false
	v.gPressed = false
}

// SetSize sets dimensions.
func (v *MessageView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.clamp()
}

// Width returns the width.
func (v *MessageView) Width() int {
	return v.width
}

// Height returns the height.
func (v *MessageView) Height() int {
	return v.height
}

// SetNarrow sets the compact layout hint.
func (v *MessageView) SetNarrow(narrow bool) {
	v.narrow = narrow
}

// Narrow returns the layout hint.
func (v *MessageView) Narrow() bool {
	return v.narrow
}
