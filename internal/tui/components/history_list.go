package components

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/wspanel/internal/history"
	"github.com/artpar/wspanel/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

// DefaultHistoryLimit is the number of entries loaded when no limit is set.
const DefaultHistoryLimit = 100

// HistoryList shows previously used URLs, most recent first.
type HistoryList struct {
	title   string
	focused bool
	width   int
	height  int
	narrow  bool

	store   history.Store
	limit   int
	entries []history.Entry
	loading bool
	err     error
	log     *logrus.Entry

	cursor    int
	offset    int
	search    textField
	searching bool
	gPressed  bool
}

// NewHistoryList creates a list backed by store. A nil store shows an
// empty list.
func NewHistoryList(store history.Store) *HistoryList {
	return &HistoryList{
		title: "History",
		store: store,
		limit: DefaultHistoryLimit,
		log:   logrus.WithField("component", "history_list"),
	}
}

// SetLimit sets how many entries are loaded.
func (l *HistoryList) SetLimit(limit int) {
	if limit > 0 {
		l.limit = limit
	}
}

// Init loads the entries.
func (l *HistoryList) Init() tea.Cmd {
	return l.Reload()
}

// Reload queries the store with the current search.
func (l *HistoryList) Reload() tea.Cmd {
	if l.store == nil {
		return nil
	}
	l.loading = true
	store := l.store
	opts := history.QueryOptions{Search: l.search.String(), Limit: l.limit}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entries, err := store.List(ctx, opts)
		return historyLoadedMsg{search: opts.Search, entries: entries, err: err}
	}
}

func (l *HistoryList) delete(id string) tea.Cmd {
	store := l.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return historyDeletedMsg{id: id, err: store.Delete(ctx, id)}
	}
}

// Update handles messages.
func (l *HistoryList) Update(msg tea.Msg) (tui.Component, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		l.width = msg.Width
		l.height = msg.Height

	case tui.FocusMsg:
		l.focused = true

	case tui.BlurMsg:
		l.Blur()

	case historyLoadedMsg:
		if msg.search != l.search.String() {
			// A newer query is in flight.
			return l, nil
		}
		l.loading = false
		l.err = msg.err
		if msg.err != nil {
			l.log.WithError(msg.err).Warn("failed to load history")
			return l, nil
		}
		l.entries = msg.entries
		l.clamp()

	case historyDeletedMsg:
		if msg.err != nil {
			l.err = msg.err
			l.log.WithError(msg.err).WithField("id", msg.id).Warn("failed to delete history entry")
			return l, nil
		}
		return l, l.Reload()

	case HistoryRecordedMsg:
		if msg.Err == nil {
			return l, l.Reload()
		}

	case tea.KeyMsg:
		if l.focused {
			return l, l.handleKey(msg)
		}
	}
	return l, nil
}

func (l *HistoryList) handleKey(msg tea.KeyMsg) tea.Cmd {
	if l.searching {
		return l.handleSearchKey(msg)
	}

	switch msg.Type {
	case tea.KeyUp:
		l.move(-1)
	case tea.KeyDown:
		l.move(1)
	case tea.KeyEnter:
		if e := l.Selected(); e != nil {
			return tui.Emit(URLSelectedMsg{URL: e.URL})
		}
	case tea.KeyEsc:
		if l.search.String() != "" {
			l.search.Clear()
			return l.Reload()
		}
	case tea.KeyRunes:
		key := string(msg.Runes)
		if key != "g" {
			l.gPressed = false
		}
		switch key {
		case "j":
			l.move(1)
		case "k":
			l.move(-1)
		case "G":
			l.cursor = len(l.entries) - 1
			l.clamp()
		case "g":
			if l.gPressed {
				l.cursor = 0
				l.clamp()
				l.gPressed = false
			} else {
				l.gPressed = true
			}
		case "/":
			l.searching = true
		case "d":
			if e := l.Selected(); e != nil && l.store != nil {
				return l.delete(e.ID)
			}
		case "r":
			return l.Reload()
		}
	}
	return nil
}

func (l *HistoryList) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		l.searching = false
		if l.search.String() != "" {
			l.search.Clear()
			return l.Reload()
		}
		return nil
	case tea.KeyEnter:
		l.searching = false
		return nil
	}

	if _, changed := l.search.HandleKey(msg); changed {
		l.cursor, l.offset = 0, 0
		return l.Reload()
	}
	return nil
}

func (l *HistoryList) move(delta int) {
	l.cursor += delta
	l.clamp()
}

func (l *HistoryList) clamp() {
	if l.cursor >= len(l.entries) {
		l.cursor = len(l.entries) - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
	h := l.listHeight()
	if h < 1 {
		h = 1
	}
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+h {
		l.offset = l.cursor - h + 1
	}
}

func (l *HistoryList) listHeight() int {
	// Border, title and footer.
	return l.height - 4
}

// Selected returns the entry under the cursor.
func (l *HistoryList) Selected() *history.Entry {
	if l.cursor < 0 || l.cursor >= len(l.entries) {
		return nil
	}
	return &l.entries[l.cursor]
}

// Entries returns the loaded entries.
func (l *HistoryList) Entries() []history.Entry {
	return l.entries
}

// Cursor returns the selected index.
func (l *HistoryList) Cursor() int {
	return l.cursor
}

// Search returns the search text.
func (l *HistoryList) Search() string {
	return l.search.String()
}

// IsSearching reports whether keystrokes go to the search field.
func (l *HistoryList) IsSearching() bool {
	return l.searching
}

// Err returns the last store error.
func (l *HistoryList) Err() error {
	return l.err
}

// View renders the component.
func (l *HistoryList) View() string {
	if l.width == 0 || l.height == 0 {
		return ""
	}

	innerWidth := l.width - 2
	if innerWidth < 1 {
		innerWidth = 1
	}

	lines := []string{tui.RenderTitle(l.Title(), innerWidth, l.focused)}
	lines = append(lines, tui.FitLines(l.renderList(innerWidth), l.listHeight())...)
	lines = append(lines, l.renderFooter(innerWidth))
	return tui.RenderBorder(strings.Join(lines, "\n"), l.focused)
}

func (l *HistoryList) renderList(width int) []string {
	if l.err != nil {
		style := lipgloss.NewStyle().Foreground(tui.ColorError)
		return []string{"", style.Render(tui.Truncate("Error: "+l.err.Error(), width))}
	}
	if len(l.entries) == 0 {
		if l.loading {
			return []string{"", tui.Hint("Loading...")}
		}
		if l.search.String() != "" {
			return []string{"", tui.Hint("No matches")}
		}
		return []string{"", tui.Hint("No history yet")}
	}

	urlStyle := lipgloss.NewStyle().Foreground(tui.ColorText)
	metaStyle := lipgloss.NewStyle().Foreground(tui.ColorMuted)
	selectedStyle := lipgloss.NewStyle().Background(lipgloss.Color("237")).Bold(true)

	var lines []string
	for i := l.offset; i < len(l.entries); i++ {
		e := l.entries[i]
		meta := ""
		if !l.narrow {
			meta = "  " + metaStyle.Render(fmt.Sprintf("%dx  %s", e.UseCount, relativeTime(e.LastUsed)))
		}
		avail := width - lipgloss.Width(meta) - 2
		line := "  " + urlStyle.Render(tui.Truncate(e.URL, avail)) + meta
		if i == l.cursor {
			if l.focused {
				line = selectedStyle.Render("▸ " + tui.Truncate(e.URL, avail) + meta)
			} else {
				line = "▸ " + line[2:]
			}
		}
		lines = append(lines, line)
	}
	return lines
}

func (l *HistoryList) renderFooter(width int) string {
	if l.searching || l.search.String() != "" {
		prompt := lipgloss.NewStyle().Foreground(tui.ColorWarn).Bold(true).Render("/")
		return prompt + tui.Truncate(l.search.Render(l.searching), width-1)
	}
	hint := "Enter: connect  /: search  d: delete"
	if l.narrow {
		hint = "Enter: connect"
	}
	return tui.Hint(tui.Truncate(hint, width))
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("2006-01-02")
	}
}

// Title returns the component title.
func (l *HistoryList) Title() string {
	if len(l.entries) > 0 {
		return fmt.Sprintf("%s (%d)", l.title, len(l.entries))
	}
	return l.title
}

// Focused returns true if focused.
func (l *HistoryList) Focused() bool {
	return l.focused
}

// Focus sets the component as focused.
func (l *HistoryList) Focus() {
	l.focused = true
}

// Blur removes focus and leaves search mode.
func (l *HistoryList) Blur() {
	l.focused = false
	l.searching = false
	l.gPressed = false
}

// SetSize sets dimensions.
func (l *HistoryList) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.clamp()
}

// Width returns the width.
func (l *HistoryList) Width() int {
	return l.width
}

// Height returns the height.
func (l *HistoryList) Height() int {
	return l.height
}

// SetNarrow sets the compact layout hint.
func (l *HistoryList) SetNarrow(narrow bool) {
	l.narrow = narrow
}

// Narrow returns the layout hint.
func (l *HistoryList) Narrow() bool {
	return l.narrow
}
