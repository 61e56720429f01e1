package components

import (
	tea "github.com/charmbracelet/bubbletea"
)

// textField is a single-line rune buffer with a cursor.
type textField struct {
	value  []rune
	cursor int
}

func (f *textField) String() string {
	return string(f.value)
}

func (f *textField) Set(s string) {
	f.value = []rune(s)
	f.cursor = len(f.value)
}

func (f *textField) Clear() {
	f.value = nil
	f.cursor = 0
}

func (f *textField) Cursor() int {
	return f.cursor
}

// HandleKey applies an editing key. It reports whether the key was
// consumed and whether the value changed.
func (f *textField) HandleKey(msg tea.KeyMsg) (handled, changed bool) {
	switch msg.Type {
	case tea.KeyRunes, tea.KeySpace:
		runes := msg.Runes
		if msg.Type == tea.KeySpace {
			runes = []rune{' '}
		}
		next := make([]rune, 0, len(f.value)+len(runes))
		next = append(next, f.value[:f.cursor]...)
		next = append(next, runes...)
		next = append(next, f.value[f.cursor:]...)
		f.value = next
		f.cursor += len(runes)
		return true, true

	case tea.KeyBackspace:
		if f.cursor == 0 {
			return true, false
		}
		f.value = append(f.value[:f.cursor-1], f.value[f.cursor:]...)
		f.cursor--
		return true, true

	case tea.KeyDelete:
		if f.cursor >= len(f.value) {
			return true, false
		}
		f.value = append(f.value[:f.cursor], f.value[f.cursor+1:]...)
		return true, true

	case tea.KeyLeft:
		if f.cursor > 0 {
			f.cursor--
		}
		return true, false

	case tea.KeyRight:
		if f.cursor < len(f.value) {
			f.cursor++
		}
		return true, false

	case tea.KeyHome, tea.KeyCtrlA:
		f.cursor = 0
		return true, false

	case tea.KeyEnd, tea.KeyCtrlE:
		f.cursor = len(f.value)
		return true, false

	case tea.KeyCtrlU:
		changed := len(f.value) > 0
		f.Clear()
		return true, changed
	}
	return false, false
}

// Render returns the value with a block cursor when active.
func (f *textField) Render(active bool) string {
	if !active {
		return string(f.value)
	}
	if f.cursor >= len(f.value) {
		return string(f.value) + "█"
	}
	return string(f.value[:f.cursor]) + "█" + string(f.value[f.cursor:])
}
