// Package tui holds the pieces shared by the panel's terminal components.
package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Component is the interface for all TUI components.
type Component interface {
	// Init initializes the component.
	Init() tea.Cmd

	// Update handles messages and returns the updated component.
	Update(msg tea.Msg) (Component, tea.Cmd)

	// View renders the component.
	View() string

	// Title returns the component title.
	Title() string

	// Focused returns true if the component is focused.
	Focused() bool

	// Focus sets the component as focused.
	Focus()

	// Blur removes focus from the component.
	Blur()

	// SetSize sets the component dimensions.
	SetSize(width, height int)

	// Width returns the component width.
	Width() int

	// Height returns the component height.
	Height() int
}

// Narrowable is implemented by components that adapt to a narrow layout.
type Narrowable interface {
	SetNarrow(narrow bool)
	Narrow() bool
}

// FocusMsg is sent when a component should gain focus.
type FocusMsg struct{}

// BlurMsg is sent when a component should lose focus.
type BlurMsg struct{}

// Colors used across components.
const (
	ColorAccent   = lipgloss.Color("62")
	ColorBorder   = lipgloss.Color("240")
	ColorTitle    = lipgloss.Color("229")
	ColorText     = lipgloss.Color("252")
	ColorMuted    = lipgloss.Color("243")
	ColorSent     = lipgloss.Color("33")
	ColorReceived = lipgloss.Color("34")
	ColorError    = lipgloss.Color("160")
	ColorWarn     = lipgloss.Color("214")
)

// RenderTitle renders a title bar.
func RenderTitle(title string, width int, focused bool) string {
	style := lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Bold(true)

	if focused {
		style = style.Foreground(ColorTitle).Background(ColorAccent)
	} else {
		style = style.Foreground(ColorText).Background(lipgloss.Color("238"))
	}

	return style.Render(title)
}

// RenderBorder wraps content in a rounded border.
func RenderBorder(content string, focused bool) string {
	style := lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder())
	if focused {
		style = style.BorderForeground(ColorAccent)
	} else {
		style = style.BorderForeground(ColorBorder)
	}
	return style.Render(content)
}

// Hint renders muted italic help text.
func Hint(s string) string {
	return lipgloss.NewStyle().Foreground(ColorMuted).Italic(true).Render(s)
}

// Truncate shortens s to width runes, marking the cut with "...".
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

// PadRight pads or cuts s to exactly width runes.
func PadRight(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}

// FitLines pads or cuts lines to exactly height entries.
func FitLines(lines []string, height int) []string {
	if height < 0 {
		height = 0
	}
	if len(lines) > height {
		return lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lines
}

// Emit wraps msg in a command.
func Emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return msg
	}
}
