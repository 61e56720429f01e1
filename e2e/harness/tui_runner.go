package harness

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/artpar/wspanel/internal/app"
	"github.com/artpar/wspanel/internal/cli"
	"github.com/artpar/wspanel/internal/config"
	"github.com/artpar/wspanel/internal/tui/views"
)

// TUIRunner provides TUI testing capabilities.
type TUIRunner struct {
	harness *E2EHarness
}

// TUISession drives the panel the way a bubbletea program does: commands
// run on their own goroutines and their messages are delivered back to
// the panel on the test goroutine.
type TUISession struct {
	runner *TUIRunner
	t      *testing.T
	app    *app.App
	view   *views.WebSocketView
	msgs   chan tea.Msg
	done   chan struct{}
}

// Start opens the application from the harness data directory and builds
// the panel as the root command does. A non-empty url is connected on
// start.
func (r *TUIRunner) Start(t *testing.T, opts cli.RootOptions, url string) *TUISession {
	t.Helper()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	application := app.New(app.WithConfig(cfg))
	if err := application.Open(context.Background()); err != nil {
		t.Fatalf("failed to open application: %v", err)
	}

	view, err := cli.BuildView(application, &opts, url)
	if err != nil {
		application.Close()
		t.Fatalf("failed to build view: %v", err)
	}

	s := &TUISession{
		runner: r,
		t:      t,
		app:    application,
		view:   view,
		msgs:   make(chan tea.Msg, 64),
		done:   make(chan struct{}),
	}
	t.Cleanup(s.Quit)

	s.run(view.Init())
	s.Send(tea.WindowSizeMsg{Width: 120, Height: 40})
	return s
}

// Send delivers msg to the panel and runs the returned command.
func (s *TUISession) Send(msg tea.Msg) *TUISession {
	_, cmd := s.view.Update(msg)
	s.run(cmd)
	return s
}

// SendKey sends a key press.
func (s *TUISession) SendKey(key string) *TUISession {
	return s.Send(parseKeyMsg(key))
}

// SendKeys sends multiple key presses.
func (s *TUISession) SendKeys(keys ...string) *TUISession {
	for _, key := range keys {
		s.SendKey(key)
	}
	return s
}

// Type sends text one key at a time.
func (s *TUISession) Type(text string) *TUISession {
	for _, r := range text {
		if r == ' ' {
			s.Send(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{r}})
			continue
		}
		s.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return s
}

// WaitFor delivers pending messages until cond holds, failing the test
// after the harness timeout.
func (s *TUISession) WaitFor(what string, cond func(*views.WebSocketView) bool) *TUISession {
	s.t.Helper()

	timeout := time.NewTimer(s.runner.harness.timeout)
	defer timeout.Stop()

	for !cond(s.view) {
		select {
		case msg := <-s.msgs:
			s.Send(msg)
		case <-timeout.C:
			s.t.Fatalf("timeout after %s waiting for %s; screen:\n%s",
				s.runner.harness.timeout, what, s.Output())
		}
	}
	return s
}

// WaitForOutput waits for text to appear on screen.
func (s *TUISession) WaitForOutput(text string) *TUISession {
	s.t.Helper()
	return s.WaitFor("output "+text, func(v *views.WebSocketView) bool {
		return strings.Contains(v.View(), text)
	})
}

// Output returns the current screen.
func (s *TUISession) Output() string {
	return s.view.View()
}

// View returns the panel.
func (s *TUISession) View() *views.WebSocketView {
	return s.view
}

// App returns the application backing the panel.
func (s *TUISession) App() *app.App {
	return s.app
}

// Quit closes the panel and the application. Messages still in flight are
// dropped.
func (s *TUISession) Quit() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
	s.view.Close()
	s.app.Close()
}

// run executes cmd the way the bubbletea runtime does: batch members run
// concurrently, sequence members run in order.
func (s *TUISession) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go s.exec(cmd)
}

func (s *TUISession) exec(cmd tea.Cmd) {
	msg := cmd()
	switch msg := msg.(type) {
	case nil:
		return
	case tea.BatchMsg:
		for _, c := range msg {
			s.run(c)
		}
		return
	}

	// tea.Sequence returns an unexported slice of commands.
	if rv := reflect.ValueOf(msg); rv.Kind() == reflect.Slice {
		for i := 0; i < rv.Len(); i++ {
			if c, ok := rv.Index(i).Interface().(tea.Cmd); ok && c != nil {
				s.exec(c)
			}
		}
		return
	}

	select {
	case s.msgs <- msg:
	case <-s.done:
	}
}

// parseKeyMsg converts key string to tea.KeyMsg.
func parseKeyMsg(key string) tea.KeyMsg {
	switch strings.ToLower(key) {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "esc", "escape":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "ctrl+u":
		return tea.KeyMsg{Type: tea.KeyCtrlU}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}
