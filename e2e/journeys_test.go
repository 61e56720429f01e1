package e2e

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/wspanel/e2e/harness"
	"github.com/artpar/wspanel/e2e/testserver"
	"github.com/artpar/wspanel/internal/cli"
	"github.com/artpar/wspanel/internal/cookies"
	"github.com/artpar/wspanel/internal/core"
	"github.com/artpar/wspanel/internal/history"
	"github.com/artpar/wspanel/internal/tui/views"
)

func connected(v *views.WebSocketView) bool {
	return v.Editor().Connected()
}

func messageCount(n int) func(*views.WebSocketView) bool {
	return func(v *views.WebSocketView) bool {
		return len(v.MessageView().Messages()) >= n
	}
}

func historyCount(n int) func(*views.WebSocketView) bool {
	return func(v *views.WebSocketView) bool {
		return len(v.HistoryList().Entries()) >= n
	}
}

func decodeHistory(t *testing.T, result *harness.CLIResult) []history.Entry {
	t.Helper()
	var entries []history.Entry
	require.NoError(t, json.Unmarshal([]byte(result.Stdout), &entries), result.Stdout)
	return entries
}

// A user types a URL, connects, exchanges a message and finds the URL in
// the history afterwards.
func TestJourney_ConnectSendAndRemember(t *testing.T) {
	h := harness.New(t, harness.Config{
		Routes: map[string]testserver.Route{"/echo": {Handler: testserver.Echo()}},
	})
	url := h.URL("/echo")

	session := h.TUI().Start(t, cli.RootOptions{}, "")
	session.WaitForOutput("No history yet")

	t.Log("Step 1: edit the URL and connect")
	session.SendKey("e").Type(url).SendKey("enter")
	session.WaitFor("connection", connected)
	session.WaitForOutput("Connected")

	t.Log("Step 2: send a message")
	session.SendKey("i").Type("hello world").SendKey("enter")
	session.WaitFor("echo", messageCount(2))

	msgs := session.View().MessageView().Messages()
	assert.Equal(t, core.DirectionSent, msgs[0].Direction)
	assert.Equal(t, core.DirectionReceived, msgs[1].Direction)
	assert.Equal(t, "hello world", msgs[1].Content)
	assert.Contains(t, session.Output(), "hello world")

	t.Log("Step 3: the URL was recorded")
	session.WaitFor("history entry", historyCount(1))
	session.Quit()

	result, err := h.CLI().HistoryJSON()
	require.NoError(t, err)
	entries := decodeHistory(t, result)
	require.Len(t, entries, 1)
	assert.Equal(t, url, entries[0].URL)
	assert.Equal(t, 1, entries[0].UseCount)
}

// A second run shows the remembered URL; selecting it reconnects.
func TestJourney_ReconnectFromHistory(t *testing.T) {
	h := harness.New(t, harness.Config{
		Routes: map[string]testserver.Route{"/echo": {Handler: testserver.Echo()}},
	})
	url := h.URL("/echo")

	first := h.TUI().Start(t, cli.RootOptions{}, url)
	first.WaitFor("connection", connected)
	first.WaitFor("history entry", historyCount(1))
	first.Quit()

	second := h.TUI().Start(t, cli.RootOptions{}, "")
	second.WaitFor("history load", historyCount(1))
	second.WaitForOutput(url)
	assert.False(t, second.View().Editor().Connected())

	t.Log("select the entry from the history pane")
	second.SendKey("tab")
	require.Equal(t, views.FocusPane, second.View().FocusedChild())
	second.SendKey("enter")
	second.WaitFor("reconnection", connected)

	assert.Equal(t, url, second.View().Editor().URL())
	assert.Equal(t, views.FocusEditor, second.View().FocusedChild())
	assert.Equal(t, 2, h.Server().HandshakeCount())

	second.WaitFor("use count", func(v *views.WebSocketView) bool {
		entries := v.HistoryList().Entries()
		return len(entries) == 1 && entries[0].UseCount == 2
	})
}

// A definition file supplies a templated endpoint, handshake headers and a
// filter that hides sent messages.
func TestJourney_DefinitionWithVariablesAndFilter(t *testing.T) {
	h := harness.New(t, harness.Config{
		Routes: map[string]testserver.Route{"/greet": {Handler: testserver.Greet("welcome")}},
	})
	t.Setenv("E2E_TOKEN", "tok")

	def := strings.Join([]string{
		"name: greeter",
		"endpoint: ws://{{addr}}/greet",
		"variables:",
		"  addr: " + h.Server().Addr(),
		"headers:",
		"  Authorization: Bearer {{$env.E2E_TOKEN}}",
		`filterScript: message.direction === "received"`,
	}, "\n")
	path := filepath.Join(t.TempDir(), "greeter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(def), 0644))

	session := h.TUI().Start(t, cli.RootOptions{Definition: path}, "")
	assert.Equal(t, "ws://{{addr}}/greet", session.View().Editor().URL())

	session.SendKey("c")
	session.WaitFor("connection", connected)
	session.WaitFor("greeting", messageCount(1))

	hs := h.Server().LastHandshake()
	require.NotNil(t, hs)
	assert.Equal(t, "Bearer tok", hs.Headers.Get("Authorization"))

	session.SendKey("i").Type("ping").SendKey("enter")
	session.WaitFor("echo", messageCount(3))

	visible := session.View().MessageView().VisibleMessages()
	require.Len(t, visible, 2)
	for _, m := range visible {
		assert.Equal(t, core.DirectionReceived, m.Direction)
	}
	assert.Equal(t, "welcome", visible[0].Content)
	assert.Equal(t, "ping", visible[1].Content)
}

// A cookie set by one handshake is replayed by a later run until cleared.
func TestJourney_CookiesPersistAcrossRuns(t *testing.T) {
	h := harness.New(t, harness.Config{
		Routes: map[string]testserver.Route{
			"/login": {
				Handler:    testserver.Echo(),
				SetCookies: []*http.Cookie{{Name: "sid", Value: "42", MaxAge: 3600}},
			},
			"/private": {Handler: testserver.Echo(), RequireCookie: "sid"},
		},
	})
	runner := h.CLI()
	wait := 200 * time.Millisecond

	t.Log("Step 1: the private endpoint rejects anonymous handshakes")
	_, err := runner.Send(h.URL("/private"), wait, "hi")
	require.Error(t, err)

	t.Log("Step 2: logging in stores the cookie")
	_, err = runner.Send(h.URL("/login"), wait, "hi")
	require.NoError(t, err)

	result, err := runner.CookiesJSON()
	require.NoError(t, err)
	var stored []cookies.Cookie
	require.NoError(t, json.Unmarshal([]byte(result.Stdout), &stored), result.Stdout)
	require.Len(t, stored, 1)
	assert.Equal(t, "sid", stored[0].Name)
	assert.Equal(t, "127.0.0.1", stored[0].Domain)
	assert.False(t, stored[0].Session())

	t.Log("Step 3: a new run replays it")
	result, err = runner.Send(h.URL("/private"), wait, "secret")
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, "← secret")

	hs := h.Server().LastHandshake()
	require.NotNil(t, hs)
	require.Len(t, hs.Cookies, 1)
	assert.Equal(t, "42", hs.Cookies[0].Value)

	t.Log("Step 4: clearing forgets it")
	_, err = runner.Run("cookies", "clear")
	require.NoError(t, err)
	_, err = runner.Send(h.URL("/private"), wait, "hi")
	require.Error(t, err)
}

// Sending through the CLI does not touch the URL history.
func TestJourney_SendLeavesHistoryAlone(t *testing.T) {
	h := harness.New(t, harness.Config{
		Routes: map[string]testserver.Route{"/echo": {Handler: testserver.Echo()}},
	})

	result, err := h.CLI().SendWithHeaders(h.URL("/echo"), map[string]string{"X-Trace": "abc"}, "one", "two")
	require.NoError(t, err)
	assert.Equal(t, "abc", h.Server().LastHandshake().Headers.Get("X-Trace"))

	lines := strings.Split(strings.TrimSpace(result.Stdout), "\n")
	require.Len(t, lines, 4)

	result, err = h.CLI().HistoryJSON()
	require.NoError(t, err)
	assert.Empty(t, decodeHistory(t, result))
}
