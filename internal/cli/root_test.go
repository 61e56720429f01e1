package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/wspanel/internal/app"
	"github.com/artpar/wspanel/internal/config"
	"github.com/artpar/wspanel/internal/history/sqlite"
	"github.com/artpar/wspanel/internal/tui/views"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points configuration at a fresh data directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("WSPANEL_CONFIG", "")
	t.Setenv("WSPANEL_DATA_DIR", dir)
	return dir
}

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	store, err := sqlite.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Config{DataDir: t.TempDir()}
	cfg.UI.NarrowWidth = 90
	cfg.History.Limit = 10
	application := app.New(app.WithConfig(cfg), app.WithHistoryStore(store))
	t.Cleanup(func() { application.Close() })
	return application
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRootCommand(t *testing.T) {
	t.Run("creates root command", func(t *testing.T) {
		cmd := NewRootCommand("1.0.0")
		assert.NotNil(t, cmd)
		assert.Equal(t, "wspanel [url]", cmd.Use)
		assert.Equal(t, "1.0.0", cmd.Version)
	})

	t.Run("has definition flag", func(t *testing.T) {
		cmd := NewRootCommand("1.0.0")
		flag := cmd.Flags().Lookup("definition")
		require.NotNil(t, flag)
		assert.Equal(t, "d", flag.Shorthand)
	})

	t.Run("has filter flag", func(t *testing.T) {
		cmd := NewRootCommand("1.0.0")
		require.NotNil(t, cmd.Flags().Lookup("filter"))
	})

	t.Run("config flag is inherited", func(t *testing.T) {
		cmd := NewRootCommand("1.0.0")
		require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	})

	t.Run("has subcommands", func(t *testing.T) {
		cmd := NewRootCommand("1.0.0")
		for _, name := range []string{"send", "history", "cookies"} {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Contains(t, sub.Use, name)
		}
	})

	t.Run("rejects extra arguments", func(t *testing.T) {
		cmd := NewRootCommand("1.0.0")
		cmd.SetArgs([]string{"ws://a", "ws://b"})
		cmd.SetOut(&nopWriter{})
		cmd.SetErr(&nopWriter{})
		assert.Error(t, cmd.Execute())
	})
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestLoadConfig(t *testing.T) {
	t.Run("from inherited flag", func(t *testing.T) {
		isolate(t)
		path := writeFile(t, "config.yaml", "ui:\n  narrow_width: 120\n")

		root := NewRootCommand("test")
		require.NoError(t, root.PersistentFlags().Set("config", path))
		history, _, err := root.Find([]string{"history"})
		require.NoError(t, err)

		cfg, err := loadConfig(history)
		require.NoError(t, err)
		assert.Equal(t, 120, cfg.UI.NarrowWidth)
	})

	t.Run("standalone command uses defaults", func(t *testing.T) {
		dir := isolate(t)
		cfg, err := loadConfig(NewSendCommand())
		require.NoError(t, err)
		assert.Equal(t, dir, cfg.DataDir)
	})
}

func TestBuildView(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		view, err := BuildView(newTestApp(t), &RootOptions{}, "")
		require.NoError(t, err)
		defer view.Close()
		assert.Equal(t, "", view.Editor().URL())
		assert.False(t, view.MessageView().FilterEnabled())
	})

	t.Run("url argument", func(t *testing.T) {
		view, err := BuildView(newTestApp(t), &RootOptions{}, "ws://example.com/feed")
		require.NoError(t, err)
		defer view.Close()
		assert.Equal(t, "ws://example.com/feed", view.Editor().URL())
		assert.Equal(t, "ws://example.com/feed", view.Controller().State().URL)
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := BuildView(newTestApp(t), &RootOptions{}, "http://example.com")
		assert.Error(t, err)
	})

	t.Run("definition supplies endpoint and filter", func(t *testing.T) {
		def := writeFile(t, "def.yaml", `name: feed
endpoint: ws://example.com/feed
filterScript: message.direction === "received"
`)
		view, err := BuildView(newTestApp(t), &RootOptions{Definition: def}, "")
		require.NoError(t, err)
		defer view.Close()
		assert.Equal(t, "ws://example.com/feed", view.Editor().URL())
		assert.True(t, view.MessageView().FilterEnabled())
	})

	t.Run("url argument wins over definition", func(t *testing.T) {
		def := writeFile(t, "def.yaml", "name: feed\nendpoint: ws://example.com/feed\n")
		view, err := BuildView(newTestApp(t), &RootOptions{Definition: def}, "ws://other.example.com")
		require.NoError(t, err)
		defer view.Close()
		assert.Equal(t, "ws://other.example.com", view.Editor().URL())
	})

	t.Run("missing definition", func(t *testing.T) {
		_, err := BuildView(newTestApp(t), &RootOptions{Definition: "/does/not/exist.yaml"}, "")
		assert.ErrorContains(t, err, "failed to load definition")
	})

	t.Run("filter file", func(t *testing.T) {
		filter := writeFile(t, "filter.js", `message.content !== "ping"`)
		view, err := BuildView(newTestApp(t), &RootOptions{Filter: filter}, "")
		require.NoError(t, err)
		defer view.Close()
		assert.True(t, view.MessageView().FilterEnabled())
	})

	t.Run("filter syntax error", func(t *testing.T) {
		filter := writeFile(t, "filter.js", `message.content ===`)
		_, err := BuildView(newTestApp(t), &RootOptions{Filter: filter}, "")
		assert.ErrorContains(t, err, "invalid filter")
	})
}

func TestTUIModel(t *testing.T) {
	view, err := BuildView(newTestApp(t), &RootOptions{}, "")
	require.NoError(t, err)
	defer view.Close()

	var model tea.Model = tuiModel{view: view}
	model, _ = model.Update(tea.WindowSizeMsg{Width: 60, Height: 30})

	m, ok := model.(tuiModel)
	require.True(t, ok)
	assert.IsType(t, &views.WebSocketView{}, m.view)
	assert.Equal(t, 60, m.view.Width())
	assert.True(t, m.view.Editor().Narrow())
	assert.NotEmpty(t, model.View())
}
