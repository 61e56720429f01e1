package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/artpar/wspanel/internal/history"
	"github.com/artpar/wspanel/internal/history/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedHistory records urls in the data dir's history database.
func seedHistory(t *testing.T, dir string, urls ...string) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer store.Close()
	for _, u := range urls {
		_, err := store.Record(context.Background(), u, nil)
		require.NoError(t, err)
	}
}

func runHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewHistoryCommand()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHistoryList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		isolate(t)
		out, err := runHistory(t, "list")
		require.NoError(t, err)
		assert.Contains(t, out, "No history")
	})

	t.Run("human output", func(t *testing.T) {
		dir := isolate(t)
		seedHistory(t, dir, "ws://a.example.com", "ws://b.example.com", "ws://a.example.com")

		out, err := runHistory(t, "list")
		require.NoError(t, err)
		assert.Contains(t, out, "URL")
		assert.Contains(t, out, "ws://a.example.com")
		assert.Contains(t, out, "ws://b.example.com")
		assert.Contains(t, out, "2")
	})

	t.Run("json output with search and limit", func(t *testing.T) {
		dir := isolate(t)
		seedHistory(t, dir, "ws://alpha/1", "ws://beta", "ws://alpha/2")

		out, err := runHistory(t, "list", "--json", "--search", "alpha", "--limit", "1")
		require.NoError(t, err)

		var entries []history.Entry
		require.NoError(t, json.Unmarshal([]byte(out), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "ws://alpha/2", entries[0].URL)
	})

	t.Run("json empty is an array", func(t *testing.T) {
		isolate(t)
		out, err := runHistory(t, "list", "--json")
		require.NoError(t, err)
		assert.JSONEq(t, "[]", out)
	})
}

func TestHistoryClear(t *testing.T) {
	dir := isolate(t)
	seedHistory(t, dir, "ws://a", "ws://b")

	out, err := runHistory(t, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 2 entries")

	out, err = runHistory(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No history")
}

func TestHistoryPrune(t *testing.T) {
	t.Run("keep", func(t *testing.T) {
		dir := isolate(t)
		seedHistory(t, dir, "ws://a", "ws://b", "ws://c")

		out, err := runHistory(t, "prune", "--keep", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "Removed 2 entries")

		out, err = runHistory(t, "list", "--json")
		require.NoError(t, err)
		var entries []history.Entry
		require.NoError(t, json.Unmarshal([]byte(out), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "ws://c", entries[0].URL)
	})

	t.Run("requires a criterion", func(t *testing.T) {
		isolate(t)
		_, err := runHistory(t, "prune")
		assert.ErrorContains(t, err, "--keep")
	})
}
