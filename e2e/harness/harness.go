// Package harness provides E2E testing utilities for wspanel.
package harness

import (
	"testing"
	"time"

	"github.com/artpar/wspanel/e2e/testserver"
)

// E2EHarness is the main test orchestrator. It isolates configuration and
// data in a temporary directory, so tests using it must not run in parallel.
type E2EHarness struct {
	t       *testing.T
	server  *testserver.Server
	dataDir string
	timeout time.Duration
}

// Config configures the harness.
type Config struct {
	Routes  map[string]testserver.Route
	Timeout time.Duration // Default: 5 seconds
}

// New creates a new E2E harness.
func New(t *testing.T, cfg Config) *E2EHarness {
	t.Helper()

	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	h := &E2EHarness{
		t:       t,
		dataDir: t.TempDir(),
		timeout: cfg.Timeout,
	}
	t.Setenv("WSPANEL_CONFIG", "")
	t.Setenv("WSPANEL_DATA_DIR", h.dataDir)

	if len(cfg.Routes) > 0 {
		h.server = testserver.New(cfg.Routes)
		t.Cleanup(h.server.Close)
	}
	return h
}

// Server returns the test server, or nil without routes.
func (h *E2EHarness) Server() *testserver.Server {
	return h.server
}

// URL returns the ws:// address of path on the test server.
func (h *E2EHarness) URL(path string) string {
	return h.server.URL(path)
}

// DataDir returns the isolated data directory.
func (h *E2EHarness) DataDir() string {
	return h.dataDir
}

// Timeout returns the configured timeout.
func (h *E2EHarness) Timeout() time.Duration {
	return h.timeout
}

// T returns the testing.T instance.
func (h *E2EHarness) T() *testing.T {
	return h.t
}

// CLI returns a CLI runner for this harness.
func (h *E2EHarness) CLI() *CLIRunner {
	return &CLIRunner{harness: h}
}

// TUI returns a TUI runner for this harness.
func (h *E2EHarness) TUI() *TUIRunner {
	return &TUIRunner{harness: h}
}
