package harness

import (
	"bytes"
	"context"
	"time"

	"github.com/artpar/wspanel/internal/cli"
)

// CLIResult holds CLI execution results.
type CLIResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// CLIRunner executes CLI commands.
type CLIRunner struct {
	harness *E2EHarness
}

// Run executes a CLI command with the given arguments.
func (r *CLIRunner) Run(args ...string) (*CLIResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.harness.timeout)
	defer cancel()

	start := time.Now()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := cli.NewRootCommand("test")
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)

	result := &CLIResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		result.ExitCode = 1
	}

	return result, err
}

// Send connects to url, sends messages and collects replies for wait.
func (r *CLIRunner) Send(url string, wait time.Duration, messages ...string) (*CLIResult, error) {
	args := []string{"send", url, "--wait", wait.String()}
	args = append(args, messages...)
	return r.Run(args...)
}

// SendWithHeaders is Send with handshake headers.
func (r *CLIRunner) SendWithHeaders(url string, headers map[string]string, messages ...string) (*CLIResult, error) {
	args := []string{"send", url, "--wait", "200ms"}
	for k, v := range headers {
		args = append(args, "--header", k+":"+v)
	}
	args = append(args, messages...)
	return r.Run(args...)
}

// HistoryJSON lists the URL history as JSON.
func (r *CLIRunner) HistoryJSON() (*CLIResult, error) {
	return r.Run("history", "list", "--json")
}

// CookiesJSON lists the persisted cookies as JSON.
func (r *CLIRunner) CookiesJSON() (*CLIResult, error) {
	return r.Run("cookies", "list", "--json")
}
