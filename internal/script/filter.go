// Package script evaluates JavaScript message filters.
package script

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/artpar/wspanel/internal/core"
	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"
)

// ErrScriptTimeout is returned when a filter runs longer than its timeout.
var ErrScriptTimeout = errors.New("script timed out")

// DefaultTimeout bounds a single filter evaluation.
const DefaultTimeout = 100 * time.Millisecond

// Filter decides whether a message is shown. The script sees the message
// as the global `message` with fields content, direction, type, error and
// timestamp, and must evaluate to a truthy value to keep it. Each message
// is evaluated in its own runtime, so declarations and globals never carry
// over between messages.
type Filter struct {
	mu      sync.Mutex
	source  string
	program *goja.Program
	timeout time.Duration
	runs    int
	log     *logrus.Entry
}

// NewFilter compiles source. An empty source yields a filter that keeps
// every message.
func NewFilter(source string) (*Filter, error) {
	f := &Filter{
		source:  source,
		timeout: DefaultTimeout,
		log:     logrus.WithField("component", "script"),
	}
	if strings.TrimSpace(source) == "" {
		return f, nil
	}

	program, err := goja.Compile("filter", source, true)
	if err != nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}
	f.program = program
	return f, nil
}

// SetTimeout overrides the per-message timeout.
func (f *Filter) SetTimeout(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeout = d
}

// Source returns the script source.
func (f *Filter) Source() string {
	return f.source
}

// Empty reports whether the filter keeps everything without running JS.
func (f *Filter) Empty() bool {
	return f == nil || f.program == nil
}

// Runs returns how many messages the script has been evaluated against.
func (f *Filter) Runs() int {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func (f *Filter) newRuntime() *goja.Runtime {
	rt := goja.New()
	console := rt.NewObject()
	logFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = fmt.Sprintf("%v", arg.Export())
		}
		f.log.Debug(strings.Join(parts, " "))
		return goja.Undefined()
	}
	console.Set("log", logFn)
	console.Set("error", logFn)
	console.Set("warn", logFn)
	console.Set("info", logFn)
	rt.Set("console", console)
	return rt
}

// Keep runs the filter against msg.
func (f *Filter) Keep(msg *core.WebSocketMessage) (bool, error) {
	if f.Empty() || msg == nil {
		return true, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.runs++
	rt := f.newRuntime()
	rt.Set("message", map[string]interface{}{
		"content":   msg.Content,
		"direction": msg.Direction,
		"type":      msg.Type,
		"error":     msg.Error,
		"timestamp": msg.Timestamp.Format(time.RFC3339Nano),
	})

	if f.timeout > 0 {
		timer := time.AfterFunc(f.timeout, func() {
			rt.Interrupt(ErrScriptTimeout)
		})
		defer timer.Stop()
	}

	value, err := rt.RunProgram(f.program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return true, ErrScriptTimeout
		}
		return true, fmt.Errorf("runtime error: %w", err)
	}

	return value != nil && value.ToBoolean(), nil
}

// Apply returns the messages the filter keeps. Messages whose evaluation
// fails are kept, and the first error is returned alongside.
func (f *Filter) Apply(messages []*core.WebSocketMessage) ([]*core.WebSocketMessage, error) {
	if f.Empty() {
		return messages, nil
	}

	var firstErr error
	kept := make([]*core.WebSocketMessage, 0, len(messages))
	for _, msg := range messages {
		ok, err := f.Keep(msg)
		if err != nil && firstErr == nil {
			firstErr = err
			f.log.WithError(err).Warn("filter failed")
		}
		if ok {
			kept = append(kept, msg)
		}
	}
	return kept, firstErr
}
