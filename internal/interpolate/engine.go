// Package interpolate expands {{name}} placeholders in URLs, headers and
// outgoing messages.
package interpolate

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUndefined is returned when a placeholder names no variable or builtin.
var ErrUndefined = errors.New("undefined variable")

// envPrefix selects a process environment variable, as in {{$env.TOKEN}}.
const envPrefix = "$env."

// BuiltinFunc generates a dynamic value.
type BuiltinFunc func() string

// Engine holds the variables of one endpoint profile.
type Engine struct {
	mu        sync.RWMutex
	variables map[string]string
	builtins  map[string]BuiltinFunc
	lookupEnv func(string) (string, bool)
}

// placeholder matches {{name}} or {{ name }}.
var placeholder = regexp.MustCompile(`\{\{\s*([a-zA-Z_$][a-zA-Z0-9_\-$.]*)\s*\}\}`)

// NewEngine creates an engine seeded with vars.
func NewEngine(vars map[string]string) *Engine {
	e := &Engine{
		variables: make(map[string]string, len(vars)),
		lookupEnv: os.LookupEnv,
		builtins: map[string]BuiltinFunc{
			"$uuid":         uuid.NewString,
			"$timestamp":    func() string { return strconv.FormatInt(time.Now().Unix(), 10) },
			"$timestampMs":  func() string { return strconv.FormatInt(time.Now().UnixMilli(), 10) },
			"$isoTimestamp": func() string { return time.Now().UTC().Format(time.RFC3339) },
			"$date":         func() string { return time.Now().Format(time.DateOnly) },
			"$randomInt":    func() string { return strconv.Itoa(rand.Intn(10000)) },
		},
	}
	for k, v := range vars {
		e.variables[k] = v
	}
	return e
}

// Set defines or replaces a variable.
func (e *Engine) Set(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.variables[name] = value
}

// Variables returns a copy of the user variables.
func (e *Engine) Variables() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.variables))
	for k, v := range e.variables {
		out[k] = v
	}
	return out
}

// RegisterBuiltin adds a $-prefixed generator.
func (e *Engine) RegisterBuiltin(name string, fn BuiltinFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.builtins[name] = fn
}

func (e *Engine) resolve(name string) (string, bool) {
	if strings.HasPrefix(name, envPrefix) {
		return e.lookupEnv(strings.TrimPrefix(name, envPrefix))
	}
	if strings.HasPrefix(name, "$") {
		if fn, ok := e.builtins[name]; ok {
			return fn(), true
		}
		return "", false
	}
	v, ok := e.variables[name]
	return v, ok
}

// Expand replaces every placeholder in input. Placeholders that resolve to
// nothing are left in place and reported together in an ErrUndefined error.
func (e *Engine) Expand(input string) (string, error) {
	if e == nil || !strings.Contains(input, "{{") {
		return input, nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	var missing []string
	out := placeholder.ReplaceAllStringFunc(input, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		if v, ok := e.resolve(name); ok {
			return v
		}
		missing = append(missing, name)
		return match
	})
	if len(missing) > 0 {
		return out, fmt.Errorf("%w: %s", ErrUndefined, strings.Join(missing, ", "))
	}
	return out, nil
}

// ExpandMap expands every value of input.
func (e *Engine) ExpandMap(input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := e.Expand(input[k])
		if err != nil {
			return nil, fmt.Errorf("header %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Names returns the distinct placeholder names in input, in order.
func Names(input string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(input, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
