// Package cookies persists WebSocket handshake cookies between runs.
package cookies

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrNotFound    = errors.New("cookie not found")
	ErrStoreClosed = errors.New("cookie store is closed")
)

// Store defines the interface for cookie persistence. Cookies are keyed by
// domain, path and name.
type Store interface {
	// Save stores or replaces a cookie.
	Save(ctx context.Context, cookie Cookie) error

	// Remove deletes one cookie.
	Remove(ctx context.Context, domain, path, name string) error

	// List returns cookies matching opts ordered by domain, path and name.
	List(ctx context.Context, opts QueryOptions) ([]Cookie, error)

	// RemoveExpired deletes cookies expired at now and returns the count.
	RemoveExpired(ctx context.Context, now time.Time) (int64, error)

	// Clear removes all cookies.
	Clear(ctx context.Context) error

	// Close closes the store.
	Close() error
}
