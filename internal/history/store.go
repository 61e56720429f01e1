package history

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrNotFound    = errors.New("history entry not found")
	ErrInvalidID   = errors.New("invalid history entry ID")
	ErrInvalidURL  = errors.New("invalid history URL")
	ErrStoreClosed = errors.New("history store is closed")
)

// Store persists the URLs the panel has connected to.
type Store interface {
	// Record notes a use of url. A new URL creates an entry; a known URL
	// has its use count and last-used time bumped.
	Record(ctx context.Context, url string, subprotocols []string) (Entry, error)

	// Get retrieves a single entry by ID.
	Get(ctx context.Context, id string) (Entry, error)

	// List returns entries matching opts, most recently used first.
	List(ctx context.Context, opts QueryOptions) ([]Entry, error)

	// Count returns the number of entries matching opts.
	Count(ctx context.Context, opts QueryOptions) (int64, error)

	// Delete removes an entry by ID.
	Delete(ctx context.Context, id string) error

	// Prune removes old entries and returns how many were deleted.
	Prune(ctx context.Context, opts PruneOptions) (int64, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}
