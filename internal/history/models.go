package history

import (
	"time"
)

// Entry is one remembered WebSocket URL.
type Entry struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	FirstUsed time.Time `json:"first_used"`
	LastUsed  time.Time `json:"last_used"`
	UseCount  int       `json:"use_count"`

	// Subprotocols negotiated on the last successful connect.
	Subprotocols []string `json:"subprotocols,omitempty"`
}

// QueryOptions specifies filters and pagination for history queries.
type QueryOptions struct {
	Search string    // Substring match on the URL
	After  time.Time // Only entries used after this time

	// Pagination
	Limit  int // Maximum number of results (0 = no limit)
	Offset int // Number of results to skip
}

// PruneOptions specifies criteria for pruning old history entries.
// OlderThan takes precedence over KeepLast.
type PruneOptions struct {
	OlderThan time.Duration // Delete entries not used within this duration
	KeepLast  int           // Keep only the N most recently used entries
}
