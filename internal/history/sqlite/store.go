package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/artpar/wspanel/internal/history"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store implements history.Store using SQLite.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
	now    func() time.Time
}

// New creates a new SQLite-based history store.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStore(db)
}

// NewInMemory creates a new in-memory SQLite store (useful for testing).
func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	store := &Store{db: db, now: time.Now}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// initialize creates the necessary tables and indexes.
func (s *Store) initialize() error {
	schema := `
		CREATE TABLE IF NOT EXISTS url_history (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			first_used INTEGER NOT NULL,
			last_used INTEGER NOT NULL,
			use_count INTEGER NOT NULL DEFAULT 1,
			subprotocols TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_url_history_last_used ON url_history(last_used DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record notes a use of url.
func (s *Store) Record(ctx context.Context, url string, subprotocols []string) (history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return history.Entry{}, history.ErrStoreClosed
	}

	url = strings.TrimSpace(url)
	if url == "" {
		return history.Entry{}, history.ErrInvalidURL
	}

	protosJSON, _ := json.Marshal(subprotocols)
	now := s.now().UnixNano()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO url_history (id, url, first_used, last_used, use_count, subprotocols)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(url) DO UPDATE SET
			last_used = excluded.last_used,
			use_count = use_count + 1,
			subprotocols = excluded.subprotocols
	`, uuid.New().String(), url, now, now, string(protosJSON))
	if err != nil {
		return history.Entry{}, fmt.Errorf("failed to record history entry: %w", err)
	}

	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE url = ?", url)
	entry, err := scanEntry(row)
	if err != nil {
		return history.Entry{}, fmt.Errorf("failed to read recorded entry: %w", err)
	}
	return entry, nil
}

// Get retrieves a single history entry by ID.
func (s *Store) Get(ctx context.Context, id string) (history.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return history.Entry{}, history.ErrStoreClosed
	}

	if id == "" {
		return history.Entry{}, history.ErrInvalidID
	}

	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return history.Entry{}, history.ErrNotFound
	}
	if err != nil {
		return history.Entry{}, fmt.Errorf("failed to get history entry: %w", err)
	}

	return entry, nil
}

// List retrieves history entries matching the query options.
func (s *Store) List(ctx context.Context, opts history.QueryOptions) ([]history.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, history.ErrStoreClosed
	}

	where, args := buildWhere(opts)
	query := selectColumns + where + " ORDER BY last_used DESC, rowid DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	} else if opts.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history entries: %w", err)
	}
	defer rows.Close()

	var entries []history.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Count returns the number of entries matching the query options.
func (s *Store) Count(ctx context.Context, opts history.QueryOptions) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, history.ErrStoreClosed
	}

	where, args := buildWhere(opts)
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM url_history"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history entries: %w", err)
	}

	return count, nil
}

// Delete removes a history entry by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return history.ErrStoreClosed
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM url_history WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return history.ErrNotFound
	}

	return nil
}

// Prune removes old entries based on the prune options.
func (s *Store) Prune(ctx context.Context, opts history.PruneOptions) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, history.ErrStoreClosed
	}

	var (
		res sql.Result
		err error
	)
	switch {
	case opts.OlderThan > 0:
		cutoff := s.now().Add(-opts.OlderThan).UnixNano()
		res, err = s.db.ExecContext(ctx, "DELETE FROM url_history WHERE last_used < ?", cutoff)
	case opts.KeepLast > 0:
		res, err = s.db.ExecContext(ctx, `
			DELETE FROM url_history WHERE id NOT IN (
				SELECT id FROM url_history ORDER BY last_used DESC, rowid DESC LIMIT ?
			)
		`, opts.KeepLast)
	default:
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	return res.RowsAffected()
}

// Clear removes all history entries.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return history.ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM url_history"); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close closes the store and releases resources.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

const selectColumns = `SELECT id, url, first_used, last_used, use_count, subprotocols FROM url_history`

func buildWhere(opts history.QueryOptions) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if opts.Search != "" {
		conditions = append(conditions, "url LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(opts.Search)+"%")
	}
	if !opts.After.IsZero() {
		conditions = append(conditions, "last_used > ?")
		args = append(args, opts.After.UnixNano())
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (history.Entry, error) {
	var (
		entry      history.Entry
		firstUsed  int64
		lastUsed   int64
		protosJSON sql.NullString
	)

	err := row.Scan(&entry.ID, &entry.URL, &firstUsed, &lastUsed, &entry.UseCount, &protosJSON)
	if err != nil {
		return history.Entry{}, err
	}

	entry.FirstUsed = time.Unix(0, firstUsed)
	entry.LastUsed = time.Unix(0, lastUsed)
	if protosJSON.Valid && protosJSON.String != "" && protosJSON.String != "null" {
		json.Unmarshal([]byte(protosJSON.String), &entry.Subprotocols)
	}

	return entry, nil
}
