package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/artpar/wspanel/internal/cookies"
	_ "modernc.org/sqlite"
)

// Store implements cookies.Store using SQLite.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
	now    func() time.Time
}

// New opens or creates the cookie database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStore(db)
}

// NewInMemory creates an in-memory store.
func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cookies (
			domain TEXT NOT NULL,
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			secure INTEGER NOT NULL DEFAULT 0,
			http_only INTEGER NOT NULL DEFAULT 0,
			same_site TEXT NOT NULL DEFAULT '',
			host_only INTEGER NOT NULL DEFAULT 0,
			expires INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (domain, path, name)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

// Save stores or replaces a cookie.
func (s *Store) Save(ctx context.Context, c cookies.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cookies.ErrStoreClosed
	}

	updated := c.UpdatedAt
	if updated.IsZero() {
		updated = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cookies (domain, path, name, value, secure, http_only, same_site, host_only, expires, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain, path, name) DO UPDATE SET
			value = excluded.value,
			secure = excluded.secure,
			http_only = excluded.http_only,
			same_site = excluded.same_site,
			host_only = excluded.host_only,
			expires = excluded.expires,
			updated_at = excluded.updated_at
	`, c.Domain, c.Path, c.Name, c.Value, c.Secure, c.HTTPOnly, c.SameSite, c.HostOnly,
		unixNano(c.Expires), updated.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save cookie: %w", err)
	}
	return nil
}

// Remove deletes one cookie.
func (s *Store) Remove(ctx context.Context, domain, path, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cookies.ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cookies WHERE domain = ? AND path = ? AND name = ?", domain, path, name)
	if err != nil {
		return fmt.Errorf("failed to remove cookie: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cookies.ErrNotFound
	}
	return nil
}

// List returns cookies matching opts.
func (s *Store) List(ctx context.Context, opts cookies.QueryOptions) ([]cookies.Cookie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cookies.ErrStoreClosed
	}

	var conditions []string
	var args []any
	if opts.Domain != "" {
		conditions = append(conditions, "domain = ?")
		args = append(args, strings.ToLower(opts.Domain))
	}
	if !opts.IncludeExpired {
		conditions = append(conditions, "(expires = 0 OR expires > ?)")
		args = append(args, s.now().UnixNano())
	}
	query := `SELECT domain, path, name, value, secure, http_only, same_site, host_only, expires, updated_at FROM cookies`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY domain, path, name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cookies: %w", err)
	}
	defer rows.Close()

	var result []cookies.Cookie
	for rows.Next() {
		var c cookies.Cookie
		var expires, updated int64
		if err := rows.Scan(&c.Domain, &c.Path, &c.Name, &c.Value, &c.Secure, &c.HTTPOnly,
			&c.SameSite, &c.HostOnly, &expires, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan cookie: %w", err)
		}
		if expires != 0 {
			c.Expires = time.Unix(0, expires)
		}
		c.UpdatedAt = time.Unix(0, updated)
		result = append(result, c)
	}
	return result, rows.Err()
}

// RemoveExpired deletes cookies expired at now.
func (s *Store) RemoveExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, cookies.ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM cookies WHERE expires != 0 AND expires <= ?", now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to remove expired cookies: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all cookies.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cookies.ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM cookies"); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
