// Package history persists executed cells in a SQLite database so that
// front-ends can recall them across kernel restarts.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session INTEGER PRIMARY KEY AUTOINCREMENT,
	key     TEXT NOT NULL,
	started TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS history (
	session INTEGER NOT NULL,
	line    INTEGER NOT NULL,
	source  TEXT NOT NULL,
	PRIMARY KEY (session, line)
);`

// ErrDisabled is returned when history is requested from a kernel that
// keeps none.
var ErrDisabled = errors.New("history is disabled")

// ErrReadOnly is returned by Append on a store opened with OpenReader.
var ErrReadOnly = errors.New("history store is read-only")

// Entry is one stored cell.
type Entry struct {
	Session int
	Line    int
	Source  string
}

// Store records the cells of the current kernel session.
type Store struct {
	db       *sql.DB
	path     string
	session  int
	readOnly bool
	mu       sync.Mutex
}

// Open opens (creating if needed) the database at path and starts a new
// session identified by key.
func Open(path, key string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	res, err := db.Exec("INSERT INTO sessions (key, started) VALUES (?, ?)", key, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("starting history session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reading session id: %w", err)
	}

	return &Store{db: db, path: path, session: int(id)}, nil
}

// OpenReader opens an existing database for browsing. Relative sessions
// refer to the most recent one and Append fails with ErrReadOnly.
func OpenReader(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no history at %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	dsn := "file:" + (&url.URL{Path: abs}).EscapedPath() + "?mode=ro&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	var latest int
	if err := db.QueryRow("SELECT COALESCE(MAX(session), 0) FROM sessions").Scan(&latest); err != nil {
		db.Close()
		return nil, fmt.Errorf("reading sessions: %w", err)
	}
	return &Store{db: db, path: path, session: latest, readOnly: true}, nil
}

func openDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// A single connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return db, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Session returns the number of the current session.
func (s *Store) Session() int {
	return s.session
}

// Append stores source as line of the current session. Storing the same
// line twice keeps the latest source.
func (s *Store) Append(line int, source string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO history (session, line, source) VALUES (?, ?, ?)",
		s.session, line, source,
	)
	if err != nil {
		return fmt.Errorf("saving history line %d: %w", line, err)
	}
	return nil
}

// Tail returns the last n entries across all sessions in chronological
// order. n <= 0 returns everything.
func (s *Store) Tail(n int) ([]Entry, error) {
	query := "SELECT session, line, source FROM history ORDER BY session DESC, line DESC"
	args := []any{}
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}

	entries, err := s.query(query, args...)
	if err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	return entries, nil
}

// Range returns lines [start, stop) of a session. A session <= 0 is
// relative to the current one (0 is current, -1 the one before). stop <= 0
// means up to the last line.
func (s *Store) Range(session, start, stop int) ([]Entry, error) {
	if session <= 0 {
		session += s.session
	}

	query := "SELECT session, line, source FROM history WHERE session = ? AND line >= ?"
	args := []any{session, start}
	if stop > 0 {
		query += " AND line < ?"
		args = append(args, stop)
	}
	query += " ORDER BY line"
	return s.query(query, args...)
}

// Search returns entries whose source matches a glob pattern, newest last.
// With unique set only the latest occurrence of each source is kept.
// n <= 0 returns every match.
func (s *Store) Search(pattern string, n int, unique bool) ([]Entry, error) {
	if pattern == "" {
		pattern = "*"
	}
	all, err := s.query(
		"SELECT session, line, source FROM history WHERE source GLOB ? ORDER BY session DESC, line DESC",
		pattern,
	)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []Entry
	for _, e := range all {
		if unique {
			if seen[e.Source] {
				continue
			}
			seen[e.Source] = true
		}
		entries = append(entries, e)
		if n > 0 && len(entries) == n {
			break
		}
	}
	slices.Reverse(entries)
	return entries, nil
}

func (s *Store) query(query string, args ...any) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Session, &e.Line, &e.Source); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
