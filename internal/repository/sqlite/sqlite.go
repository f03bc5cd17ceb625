// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. The snippet API
// only ever needs single-row atomic writes, which SQLite gives us for free.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works everywhere Go works.
//
// TIMESTAMPS:
// created_at is stored as fixed-width UTC text (see timeLayout). Fixed width
// matters: ORDER BY on the column is a plain string comparison, and variable
// fractional digits ("…05Z" vs "…05.1Z") would sort incorrectly.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// BLANK IMPORT:
	// The sqlite package's init() registers itself with database/sql as a
	// driver named "sqlite". After this import, sql.Open("sqlite", ...) works.
	_ "modernc.org/sqlite"
)

// timeLayout is RFC 3339 with a fixed nine-digit fraction, always in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps a sql.DB connection pool and provides repository methods.
// It implements both repository.SnippetRepository and repository.UserRepository.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/snippets.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (great for tests, lost on close)
//
// PRAGMAS IN THE DSN:
// PRAGMA foreign_keys is per-connection, and sql.DB is a pool. Passing it as a
// _pragma query parameter makes the driver apply it to EVERY connection the
// pool opens, not just the first one.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a brand-new, empty database.
	// Pinning the pool to one connection keeps the schema visible to all queries.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode lets readers proceed while a write is in progress.
	// journal_mode is persistent in the file, so once is enough.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn, now: time.Now}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// PingContext reports whether the database is reachable. Used by the health check.
func (db *DB) PingContext(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to run on
// every start.
//
// ON DELETE CASCADE on owner_id: a snippet cannot outlive its owner, which is
// what "every Snippet has exactly one owner" means at the storage level.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			created_at    TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS snippets (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			code       TEXT NOT NULL,
			linenos    INTEGER NOT NULL DEFAULT 0,
			language   TEXT NOT NULL DEFAULT 'python',
			style      TEXT NOT NULL DEFAULT 'friendly',
			owner_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snippets_created_at ON snippets(created_at);
		CREATE INDEX IF NOT EXISTS idx_snippets_owner_id ON snippets(owner_id);
	`)
	if err != nil {
		return fmt.Errorf("creating snippets table: %w", err)
	}

	return nil
}

// timestamp is the clock used for created_at. Tests swap db.now for a fake.
func (db *DB) timestamp() time.Time {
	return db.now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
