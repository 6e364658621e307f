package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// DB is a read-only connection to a SQLite file owned by another program,
// either the Messages chat.db or an AddressBook store.
type DB struct {
	*sql.DB
	path string
}

// Open connects to path read-only and checks that probeTable can be read.
// Failures are returned as *OpenError.
func Open(ctx context.Context, path, probeTable string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, &OpenError{Path: path, Err: fmt.Errorf("open db: %w", err)}
	}
	// The writer is another process; one connection keeps read snapshots simple.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &OpenError{Path: path, Err: fmt.Errorf("ping db: %w", err)}
	}
	if probeTable != "" {
		var one int
		q := "SELECT 1 FROM " + probeTable + " LIMIT 1"
		if err := db.QueryRowContext(ctx, q).Scan(&one); err != nil && !errors.Is(err, sql.ErrNoRows) {
			_ = db.Close()
			return nil, &OpenError{Path: path, Err: fmt.Errorf("read %s: %w", probeTable, err)}
		}
	}
	return &DB{DB: db, path: path}, nil
}

// OpenChatDB opens the Messages database.
func OpenChatDB(ctx context.Context, path string) (*DB, error) {
	return Open(ctx, path, "message")
}

// Path returns the file this DB reads.
func (db *DB) Path() string {
	return db.path
}

func dsn(path string) string {
	u := url.URL{Scheme: "file", Path: path}
	q := url.Values{}
	q.Set("mode", "ro")
	q.Set("_busy_timeout", "5000")
	u.RawQuery = q.Encode()
	return u.String()
}

// OpenError reports that a store could not be opened or read. On macOS this
// is almost always missing Full Disk Access for the terminal.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Remediation returns a user-facing hint for fixing the failure.
func (e *OpenError) Remediation() string {
	if errors.Is(e.Err, fs.ErrNotExist) {
		return "No database at " + e.Path + ". Set chat_db in ~/.imsg/config.toml or pass --db."
	}
	return "Grant Full Disk Access to your terminal in System Settings > Privacy & Security > Full Disk Access, then restart it."
}
