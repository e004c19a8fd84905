// Package store persists the per-team append-only event logs and derives
// latest-wins projections from them. Rows are only ever inserted; a newer row
// for the same key supersedes older ones, and nothing is deleted outside a
// full namespace reset.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width so that string comparison of stored timestamps
// matches chronological order.
const timeFormat = "2006-01-02 15:04:05.000000000"

var (
	// ErrSchemaMissing indicates the namespace was never initialized (or its
	// schema was corrupted). Callers recover with one EnsureSchema + retry.
	ErrSchemaMissing = errors.New("namespace schema missing")

	// ErrInvalidNamespace indicates a namespace that cannot scope storage.
	ErrInvalidNamespace = errors.New("invalid namespace")
)

// Store is a SQLite-backed event log store. It supports concurrent readers
// and writers; appends never block snapshot reads for a whole cycle.
type Store struct {
	sqlDB *sql.DB

	// now assigns insert timestamps from the store-local clock.
	now func() time.Time
}

// Open opens a SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// timestamp returns the current store clock reading in storage format.
func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeFormat)
}

// validNamespace reports whether ns is safe to interpolate as a table name
// prefix: lowercase ASCII letters only, as produced by the team package.
func validNamespace(ns string) bool {
	if ns == "" {
		return false
	}
	for _, r := range ns {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func checkNamespace(ns string) error {
	if !validNamespace(ns) {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, ns)
	}
	return nil
}

// Per-namespace object names.
func presenceTable(ns string) string { return ns + "__presence" }
func votesTable(ns string) string    { return ns + "__votes" }
func statusTable(ns string) string   { return ns + "__status" }
func votesView(ns string) string     { return votesTable(ns) + "_last" }
func statusView(ns string) string    { return statusTable(ns) + "_last" }

// isMissingTableError reports whether err means the namespace schema does not
// exist yet. SQLite reports both absent tables and absent views this way.
func isMissingTableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "no such view")
}

// mapSchemaError translates driver errors for uninitialized namespaces into
// ErrSchemaMissing and wraps everything else.
func mapSchemaError(op string, err error) error {
	if isMissingTableError(err) {
		return fmt.Errorf("%s: %w", op, ErrSchemaMissing)
	}
	return fmt.Errorf("%s: %w", op, err)
}
