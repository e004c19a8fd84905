package store

import (
	"context"
	"fmt"
)

// EnsureSchema drops and recreates the three event logs and two projection
// views for a namespace. It is idempotent but destructive: all history for
// the namespace is lost. Other namespaces are untouched. It is the sole
// recovery path after ErrSchemaMissing, not scheduled maintenance.
func (s *Store) EnsureSchema(ctx context.Context, ns string) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}

	// seq breaks ties between rows sharing a timestamp: the later insert
	// (higher seq) wins, deterministically.
	stmts := []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", presenceTable(ns)),
		fmt.Sprintf(`CREATE TABLE %s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)`, presenceTable(ns)),

		fmt.Sprintf("DROP TABLE IF EXISTS %s", votesTable(ns)),
		fmt.Sprintf(`CREATE TABLE %s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			round_id TEXT NOT NULL,
			name TEXT NOT NULL,
			vote TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)`, votesTable(ns)),

		fmt.Sprintf("DROP TABLE IF EXISTS %s", statusTable(ns)),
		fmt.Sprintf(`CREATE TABLE %s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			round_id TEXT NOT NULL,
			status INTEGER NOT NULL,
			timestamp TEXT NOT NULL
		)`, statusTable(ns)),

		fmt.Sprintf("DROP VIEW IF EXISTS %s", statusView(ns)),
		fmt.Sprintf(`CREATE VIEW %s AS
			WITH ranked AS (
				SELECT round_id, status, timestamp, seq,
					ROW_NUMBER() OVER (
						PARTITION BY round_id
						ORDER BY timestamp DESC, seq DESC
					) AS rn
				FROM %s
			)
			SELECT round_id, status, timestamp, seq FROM ranked WHERE rn = 1`,
			statusView(ns), statusTable(ns)),

		fmt.Sprintf("DROP VIEW IF EXISTS %s", votesView(ns)),
		fmt.Sprintf(`CREATE VIEW %s AS
			WITH ranked AS (
				SELECT round_id, name, vote, timestamp, seq,
					ROW_NUMBER() OVER (
						PARTITION BY round_id, name
						ORDER BY timestamp DESC, seq DESC
					) AS rn
				FROM %s
			)
			SELECT round_id, name, vote, timestamp, seq FROM ranked WHERE rn = 1`,
			votesView(ns), votesTable(ns)),
	}

	for _, stmt := range stmts {
		if _, err := s.sqlDB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema for %s: %w", ns, err)
		}
	}
	return nil
}
