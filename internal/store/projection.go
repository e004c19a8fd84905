package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Status is the state of a voting round as recorded in the status log.
type Status int

const (
	// StatusNone is the sentinel for "no round"; it is never written.
	StatusNone Status = -1
	// StatusRevealed marks a round whose votes are visible to everyone.
	StatusRevealed Status = 0
	// StatusOpen marks a round accepting hidden votes.
	StatusOpen Status = 1
)

// Valid reports whether the status may appear in the log.
func (st Status) Valid() bool { return st == StatusOpen || st == StatusRevealed }

// VoteRow is the effective vote of one user in one round.
type VoteRow struct {
	RoundID   string
	Name      string
	Vote      string
	Timestamp string
	Seq       int64
}

// PresenceRow is the most recent presence ping of one user.
type PresenceRow struct {
	Name      string
	Timestamp string
}

// CurrentRoundID returns the round whose latest valid status row carries the
// globally newest timestamp, or "" when no round has been started. The
// projection is re-derived from the log on every call; there is no cache.
func (s *Store) CurrentRoundID(ctx context.Context, ns string) (string, error) {
	if err := checkNamespace(ns); err != nil {
		return "", err
	}
	query := fmt.Sprintf(
		`SELECT round_id FROM %s WHERE status >= 0 ORDER BY timestamp DESC, seq DESC LIMIT 1`,
		statusView(ns))
	var roundID string
	err := s.sqlDB.QueryRowContext(ctx, query).Scan(&roundID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", mapSchemaError("current round", err)
	}
	return roundID, nil
}

// RoundStatus returns the effective status for a round, StatusNone when the
// round has no status rows at all.
func (s *Store) RoundStatus(ctx context.Context, ns, roundID string) (Status, error) {
	if err := checkNamespace(ns); err != nil {
		return StatusNone, err
	}
	if roundID == "" {
		return StatusNone, nil
	}
	query := fmt.Sprintf(`SELECT status FROM %s WHERE round_id = ?`, statusView(ns))
	var status int
	err := s.sqlDB.QueryRowContext(ctx, query, roundID).Scan(&status)
	if err == sql.ErrNoRows {
		return StatusNone, nil
	}
	if err != nil {
		return StatusNone, mapSchemaError("round status", err)
	}
	return Status(status), nil
}

// LatestVotes returns the effective vote per user for a round, newest first.
func (s *Store) LatestVotes(ctx context.Context, ns, roundID string) ([]VoteRow, error) {
	if err := checkNamespace(ns); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		`SELECT round_id, name, vote, timestamp, seq FROM %s
		 WHERE round_id = ? ORDER BY timestamp DESC, seq DESC`,
		votesView(ns))
	rows, err := s.sqlDB.QueryContext(ctx, query, roundID)
	if err != nil {
		return nil, mapSchemaError("latest votes", err)
	}
	defer rows.Close()

	var out []VoteRow
	for rows.Next() {
		var r VoteRow
		if err := rows.Scan(&r.RoundID, &r.Name, &r.Vote, &r.Timestamp, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan vote row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("latest votes: %w", err)
	}
	return out, nil
}

// PresentUsers returns users whose newest presence ping is younger than the
// retention window, with that ping's timestamp.
func (s *Store) PresentUsers(ctx context.Context, ns string, retention time.Duration) ([]PresenceRow, error) {
	if err := checkNamespace(ns); err != nil {
		return nil, err
	}
	cutoff := s.now().UTC().Add(-retention).Format(timeFormat)
	query := fmt.Sprintf(
		`SELECT name, MAX(timestamp) FROM %s WHERE timestamp > ? GROUP BY name`,
		presenceTable(ns))
	rows, err := s.sqlDB.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, mapSchemaError("present users", err)
	}
	defer rows.Close()

	var out []PresenceRow
	for rows.Next() {
		var r PresenceRow
		if err := rows.Scan(&r.Name, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan presence row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("present users: %w", err)
	}
	return out, nil
}

// HasVoted reports whether any vote event (including the pending sentinel)
// exists for the user in the round.
func (s *Store) HasVoted(ctx context.Context, ns, roundID, name string) (bool, error) {
	if err := checkNamespace(ns); err != nil {
		return false, err
	}
	query := fmt.Sprintf(
		`SELECT 1 FROM %s WHERE round_id = ? AND name = ? LIMIT 1`, votesTable(ns))
	var one int
	err := s.sqlDB.QueryRowContext(ctx, query, roundID, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapSchemaError("has voted", err)
	}
	return true, nil
}
