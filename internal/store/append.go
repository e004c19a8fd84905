package store

import (
	"context"
	"fmt"
)

// AppendPresence records a login ping for a user. Earlier pings for the same
// name stay in the log; presence queries pick the newest one.
func (s *Store) AppendPresence(ctx context.Context, ns, name string) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (name, timestamp) VALUES (?, ?)", presenceTable(ns))
	if _, err := s.sqlDB.ExecContext(ctx, query, name, s.timestamp()); err != nil {
		return mapSchemaError("append presence", err)
	}
	return nil
}

// AppendStatus records a status transition for a round.
func (s *Store) AppendStatus(ctx context.Context, ns, roundID string, status Status) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}
	if roundID == "" {
		return fmt.Errorf("round id is required")
	}
	if !status.Valid() {
		return fmt.Errorf("status %d is not writable", status)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (round_id, status, timestamp) VALUES (?, ?, ?)", statusTable(ns))
	if _, err := s.sqlDB.ExecContext(ctx, query, roundID, int(status), s.timestamp()); err != nil {
		return mapSchemaError("append status", err)
	}
	return nil
}

// AppendVote records a vote event. Resubmissions append new rows; the latest
// row per (round, user) is the effective vote.
func (s *Store) AppendVote(ctx context.Context, ns, roundID, name, vote string) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}
	if roundID == "" {
		return fmt.Errorf("round id is required")
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (round_id, name, vote, timestamp) VALUES (?, ?, ?, ?)", votesTable(ns))
	if _, err := s.sqlDB.ExecContext(ctx, query, roundID, name, vote, s.timestamp()); err != nil {
		return mapSchemaError("append vote", err)
	}
	return nil
}
