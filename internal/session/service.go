// Package session coordinates voting rounds on top of the append-only store:
// host transitions, vote submission, and the per-viewer visible result set.
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clp/pointingpoker/internal/config"
	"github.com/clp/pointingpoker/internal/store"
	"github.com/clp/pointingpoker/internal/team"
)

// Vote display sentinels. PendingVote marks a participant who has not voted
// yet; HiddenVote masks another participant's in-flight vote before reveal.
const (
	PendingVote = "⌛"
	HiddenVote  = "❓"
)

// Service exposes the session synchronization operations. All state lives in
// the store; a Service carries no per-session globals, so one instance serves
// every team and viewer concurrently.
type Service struct {
	store *store.Store
	cfg   config.Config
	log   zerolog.Logger
}

// New creates a session service.
func New(st *store.Store, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{store: st, cfg: cfg, log: log}
}

// withSchemaRecovery runs an append, and on ErrSchemaMissing reinitializes
// the namespace schema and retries exactly once. A second failure is fatal
// for the request; there is no deeper retry loop.
func (s *Service) withSchemaRecovery(ctx context.Context, ns string, op func() error) error {
	err := op()
	if !errors.Is(err, store.ErrSchemaMissing) {
		return err
	}
	s.log.Warn().Str("team", ns).Msg("namespace schema missing, reinitializing")
	if err := s.store.EnsureSchema(ctx, ns); err != nil {
		return err
	}
	return op()
}

// Login records a presence ping for the user and returns the sanitized team
// namespace. The first login against a fresh team creates its schema.
func (s *Service) Login(ctx context.Context, teamName, user string) (string, error) {
	ns, err := team.Parse(teamName)
	if err != nil {
		return "", err
	}
	if user == "" {
		return "", ErrInvalidUserName
	}
	err = s.withSchemaRecovery(ctx, ns, func() error {
		return s.store.AppendPresence(ctx, ns, user)
	})
	if err != nil {
		return "", err
	}
	s.log.Info().Str("team", ns).Str("user", user).Msg("user logged in")
	return ns, nil
}

// StartRound mints a fresh round id and opens it. It always creates a new
// round; a revealed round is never reopened. Host-only by convention: the
// role flag is advisory and unauthenticated.
func (s *Service) StartRound(ctx context.Context, teamName string) (string, error) {
	ns, err := team.Parse(teamName)
	if err != nil {
		return "", err
	}
	roundID := uuid.NewString()
	err = s.withSchemaRecovery(ctx, ns, func() error {
		return s.store.AppendStatus(ctx, ns, roundID, store.StatusOpen)
	})
	if err != nil {
		return "", err
	}
	s.log.Info().Str("team", ns).Str("round", roundID).Msg("round started")
	return roundID, nil
}

// Reveal transitions a round to revealed. Revealing again is a no-op beyond
// a timestamp bump; the effective status stays revealed. An empty round id
// resolves to the team's current round.
func (s *Service) Reveal(ctx context.Context, teamName, roundID string) error {
	ns, err := team.Parse(teamName)
	if err != nil {
		return err
	}
	if roundID == "" {
		roundID, err = s.store.CurrentRoundID(ctx, ns)
		if err != nil && !errors.Is(err, store.ErrSchemaMissing) {
			return err
		}
		if roundID == "" {
			return ErrNoActiveRound
		}
	}
	err = s.withSchemaRecovery(ctx, ns, func() error {
		return s.store.AppendStatus(ctx, ns, roundID, store.StatusRevealed)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("team", ns).Str("round", roundID).Msg("round revealed")
	return nil
}

// CurrentRound returns the team's active round id, "" when no round exists
// yet. A missing schema reads as "nothing written yet", not a failure.
func (s *Service) CurrentRound(ctx context.Context, teamName string) (string, error) {
	ns, err := team.Parse(teamName)
	if err != nil {
		return "", err
	}
	roundID, err := s.store.CurrentRoundID(ctx, ns)
	if errors.Is(err, store.ErrSchemaMissing) {
		return "", nil
	}
	return roundID, err
}

// JoinRound appends the pending sentinel for a user who has no vote event in
// the round yet, so they show up as "still thinking" for everyone.
func (s *Service) JoinRound(ctx context.Context, teamName, roundID, user string) error {
	ns, err := team.Parse(teamName)
	if err != nil {
		return err
	}
	if user == "" {
		return ErrInvalidUserName
	}
	if roundID == "" {
		return ErrNoActiveRound
	}
	voted, err := s.store.HasVoted(ctx, ns, roundID, user)
	if err != nil && !errors.Is(err, store.ErrSchemaMissing) {
		return err
	}
	if voted {
		return nil
	}
	return s.withSchemaRecovery(ctx, ns, func() error {
		return s.store.AppendVote(ctx, ns, roundID, user, PendingVote)
	})
}

// SubmitVote appends a vote event. Tokens outside the configured set are
// rejected, as are submissions after the round was revealed. Resubmitting
// while the round is open simply supersedes the previous vote.
func (s *Service) SubmitVote(ctx context.Context, teamName, roundID, user, vote string) error {
	ns, err := team.Parse(teamName)
	if err != nil {
		return err
	}
	if user == "" {
		return ErrInvalidUserName
	}
	if roundID == "" {
		return ErrNoActiveRound
	}
	if !s.cfg.VoteAllowed(vote) {
		return ErrUnknownVote
	}
	status, err := s.store.RoundStatus(ctx, ns, roundID)
	if err != nil && !errors.Is(err, store.ErrSchemaMissing) {
		return err
	}
	if status == store.StatusRevealed {
		return ErrVotingClosed
	}
	return s.withSchemaRecovery(ctx, ns, func() error {
		return s.store.AppendVote(ctx, ns, roundID, user, vote)
	})
}
