package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clp/pointingpoker/internal/config"
	"github.com/clp/pointingpoker/internal/store"
	"github.com/clp/pointingpoker/internal/team"
)

func testConfig() config.Config {
	return config.Config{
		AllowedVotes:    []string{"?", "☕", "0", "0.5", "1", "2", "3", "5", "8", "13", "21"},
		RetentionWindow: 2 * time.Hour,
		PollInterval:    2 * time.Second,
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "poker.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return New(st, testConfig(), zerolog.Nop())
}

func TestLoginCreatesSchemaOnFirstUse(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// Nothing has ever been written for this team; the append must succeed
	// after a single internal schema-recovery cycle.
	ns, err := svc.Login(ctx, "Team Alpha!", "alice")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if ns != "teamalpha" {
		t.Fatalf("expected namespace teamalpha, got %q", ns)
	}

	// A second login must not reset the schema again.
	if _, err := svc.Login(ctx, "Team Alpha!", "bob"); err != nil {
		t.Fatalf("second login: %v", err)
	}
}

func TestLoginRecoveryPreservesOtherNamespaces(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "alpha", "alice"); err != nil {
		t.Fatalf("login alpha: %v", err)
	}
	roundID, err := svc.StartRound(ctx, "alpha")
	if err != nil {
		t.Fatalf("start round: %v", err)
	}

	// First write against beta triggers schema recovery for beta only.
	if _, err := svc.Login(ctx, "beta", "zoe"); err != nil {
		t.Fatalf("login beta: %v", err)
	}

	current, err := svc.CurrentRound(ctx, "alpha")
	if err != nil {
		t.Fatalf("current round alpha: %v", err)
	}
	if current != roundID {
		t.Fatalf("alpha's round lost after beta recovery: want %s, got %s", roundID, current)
	}
}

func TestLoginValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "1234!", "alice"); !errors.Is(err, team.ErrInvalidTeamName) {
		t.Fatalf("expected ErrInvalidTeamName, got %v", err)
	}
	if _, err := svc.Login(ctx, "alpha", ""); !errors.Is(err, ErrInvalidUserName) {
		t.Fatalf("expected ErrInvalidUserName, got %v", err)
	}
}

func TestStartRoundAlwaysMintsNewRound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.StartRound(ctx, "alpha")
	if err != nil {
		t.Fatalf("start round: %v", err)
	}
	second, err := svc.StartRound(ctx, "alpha")
	if err != nil {
		t.Fatalf("start round: %v", err)
	}
	if first == second {
		t.Fatal("rounds must have distinct ids")
	}

	current, err := svc.CurrentRound(ctx, "alpha")
	if err != nil {
		t.Fatalf("current round: %v", err)
	}
	if current != second {
		t.Fatalf("expected newest round %s to be current, got %s", second, current)
	}
}

func TestCurrentRoundWithoutAnyRound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// Team that never wrote anything: waiting state, not an error.
	current, err := svc.CurrentRound(ctx, "alpha")
	if err != nil {
		t.Fatalf("current round: %v", err)
	}
	if current != "" {
		t.Fatalf("expected no current round, got %q", current)
	}
}

func TestRevealIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "alpha", "alice"); err != nil {
		t.Fatalf("login: %v", err)
	}
	roundID, err := svc.StartRound(ctx, "alpha")
	if err != nil {
		t.Fatalf("start round: %v", err)
	}
	if err := svc.SubmitVote(ctx, "alpha", roundID, "alice", "5"); err != nil {
		t.Fatalf("submit vote: %v", err)
	}

	if err := svc.Reveal(ctx, "alpha", roundID); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	once, err := svc.VisibleResults(ctx, "alpha", roundID, "alice")
	if err != nil {
		t.Fatalf("visible results: %v", err)
	}

	if err := svc.Reveal(ctx, "alpha", roundID); err != nil {
		t.Fatalf("second reveal: %v", err)
	}
	twice, err := svc.VisibleResults(ctx, "alpha", roundID, "alice")
	if err != nil {
		t.Fatalf("visible results: %v", err)
	}

	if len(once) != len(twice) {
		t.Fatalf("revealing twice changed the result set: %d vs %d rows", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("row %d differs after second reveal: %+v vs %+v", i, once[i], twice[i])
		}
	}

	// The remaining round stays current after repeated reveals.
	current, err := svc.CurrentRound(ctx, "alpha")
	if err != nil {
		t.Fatalf("current round: %v", err)
	}
	if current != roundID {
		t.Fatalf("expected round %s current, got %s", roundID, current)
	}
}

func TestRevealWithoutRound(t *testing.T) {
	svc := newTestService(t)

	if err := svc.Reveal(context.Background(), "alpha", ""); !errors.Is(err, ErrNoActiveRound) {
		t.Fatalf("expected ErrNoActiveRound, got %v", err)
	}
}

func TestSubmitVoteValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	roundID, err := svc.StartRound(ctx, "alpha")
	if err != nil {
		t.Fatalf("start round: %v", err)
	}

	if err := svc.SubmitVote(ctx, "alpha", roundID, "alice", "42"); !errors.Is(err, ErrUnknownVote) {
		t.Fatalf("expected ErrUnknownVote, got %v", err)
	}
	if err := svc.SubmitVote(ctx, "alpha", "", "alice", "5"); !errors.Is(err, ErrNoActiveRound) {
		t.Fatalf("expected ErrNoActiveRound, got %v", err)
	}
	if err := svc.SubmitVote(ctx, "alpha", roundID, "", "5"); !errors.Is(err, ErrInvalidUserName) {
		t.Fatalf("expected ErrInvalidUserName, got %v", err)
	}
	if err := svc.SubmitVote(ctx, "alpha", roundID, "alice", "5"); err != nil {
		t.Fatalf("valid vote rejected: %v", err)
	}
}

func TestSubmitVoteAfterRevealRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	roundID, err := svc.StartRound(ctx, "alpha")
	if err != nil {
		t.Fatalf("start round: %v", err)
	}
	if err := svc.Reveal(ctx, "alpha", roundID); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if err := svc.SubmitVote(ctx, "alpha", roundID, "alice", "5"); !errors.Is(err, ErrVotingClosed) {
		t.Fatalf("expected ErrVotingClosed, got %v", err)
	}
}

func TestJoinRoundAppendsPendingOnce(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	roundID, err := svc.StartRound(ctx, "alpha")
	if err != nil {
		t.Fatalf("start round: %v", err)
	}

	if err := svc.JoinRound(ctx, "alpha", roundID, "alice"); err != nil {
		t.Fatalf("join round: %v", err)
	}
	rows, err := svc.VisibleResults(ctx, "alpha", roundID, "alice")
	if err != nil {
		t.Fatalf("visible results: %v", err)
	}
	if len(rows) != 1 || rows[0].Vote != PendingVote {
		t.Fatalf("expected single pending row, got %+v", rows)
	}

	// Joining again must not disturb anything; after a real vote the join
	// must not reset it back to pending.
	if err := svc.JoinRound(ctx, "alpha", roundID, "alice"); err != nil {
		t.Fatalf("second join: %v", err)
	}
	if err := svc.SubmitVote(ctx, "alpha", roundID, "alice", "8"); err != nil {
		t.Fatalf("submit vote: %v", err)
	}
	if err := svc.JoinRound(ctx, "alpha", roundID, "alice"); err != nil {
		t.Fatalf("join after voting: %v", err)
	}

	rows, err = svc.VisibleResults(ctx, "alpha", roundID, "alice")
	if err != nil {
		t.Fatalf("visible results: %v", err)
	}
	if len(rows) != 1 || rows[0].Vote != "8" {
		t.Fatalf("expected alice's own vote 8, got %+v", rows)
	}
}
