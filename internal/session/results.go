package session

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"

	"github.com/clp/pointingpoker/internal/store"
	"github.com/clp/pointingpoker/internal/team"
)

// AverageLabel names the synthetic trailing row carrying the round average.
const AverageLabel = "Average points:"

// Row is one line of the visible result set.
type Row struct {
	Name string `json:"name"`
	Vote string `json:"vote"`
}

// Snapshot is the unit of convergence: everything a viewer needs to render
// the current state of their team's voting.
type Snapshot struct {
	Team    string       `json:"team"`
	RoundID string       `json:"roundId"`
	Status  store.Status `json:"status"`
	Rows    []Row        `json:"rows"`
}

// candidate is a result row before masking, with the recency key used for
// per-name deduplication.
type candidate struct {
	vote      string
	timestamp string
	seq       int64
}

func (c candidate) newerThan(o candidate) bool {
	if c.timestamp != o.timestamp {
		return c.timestamp > o.timestamp
	}
	return c.seq > o.seq
}

// VisibleResults computes the per-viewer result set for a round, per the
// reveal state: while the round is open every other participant's vote is
// masked (the pending sentinel stays visible as-is), present-but-unvoted
// users are merged in as pending, and once revealed a trailing average row
// over the numeric votes is appended. An unknown or empty round id yields an
// empty set; the caller shows a waiting state.
func (s *Service) VisibleResults(ctx context.Context, teamName, roundID, viewer string) ([]Row, error) {
	ns, err := team.Parse(teamName)
	if err != nil {
		return nil, err
	}
	if roundID == "" {
		return nil, nil
	}

	status, err := s.store.RoundStatus(ctx, ns, roundID)
	if err != nil {
		if errors.Is(err, store.ErrSchemaMissing) {
			return nil, nil
		}
		return nil, err
	}
	if status == store.StatusNone {
		return nil, nil
	}

	votes, err := s.store.LatestVotes(ctx, ns, roundID)
	if err != nil {
		return nil, err
	}
	present, err := s.store.PresentUsers(ctx, ns, s.cfg.RetentionWindow)
	if err != nil {
		return nil, err
	}

	// Union the effective votes with pending placeholders for present users
	// lacking any vote event, then keep the newest row per name.
	merged := make(map[string]candidate, len(votes)+len(present))
	for _, v := range votes {
		c := candidate{vote: v.Vote, timestamp: v.Timestamp, seq: v.Seq}
		if prev, ok := merged[v.Name]; !ok || c.newerThan(prev) {
			merged[v.Name] = c
		}
	}
	for _, p := range present {
		if _, ok := merged[p.Name]; ok {
			continue
		}
		merged[p.Name] = candidate{vote: PendingVote, timestamp: p.Timestamp}
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]Row, 0, len(names)+1)
	for _, name := range names {
		c := merged[name]
		display := c.vote
		if status == store.StatusOpen && c.vote != PendingVote && name != viewer {
			display = HiddenVote
		}
		rows = append(rows, Row{Name: name, Vote: display})
	}

	if status == store.StatusRevealed {
		if avg, ok := average(rows); ok {
			rows = append(rows, Row{Name: AverageLabel, Vote: avg})
		}
	}
	return rows, nil
}

// Snapshot resolves the team's current round and its visible results in one
// call. The poll loop re-derives this every interval.
func (s *Service) Snapshot(ctx context.Context, teamName, viewer string) (Snapshot, error) {
	ns, err := team.Parse(teamName)
	if err != nil {
		return Snapshot{}, err
	}

	roundID, err := s.store.CurrentRoundID(ctx, ns)
	if err != nil {
		if errors.Is(err, store.ErrSchemaMissing) {
			return Snapshot{Team: ns, Status: store.StatusNone}, nil
		}
		return Snapshot{}, err
	}
	if roundID == "" {
		return Snapshot{Team: ns, Status: store.StatusNone}, nil
	}

	status, err := s.store.RoundStatus(ctx, ns, roundID)
	if err != nil {
		return Snapshot{}, err
	}
	rows, err := s.VisibleResults(ctx, ns, roundID, viewer)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Team: ns, RoundID: roundID, Status: status, Rows: rows}, nil
}

// average computes the mean of the votes that parse as numbers, rounded to
// one decimal. Tokens like "?" or the coffee cup are excluded from the mean,
// not counted as zero. ok is false when nothing numeric was voted.
func average(rows []Row) (string, bool) {
	var sum float64
	var count int
	for _, r := range rows {
		v, err := strconv.ParseFloat(r.Vote, 64)
		if err != nil {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return "", false
	}
	avg := math.Round(sum/float64(count)*10) / 10
	return strconv.FormatFloat(avg, 'f', -1, 64), true
}
