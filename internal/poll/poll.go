// Package poll implements the client refresh loop: a fixed-interval,
// cooperatively scheduled re-derivation of the visible session state. There
// is no push channel; bounded staleness of one interval is the contract.
package poll

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/clp/pointingpoker/internal/session"
)

// Source produces the snapshot a viewer converges on. *session.Service
// satisfies it.
type Source interface {
	Snapshot(ctx context.Context, team, viewer string) (session.Snapshot, error)
}

// Poller re-derives a viewer's snapshot every Interval until the context is
// canceled. No backoff, no adaptive cadence.
type Poller struct {
	Interval time.Duration
	Source   Source
	Log      zerolog.Logger
}

// Run emits one snapshot immediately, then one per tick, by calling fn.
// Snapshot errors are logged and the tick skipped; a transient read failure
// must not kill the loop. Run returns when ctx is done.
func (p *Poller) Run(ctx context.Context, team, viewer string, fn func(session.Snapshot)) {
	p.emit(ctx, team, viewer, fn)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.emit(ctx, team, viewer, fn)
		}
	}
}

func (p *Poller) emit(ctx context.Context, team, viewer string, fn func(session.Snapshot)) {
	snap, err := p.Source.Snapshot(ctx, team, viewer)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.Log.Warn().Err(err).Str("team", team).Str("viewer", viewer).Msg("snapshot failed, skipping tick")
		return
	}
	fn(snap)
}
