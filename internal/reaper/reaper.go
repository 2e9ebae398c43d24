// Package reaper fails jobs stuck in a non-terminal status for too long,
// typically after a worker crash lost their queued task.
package reaper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/meeting-engine/internal/database"
)

const failureMessage = "processing timed out"

type Reaper struct {
	db       *database.DB
	interval time.Duration
	maxAge   time.Duration
	log      zerolog.Logger
}

func New(db *database.DB, interval, maxAge time.Duration, log zerolog.Logger) *Reaper {
	return &Reaper{
		db:       db,
		interval: interval,
		maxAge:   maxAge,
		log:      log.With().Str("component", "reaper").Logger(),
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	r.log.Info().Dur("interval", r.interval).Dur("max_age", r.maxAge).Msg("reaper started")

	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reaper stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	n, err := r.db.FailStaleJobs(ctx, r.maxAge, failureMessage)
	if err != nil {
		r.log.Error().Err(err).Msg("stale job sweep failed")
		return
	}
	if n > 0 {
		r.log.Warn().Int64("count", n).Msg("failed stale jobs")
	}
}
