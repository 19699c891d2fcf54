package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsWorker keeps the rankings snapshot warm so the first request after
// a burst of votes does not pay the full recompute. Rankings itself is
// watermark-guarded, so a tick with no changes is a single key read.
type StatsWorker struct {
	stats    *StatsService
	interval time.Duration
}

func NewStatsWorker(stats *StatsService, interval time.Duration) *StatsWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &StatsWorker{stats: stats, interval: interval}
}

// Start runs the refresh loop until the context is cancelled.
func (w *StatsWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("stats worker starting")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.stats.Rankings(ctx); err != nil {
				log.Warn().Err(err).Msg("stats refresh failed")
			}
		case <-ctx.Done():
			log.Info().Msg("stats worker stopping")
			return
		}
	}
}
