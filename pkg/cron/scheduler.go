// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RateCache is the slice of the exchange cache the scheduler maintains.
type RateCache interface {
	Len() int
	Purge(olderThan time.Duration) int
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron   *cron.Cron
	cache  RateCache
	maxAge time.Duration
	logger *slog.Logger
}

// NewScheduler creates a job scheduler that keeps the rate cache bounded.
func NewScheduler(cache RateCache, maxAge time.Duration, logger *slog.Logger) *Scheduler {
	// Standard 5-field format, no seconds.
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:   c,
		cache:  cache,
		maxAge: maxAge,
		logger: logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	// Rate cache purge: runs daily at 3:00 AM
	_, err := s.cron.AddFunc("0 3 * * *", s.purgeRateCache)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the purge (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.purgeRateCache()
}

func (s *Scheduler) purgeRateCache() {
	removed := s.cache.Purge(s.maxAge)
	s.logger.Info("rate cache purge completed",
		slog.Int("removed", removed),
		slog.Int("remaining", s.cache.Len()),
	)
}
