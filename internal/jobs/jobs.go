// Package jobs runs the periodic maintenance work of the API server.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
)

type Reindexer interface {
	ReindexAll(ctx context.Context) (int, error)
}

type FormSweeper interface {
	DeleteStaleForms(ctx context.Context, olderThan time.Time) (int64, error)
}

type Config struct {
	ReindexSchedule string
	SweepSchedule   string
	StaleFormAge    time.Duration
	Timeout         time.Duration
}

type Scheduler struct {
	cron      *cron.Cron
	reindexer Reindexer
	sweeper   FormSweeper
	cfg       Config
	now       func() time.Time
}

// New registers the jobs. A nil reindexer or an empty schedule skips that job.
func New(cfg Config, reindexer Reindexer, sweeper FormSweeper) (*Scheduler, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	s := &Scheduler{
		cron:      cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		reindexer: reindexer,
		sweeper:   sweeper,
		cfg:       cfg,
		now:       time.Now,
	}
	if reindexer != nil && cfg.ReindexSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.ReindexSchedule, s.runReindex); err != nil {
			return nil, fmt.Errorf("schedule reindex %q: %w", cfg.ReindexSchedule, err)
		}
	}
	if sweeper != nil && cfg.SweepSchedule != "" && cfg.StaleFormAge > 0 {
		if _, err := s.cron.AddFunc(cfg.SweepSchedule, s.runSweep); err != nil {
			return nil, fmt.Errorf("schedule sweep %q: %w", cfg.SweepSchedule, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Infof("jobs: scheduler started with %d entries", len(s.cron.Entries()))
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warnf("jobs: stop timed out")
	}
}

func (s *Scheduler) runReindex() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	if _, err := Reindex(ctx, s.reindexer); err != nil {
		log.WithError(err).Error("jobs: reindex failed")
	}
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	if _, err := Sweep(ctx, s.sweeper, s.now(), s.cfg.StaleFormAge); err != nil {
		log.WithError(err).Error("jobs: stale form sweep failed")
	}
}

// Reindex rebuilds the question search index.
func Reindex(ctx context.Context, reindexer Reindexer) (int, error) {
	started := time.Now()
	count, err := reindexer.ReindexAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("reindex questions: %w", err)
	}
	log.WithFields(log.Fields{"questions": count, "duration_ms": time.Since(started).Milliseconds()}).Info("jobs: questions reindexed")
	return count, nil
}

// Sweep deletes empty in-progress intake forms untouched for longer than maxAge.
func Sweep(ctx context.Context, sweeper FormSweeper, now time.Time, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, fmt.Errorf("sweep: max age must be positive")
	}
	cutoff := now.Add(-maxAge)
	deleted, err := sweeper.DeleteStaleForms(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale forms: %w", err)
	}
	if deleted > 0 {
		log.WithFields(log.Fields{"deleted": deleted, "cutoff": cutoff.Format(time.RFC3339)}).Info("jobs: stale intake forms removed")
	}
	return deleted, nil
}
