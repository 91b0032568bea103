// Package janitor runs the periodic hygiene and settlement-retry jobs.
package janitor

import (
	"context"
	"time"

	"match-reward-engine/internal/match"
	"match-reward-engine/internal/settlement"
	"match-reward-engine/internal/store"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

type Cleaner interface {
	Cleanup(ctx context.Context, nonceCutoff, rateCutoff, usageCutoff time.Time) (store.CleanupReport, error)
}

type Settler interface {
	RetryPending(ctx context.Context) (settlement.RetryReport, error)
}

type Config struct {
	CleanupInterval    time.Duration
	SettlementInterval time.Duration
	// NonceRetention must cover the nonce window plus the accepted clock
	// skew, otherwise a stale-but-accepted timestamp could reuse a nonce.
	NonceRetention time.Duration
	RateRetention  time.Duration
	UsageRetention time.Duration
}

type Janitor struct {
	sched   gocron.Scheduler
	cleaner Cleaner
	settler Settler
	cfg     Config
	now     func() time.Time
	ctx     context.Context
	cancel  context.CancelFunc
}

// New registers the jobs without starting them. A nil settler skips the
// settlement job.
func New(cleaner Cleaner, settler Settler, cfg Config) (*Janitor, error) {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.SettlementInterval <= 0 {
		cfg.SettlementInterval = 30 * time.Second
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	j := &Janitor{sched: sched, cleaner: cleaner, settler: settler, cfg: cfg, now: time.Now, ctx: ctx, cancel: cancel}

	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.CleanupInterval),
		gocron.NewTask(j.cleanupTask),
		gocron.WithName("hygiene"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		cancel()
		return nil, err
	}
	if settler != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(cfg.SettlementInterval),
			gocron.NewTask(j.settlementTask),
			gocron.WithName("settlement"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			cancel()
			return nil, err
		}
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.sched.Start()
}

func (j *Janitor) Shutdown() error {
	j.cancel()
	return j.sched.Shutdown()
}

// RunCleanup performs one hygiene pass. Usage rows are kept for whole days.
func (j *Janitor) RunCleanup(ctx context.Context) (store.CleanupReport, error) {
	now := j.now().UTC()
	return j.cleaner.Cleanup(ctx,
		now.Add(-j.cfg.NonceRetention),
		now.Add(-j.cfg.RateRetention),
		match.DayBucket(now.Add(-j.cfg.UsageRetention)),
	)
}

func (j *Janitor) cleanupTask() {
	rep, err := j.RunCleanup(j.ctx)
	if err != nil {
		log.Error().Err(err).Msg("hygiene pass failed")
		return
	}
	if rep.Nonces+rep.RateEntries+rep.UsageRows > 0 {
		log.Info().
			Int64("nonces", rep.Nonces).
			Int64("rate_entries", rep.RateEntries).
			Int64("usage_rows", rep.UsageRows).
			Msg("hygiene pass")
	}
}

func (j *Janitor) settlementTask() {
	rep, err := j.settler.RetryPending(j.ctx)
	if err != nil {
		log.Error().Err(err).Msg("settlement retry failed")
		return
	}
	if rep.Attempted > 0 {
		log.Info().Int("attempted", rep.Attempted).Int("minted", rep.Minted).Int("failed", rep.Failed).Msg("settlement retry")
	}
}
