package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/baharkarakas/txn-aggregator/internal/services"
)

// Syncer is the part of SyncService the scheduler drives.
type Syncer interface {
	TrySync(ctx context.Context, lookbackDays int) (services.SyncResult, error)
}

// Sweeper drops idle rate limiter entries.
type Sweeper interface {
	Sweep(now time.Time) int
}

type Config struct {
	Interval      time.Duration
	LookbackDays  int
	SweepInterval time.Duration // 0 disables sweeping
}

// Scheduler fires a periodic sync on every tick and optionally sweeps the
// rate limiter. Overlapping ticks are dropped by the syncer.
type Scheduler struct {
	cfg     Config
	syncer  Syncer
	sweeper Sweeper
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, syncer Syncer, sweeper Sweeper, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LookbackDays < 1 {
		cfg.LookbackDays = 1
	}
	return &Scheduler{cfg: cfg, syncer: syncer, sweeper: sweeper, logger: logger}
}

// Start launches the background loops. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return errors.New("scheduler interval must be > 0")
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.syncLoop(ctx)

	if s.sweeper != nil && s.cfg.SweepInterval > 0 {
		s.wg.Add(1)
		go s.sweepLoop(ctx)
	}

	s.logger.Info("scheduler started", "interval", s.cfg.Interval, "lookback_days", s.cfg.LookbackDays)
	return nil
}

// Stop cancels the loops and waits for an in-flight tick, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler shutdown timeout")
		return ctx.Err()
	}
}

func (s *Scheduler) syncLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.syncer.TrySync(ctx, s.cfg.LookbackDays)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrSyncInProgress):
		s.logger.Debug("periodic sync skipped, previous run still active")
	case ctx.Err() != nil:
	default:
		s.logger.Error("periodic sync failed", "err", err)
	}
}

func (s *Scheduler) sweepLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.sweeper.Sweep(now); n > 0 {
				s.logger.Debug("rate limiter sweep", "removed", n)
			}
		}
	}
}
