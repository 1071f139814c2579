package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baharkarakas/txn-aggregator/internal/services"
)

type countingSyncer struct {
	calls atomic.Int32
	days  atomic.Int32
	err   error
}

func (c *countingSyncer) TrySync(_ context.Context, days int) (services.SyncResult, error) {
	c.calls.Add(1)
	c.days.Store(int32(days))
	return services.SyncResult{}, c.err
}

type countingSweeper struct{ calls atomic.Int32 }

func (c *countingSweeper) Sweep(time.Time) int {
	c.calls.Add(1)
	return 1
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestScheduler_TicksUntilStopped(t *testing.T) {
	syncer := &countingSyncer{}
	s := New(Config{Interval: 10 * time.Millisecond, LookbackDays: 1}, syncer, nil, quiet())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return syncer.calls.Load() >= 3 })

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	after := syncer.calls.Load()
	time.Sleep(40 * time.Millisecond)
	if got := syncer.calls.Load(); got != after {
		t.Errorf("calls after stop = %d, want %d", got, after)
	}
	if got := syncer.days.Load(); got != 1 {
		t.Errorf("lookback = %d, want 1", got)
	}
}

func TestScheduler_SurvivesSyncErrors(t *testing.T) {
	for _, err := range []error{services.ErrSyncInProgress, errors.New("upstream down")} {
		syncer := &countingSyncer{err: err}
		s := New(Config{Interval: 5 * time.Millisecond}, syncer, nil, quiet())
		_ = s.Start(context.Background())
		waitFor(t, func() bool { return syncer.calls.Load() >= 2 })
		_ = s.Stop(context.Background())
	}
}

func TestScheduler_Sweeps(t *testing.T) {
	sweeper := &countingSweeper{}
	s := New(Config{Interval: time.Hour, SweepInterval: 5 * time.Millisecond}, &countingSyncer{}, sweeper, quiet())
	_ = s.Start(context.Background())
	waitFor(t, func() bool { return sweeper.calls.Load() >= 2 })
	_ = s.Stop(context.Background())
}

func TestScheduler_SweepDisabled(t *testing.T) {
	sweeper := &countingSweeper{}
	s := New(Config{Interval: time.Hour}, &countingSyncer{}, sweeper, quiet())
	_ = s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	_ = s.Stop(context.Background())
	if n := sweeper.calls.Load(); n != 0 {
		t.Errorf("sweeps = %d, want 0", n)
	}
}

func TestScheduler_RejectsZeroInterval(t *testing.T) {
	if err := New(Config{}, &countingSyncer{}, nil, quiet()).Start(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
