package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baharkarakas/txn-aggregator/internal/events"
	"github.com/baharkarakas/txn-aggregator/internal/metrics"
	"github.com/baharkarakas/txn-aggregator/internal/models"
	repo "github.com/baharkarakas/txn-aggregator/internal/repository"
	"github.com/baharkarakas/txn-aggregator/internal/upstream"
	"github.com/baharkarakas/txn-aggregator/internal/worker"
)

// ErrSyncInProgress is returned by TrySync while another run holds the guard.
var ErrSyncInProgress = errors.New("sync already in progress")

const (
	TriggerManual   = "manual"
	TriggerPeriodic = "periodic"

	// MaxLookbackDays bounds the initial sync window.
	MaxLookbackDays = 3650
)

// PageFetcher is the upstream capability the sync loop depends on.
type PageFetcher interface {
	FetchPage(ctx context.Context, req upstream.PageRequest) (*upstream.TransactionsPage, error)
}

type SyncResult struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Pages     int       `json:"pages"`
	Processed int       `json:"processed"`
}

// SyncService pulls upstream pages into the store. At most one run is active
// at a time: Sync waits for the guard, TrySync gives up immediately.
type SyncService struct {
	store   repo.Transactions
	source  PageFetcher
	log     *slog.Logger
	now     func() time.Time
	guard   chan struct{}
	pub     events.Publisher
	subject string
	wp      *worker.Pool
}

type SyncOption func(*SyncService)

func WithSyncLogger(l *slog.Logger) SyncOption {
	return func(s *SyncService) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) SyncOption {
	return func(s *SyncService) { s.now = now }
}

// WithEvents publishes a SyncCompleted event on subject after every run.
// When wp is non-nil publishing happens on the pool instead of inline, and an
// event is dropped if the pool queue is full.
func WithEvents(pub events.Publisher, subject string, wp *worker.Pool) SyncOption {
	return func(s *SyncService) {
		if pub == nil {
			pub = events.NopPublisher{}
		}
		s.pub = pub
		s.subject = subject
		s.wp = wp
	}
}

func NewSyncService(store repo.Transactions, source PageFetcher, opts ...SyncOption) *SyncService {
	s := &SyncService{
		store:  store,
		source: source,
		log:    slog.Default(),
		now:    time.Now,
		guard:  make(chan struct{}, 1),
		pub:    events.NopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs a manual sync, queueing behind any run already in flight.
func (s *SyncService) Sync(ctx context.Context, lookbackDays int) (SyncResult, error) {
	select {
	case s.guard <- struct{}{}:
	case <-ctx.Done():
		return SyncResult{}, ctx.Err()
	}
	defer func() { <-s.guard }()
	return s.run(ctx, TriggerManual, lookbackDays)
}

// TrySync runs a periodic sync unless one is already in flight.
func (s *SyncService) TrySync(ctx context.Context, lookbackDays int) (SyncResult, error) {
	select {
	case s.guard <- struct{}{}:
	default:
		metrics.SyncRunsTotal.WithLabelValues(TriggerPeriodic, "skipped").Inc()
		return SyncResult{}, ErrSyncInProgress
	}
	defer func() { <-s.guard }()
	return s.run(ctx, TriggerPeriodic, lookbackDays)
}

func (s *SyncService) run(ctx context.Context, trigger string, lookbackDays int) (SyncResult, error) {
	if lookbackDays < 1 || lookbackDays > MaxLookbackDays {
		return SyncResult{}, fmt.Errorf("lookback days must be in [1, %d], got %d", MaxLookbackDays, lookbackDays)
	}

	now := s.now()
	start := now.AddDate(0, 0, -lookbackDays)
	latest, ok, err := s.store.LatestTimestamp(ctx)
	if err != nil {
		s.log.Error("transaction sync failed", "trigger", trigger, "err", err)
		metrics.SyncRunsTotal.WithLabelValues(trigger, "error").Inc()
		return SyncResult{}, fmt.Errorf("read sync cursor: %w", err)
	}
	if ok {
		start = latest
	}

	s.log.Info("syncing transactions", "trigger", trigger, "from", start, "to", now)
	res, err := s.FetchAllPages(ctx, start, now)
	s.notify(trigger, res, err)
	if err != nil {
		s.log.Error("transaction sync failed", "trigger", trigger, "processed", res.Processed, "err", err)
		metrics.SyncRunsTotal.WithLabelValues(trigger, "error").Inc()
		return res, err
	}

	count, err := s.store.Count(ctx)
	if err == nil {
		metrics.StoredTransactions.Set(float64(count))
	}
	s.log.Info("sync completed", "trigger", trigger, "pages", res.Pages, "processed", res.Processed, "stored", count)
	metrics.SyncRunsTotal.WithLabelValues(trigger, "ok").Inc()
	return res, nil
}

// FetchAllPages walks pages 1..totalPages of [start, end]. The first failed
// fetch or store write ends the walk; pages stored before it stay stored.
func (s *SyncService) FetchAllPages(ctx context.Context, start, end time.Time) (SyncResult, error) {
	res := SyncResult{StartTime: start, EndTime: end}
	page, totalPages := 1, 1

	for page <= totalPages {
		resp, err := s.source.FetchPage(ctx, upstream.PageRequest{Page: page, Start: start, End: end})
		if err != nil {
			s.log.Error("error during pagination", "page", page, "err", err)
			return res, fmt.Errorf("page %d: %w", page, err)
		}

		// empty pages are stored too so the store's last-updated time advances
		n, err := s.store.UpsertMany(ctx, s.mapItems(resp.Items))
		if err != nil {
			s.log.Error("error storing page", "page", page, "err", err)
			return res, fmt.Errorf("store page %d: %w", page, err)
		}
		res.Processed += n
		metrics.TransactionsUpserted.Add(float64(n))
		res.Pages++
		metrics.SyncPagesTotal.Inc()

		totalPages = resp.Meta.TotalPages
		s.log.Debug("processed page", "page", page, "total_pages", totalPages, "processed", res.Processed)
		page++
	}

	s.log.Info("completed fetching all transactions", "processed", res.Processed)
	return res, nil
}

func (s *SyncService) mapItems(items []upstream.APITransaction) []models.Transaction {
	out := make([]models.Transaction, 0, len(items))
	for _, it := range items {
		tx, err := MapAPITransaction(it)
		if err != nil {
			s.log.Warn("skipping upstream item", "id", it.ID, "err", err)
			continue
		}
		out = append(out, tx)
	}
	return out
}

// MapAPITransaction converts an upstream item into the stored shape.
func MapAPITransaction(it upstream.APITransaction) (models.Transaction, error) {
	if it.ID == "" {
		return models.Transaction{}, errors.New("missing id")
	}
	ts, err := time.Parse(time.RFC3339Nano, it.CreatedAt)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("createdAt: %w", err)
	}
	cur := models.CanonicalCurrency
	if it.Currency != nil && *it.Currency != "" {
		cur = *it.Currency
	}
	return models.Transaction{
		ID:        it.ID,
		UserID:    it.UserID,
		Timestamp: ts,
		Status:    models.StatusFromType(it.Type),
		Amount:    it.Amount,
		Currency:  cur,
	}, nil
}

func (s *SyncService) notify(trigger string, res SyncResult, runErr error) {
	ev := events.SyncCompleted{
		Trigger:    trigger,
		StartTime:  res.StartTime,
		EndTime:    res.EndTime,
		Pages:      res.Pages,
		Processed:  res.Processed,
		FinishedAt: s.now(),
	}
	if runErr != nil {
		ev.Error = runErr.Error()
	}

	publish := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.pub.Publish(ctx, s.subject, ev); err != nil {
			s.log.Warn("publish sync event", "subject", s.subject, "err", err)
		}
	}
	if s.wp != nil {
		if !s.wp.TrySubmit(publish) {
			s.log.Warn("event queue full, dropping sync event", "subject", s.subject, "trigger", trigger)
		}
		return
	}
	publish()
}
