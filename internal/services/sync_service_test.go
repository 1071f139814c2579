package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/baharkarakas/txn-aggregator/internal/events"
	"github.com/baharkarakas/txn-aggregator/internal/models"
	repo "github.com/baharkarakas/txn-aggregator/internal/repository"
	"github.com/baharkarakas/txn-aggregator/internal/repository/memory"
	"github.com/baharkarakas/txn-aggregator/internal/upstream"
	"github.com/baharkarakas/txn-aggregator/internal/worker"
	"github.com/shopspring/decimal"
)

var syncNow = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

// fakeFetcher serves pages from memory and records every request.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[int]*upstream.TransactionsPage
	failAt   int
	requests []upstream.PageRequest
	block    chan struct{}
	entered  chan struct{}
}

func (f *fakeFetcher) FetchPage(ctx context.Context, req upstream.PageRequest) (*upstream.TransactionsPage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failAt == req.Page {
		return nil, &upstream.APIError{StatusCode: http.StatusTooManyRequests, Message: "Too Many Requests"}
	}
	p, ok := f.pages[req.Page]
	if !ok {
		return &upstream.TransactionsPage{}, nil
	}
	return p, nil
}

func (f *fakeFetcher) calls() []upstream.PageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstream.PageRequest(nil), f.requests...)
}

// failingStore wraps a real store and injects errors.
type failingStore struct {
	repo.Transactions
	queryErr  error
	upsertErr error
	cursorErr error
}

func (s *failingStore) Query(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.Transactions.Query(ctx, f)
}

func (s *failingStore) UpsertMany(ctx context.Context, txs []models.Transaction) (int, error) {
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	return s.Transactions.UpsertMany(ctx, txs)
}

func (s *failingStore) LatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	if s.cursorErr != nil {
		return time.Time{}, false, s.cursorErr
	}
	return s.Transactions.LatestTimestamp(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SyncCompleted
	subj   []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subj = append(p.subj, subject)
	p.events = append(p.events, v.(events.SyncCompleted))
	return nil
}

func item(id, user, typ string, amount int64, at time.Time) upstream.APITransaction {
	return upstream.APITransaction{
		ID:        id,
		UserID:    user,
		CreatedAt: at.UTC().Format(time.RFC3339Nano),
		Type:      typ,
		Amount:    decimal.NewFromInt(amount),
	}
}

func threePages() map[int]*upstream.TransactionsPage {
	meta := upstream.PageMeta{TotalItems: 5, ItemsPerPage: 2, TotalPages: 3}
	return map[int]*upstream.TransactionsPage{
		1: {Items: []upstream.APITransaction{
			item("t1", "u1", "earned", 10, syncNow.Add(-1*time.Hour)),
			item("t2", "u1", "spent", 4, syncNow.Add(-2*time.Hour)),
		}, Meta: meta},
		2: {Items: []upstream.APITransaction{
			item("t3", "u2", "payout", 20, syncNow.Add(-3*time.Hour)),
			item("t4", "u2", "PAYOUT", 5, syncNow.Add(-4*time.Hour)),
		}, Meta: meta},
		3: {Items: []upstream.APITransaction{
			item("t5", "u3", "bonus", 1, syncNow.Add(-5*time.Hour)),
		}, Meta: meta},
	}
}

func newSync(store repo.Transactions, f PageFetcher, opts ...SyncOption) *SyncService {
	opts = append([]SyncOption{WithClock(func() time.Time { return syncNow }), WithSyncLogger(quietLogger())}, opts...)
	return NewSyncService(store, f, opts...)
}

func TestSync_FetchesAllPages(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionsRepo(quietLogger())
	f := &fakeFetcher{pages: threePages()}

	res, err := newSync(store, f).Sync(ctx, 30)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Pages != 3 || res.Processed != 5 {
		t.Errorf("result = %+v, want 3 pages / 5 processed", res)
	}

	calls := f.calls()
	if len(calls) != 3 {
		t.Fatalf("fetch calls = %d, want 3", len(calls))
	}
	wantStart := syncNow.AddDate(0, 0, -30)
	for i, c := range calls {
		if c.Page != i+1 {
			t.Errorf("call %d page = %d", i, c.Page)
		}
		if !c.Start.Equal(wantStart) || !c.End.Equal(syncNow) {
			t.Errorf("call %d window = [%v, %v], want [%v, %v]", i, c.Start, c.End, wantStart, syncNow)
		}
	}

	all, _ := store.Query(ctx, models.TransactionFilter{})
	statuses := map[string]models.TransactionStatus{}
	for _, tx := range all {
		statuses[tx.ID] = tx.Status
		if tx.Currency != "SCR" {
			t.Errorf("%s currency = %q, want SCR", tx.ID, tx.Currency)
		}
	}
	want := map[string]models.TransactionStatus{
		"t1": models.TxnPending, "t2": models.TxnProcessed, "t3": models.TxnCompleted,
		"t4": models.TxnCompleted, "t5": models.TxnUnknown,
	}
	for id, st := range want {
		if statuses[id] != st {
			t.Errorf("%s status = %q, want %q", id, statuses[id], st)
		}
	}
}

func TestSync_UsesLatestTimestampAsCursor(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionsRepo(quietLogger())
	latest := syncNow.Add(-90 * time.Minute)
	_, _ = store.UpsertMany(ctx, []models.Transaction{
		{ID: "old", UserID: "u", Timestamp: latest.Add(-time.Hour), Status: models.TxnPending, Amount: dec(1), Currency: "SCR"},
		{ID: "new", UserID: "u", Timestamp: latest, Status: models.TxnPending, Amount: dec(1), Currency: "SCR"},
	})
	f := &fakeFetcher{pages: map[int]*upstream.TransactionsPage{1: {Meta: upstream.PageMeta{TotalPages: 1}}}}

	if _, err := newSync(store, f).Sync(ctx, 30); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := f.calls()[0].Start; !got.Equal(latest) {
		t.Errorf("start = %v, want cursor %v", got, latest)
	}
}

func TestSync_StopsOnFetchErrorKeepingProgress(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionsRepo(quietLogger())
	f := &fakeFetcher{pages: threePages(), failAt: 2}

	res, err := newSync(store, f).Sync(ctx, 1)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *upstream.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("err = %v, want wrapped *upstream.APIError", err)
	}
	if len(f.calls()) != 2 {
		t.Errorf("fetch calls = %d, want 2 (no retry, no further pages)", len(f.calls()))
	}
	if res.Pages != 1 || res.Processed != 2 {
		t.Errorf("result = %+v, want 1 page / 2 processed", res)
	}
	if n, _ := store.Count(ctx); n != 2 {
		t.Errorf("stored = %d, want 2", n)
	}
}

func TestSync_RerunAfterPartialFailureHasNoDuplicates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionsRepo(quietLogger())
	pages := threePages()

	_, _ = newSync(store, &fakeFetcher{pages: pages, failAt: 3}).Sync(ctx, 1)
	if _, err := newSync(store, &fakeFetcher{pages: pages}).Sync(ctx, 1); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if _, err := newSync(store, &fakeFetcher{pages: pages}).Sync(ctx, 1); err != nil {
		t.Fatalf("third Sync: %v", err)
	}
	if n, _ := store.Count(ctx); n != 5 {
		t.Errorf("stored = %d, want 5", n)
	}
}

func TestSync_TerminatesWithinTotalPages(t *testing.T) {
	tests := []struct {
		name       string
		totalPages int
		wantCalls  int
	}{
		{"empty window", 0, 1},
		{"single page", 1, 1},
		{"four pages", 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := map[int]*upstream.TransactionsPage{}
			for p := 1; p <= 10; p++ {
				pages[p] = &upstream.TransactionsPage{Meta: upstream.PageMeta{TotalPages: tt.totalPages}}
			}
			f := &fakeFetcher{pages: pages}
			if _, err := newSync(memory.NewTransactionsRepo(quietLogger()), f).Sync(context.Background(), 1); err != nil {
				t.Fatalf("Sync: %v", err)
			}
			if got := len(f.calls()); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestSync_StoreErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert failure stops the loop", func(t *testing.T) {
		store := &failingStore{Transactions: memory.NewTransactionsRepo(quietLogger()), upsertErr: errors.New("disk full")}
		f := &fakeFetcher{pages: threePages()}
		if _, err := newSync(store, f).Sync(ctx, 1); err == nil {
			t.Fatal("expected error")
		}
		if len(f.calls()) != 1 {
			t.Errorf("calls = %d, want 1", len(f.calls()))
		}
	})

	t.Run("cursor failure", func(t *testing.T) {
		store := &failingStore{Transactions: memory.NewTransactionsRepo(quietLogger()), cursorErr: errors.New("timeout")}
		f := &fakeFetcher{pages: threePages()}
		if _, err := newSync(store, f).Sync(ctx, 1); err == nil {
			t.Fatal("expected error")
		}
		if len(f.calls()) != 0 {
			t.Errorf("calls = %d, want 0", len(f.calls()))
		}
	})
}

func TestSync_InvalidLookback(t *testing.T) {
	for _, days := range []int{0, -1, MaxLookbackDays + 1, 200000} {
		f := &fakeFetcher{}
		if _, err := newSync(memory.NewTransactionsRepo(quietLogger()), f).Sync(context.Background(), days); err == nil {
			t.Errorf("Sync(%d): expected error", days)
		}
		if n := len(f.calls()); n != 0 {
			t.Errorf("Sync(%d): calls = %d, want 0", days, n)
		}
	}
}

func TestSync_MaxLookbackWindow(t *testing.T) {
	f := &fakeFetcher{}
	res, err := newSync(memory.NewTransactionsRepo(quietLogger()), f).Sync(context.Background(), MaxLookbackDays)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !res.StartTime.Before(res.EndTime) {
		t.Errorf("window = [%v, %v], want start before end", res.StartTime, res.EndTime)
	}
	want := time.Date(2015, 4, 4, 12, 0, 0, 0, time.UTC)
	if calls := f.calls(); len(calls) != 1 || !calls[0].Start.Equal(want) {
		t.Errorf("calls = %+v, want one fetch starting %v", calls, want)
	}
}

// countingStore records the size of every UpsertMany batch.
type countingStore struct {
	repo.Transactions
	mu      sync.Mutex
	batches []int
}

func (s *countingStore) UpsertMany(ctx context.Context, txs []models.Transaction) (int, error) {
	s.mu.Lock()
	s.batches = append(s.batches, len(txs))
	s.mu.Unlock()
	return s.Transactions.UpsertMany(ctx, txs)
}

func TestSync_StoresEmptyPages(t *testing.T) {
	ctx := context.Background()
	meta := upstream.PageMeta{TotalItems: 1, ItemsPerPage: 1, TotalPages: 2}
	f := &fakeFetcher{pages: map[int]*upstream.TransactionsPage{
		1: {Items: []upstream.APITransaction{item("t1", "u1", "earned", 1, syncNow.Add(-time.Hour))}, Meta: meta},
		2: {Meta: meta},
	}}
	store := &countingStore{Transactions: memory.NewTransactionsRepo(quietLogger())}

	res, err := newSync(store, f).Sync(ctx, 1)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Pages != 2 || res.Processed != 1 {
		t.Errorf("result = %+v, want 2 pages / 1 processed", res)
	}
	if len(store.batches) != 2 || store.batches[0] != 1 || store.batches[1] != 0 {
		t.Errorf("batches = %v, want [1 0]", store.batches)
	}
}

func TestTrySync_DropsWhileInFlight(t *testing.T) {
	f := &fakeFetcher{
		pages:   threePages(),
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	s := newSync(memory.NewTransactionsRepo(quietLogger()), f)

	done := make(chan error, 1)
	go func() {
		_, err := s.Sync(context.Background(), 1)
		done <- err
	}()
	<-f.entered

	if _, err := s.TrySync(context.Background(), 1); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("TrySync err = %v, want ErrSyncInProgress", err)
	}

	close(f.block)
	if err := <-done; err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(f.calls()) != 3 {
		t.Errorf("calls = %d, want 3 (dropped trigger must not fetch)", len(f.calls()))
	}

	if _, err := s.TrySync(context.Background(), 1); err != nil {
		t.Errorf("TrySync after completion: %v", err)
	}
}

func TestSync_QueuesBehindInFlightRun(t *testing.T) {
	f := &fakeFetcher{
		pages:   map[int]*upstream.TransactionsPage{1: {Meta: upstream.PageMeta{TotalPages: 1}}},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	s := newSync(memory.NewTransactionsRepo(quietLogger()), f)

	run := func() error {
		_, err := s.Sync(context.Background(), 1)
		return err
	}

	first := make(chan error, 1)
	go func() { first <- run() }()
	<-f.entered

	second := make(chan error, 1)
	go func() { second <- run() }()

	select {
	case <-f.entered:
		t.Fatal("second sync started while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.block)
	if err := <-first; err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("second: %v", err)
	}
	if got := len(f.calls()); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestSync_WaitHonoursContext(t *testing.T) {
	f := &fakeFetcher{
		pages:   threePages(),
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	s := newSync(memory.NewTransactionsRepo(quietLogger()), f)
	go func() { _, _ = s.Sync(context.Background(), 1) }()
	<-f.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Sync(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	close(f.block)
}

func TestSync_PublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	wp := worker.NewPool(1, 4, quietLogger())
	f := &fakeFetcher{pages: threePages(), failAt: 3}

	_, _ = newSync(memory.NewTransactionsRepo(quietLogger()), f, WithEvents(pub, "transactions.synced", wp)).Sync(context.Background(), 1)
	wp.Stop()

	if len(pub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(pub.events))
	}
	ev := pub.events[0]
	if pub.subj[0] != "transactions.synced" || ev.Trigger != TriggerManual || ev.Pages != 2 || ev.Processed != 4 || ev.Error == "" {
		t.Errorf("event = %+v", ev)
	}
}

func TestSync_DropsEventWhenQueueFull(t *testing.T) {
	pub := &recordingPublisher{}
	wp := worker.NewPool(1, 0, quietLogger())
	block := make(chan struct{})
	started := make(chan struct{})
	for !wp.TrySubmit(func() { close(started); <-block }) {
		runtime.Gosched()
	}
	<-started

	f := &fakeFetcher{pages: threePages()}
	res, err := newSync(memory.NewTransactionsRepo(quietLogger()), f, WithEvents(pub, "transactions.synced", wp)).Sync(context.Background(), 1)
	close(block)
	wp.Stop()

	if err != nil || res.Processed != 5 {
		t.Fatalf("Sync = %+v, %v", res, err)
	}
	if len(pub.events) != 0 {
		t.Errorf("events = %d, want 0 while the queue is full", len(pub.events))
	}
}

func TestSync_NilPublisherIsNop(t *testing.T) {
	f := &fakeFetcher{pages: threePages()}
	if _, err := newSync(memory.NewTransactionsRepo(quietLogger()), f, WithEvents(nil, "transactions.synced", nil)).Sync(context.Background(), 1); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestMapAPITransaction(t *testing.T) {
	eur := "EUR"
	empty := ""
	at := "2025-03-01T10:00:00.000Z"

	tests := []struct {
		name    string
		in      upstream.APITransaction
		wantCur string
		wantErr bool
	}{
		{"missing currency", upstream.APITransaction{ID: "a", CreatedAt: at, Type: "earned"}, "SCR", false},
		{"empty currency", upstream.APITransaction{ID: "a", CreatedAt: at, Currency: &empty}, "SCR", false},
		{"explicit currency", upstream.APITransaction{ID: "a", CreatedAt: at, Currency: &eur}, "EUR", false},
		{"missing id", upstream.APITransaction{CreatedAt: at}, "", true},
		{"bad date", upstream.APITransaction{ID: "a", CreatedAt: "yesterday"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MapAPITransaction(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("MapAPITransaction: %v", err)
			}
			if got.Currency != tt.wantCur {
				t.Errorf("Currency = %q, want %q", got.Currency, tt.wantCur)
			}
		})
	}
}

func TestSync_AgainstHTTPUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		p := threePages()[page]
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p)
	}))
	defer server.Close()

	ctx := context.Background()
	store := memory.NewTransactionsRepo(quietLogger())
	client := upstream.NewClient(server.URL, upstream.WithLogger(quietLogger()))

	if _, err := newSync(store, client).Sync(ctx, 1); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	payouts, _ := NewPayoutService(store, quietLogger()).Payouts(ctx)
	if len(payouts) != 1 || payouts[0].UserID != "u2" || !payouts[0].PayoutAmount.Equal(dec(25)) || payouts[0].Currency != "SCR" {
		t.Errorf("payouts = %+v, want u2=25 SCR", payouts)
	}
}
