package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/baharkarakas/txn-aggregator/internal/models"
	"github.com/shopspring/decimal"
)

// TransactionsRepo keeps transactions in process memory, keyed by id.
type TransactionsRepo struct {
	mu          sync.RWMutex
	txs         map[string]models.Transaction
	lastUpdated time.Time
	now         func() time.Time
	log         *slog.Logger
}

func NewTransactionsRepo(log *slog.Logger) *TransactionsRepo {
	return newTransactionsRepo(log, time.Now)
}

func newTransactionsRepo(log *slog.Logger, now func() time.Time) *TransactionsRepo {
	if log == nil {
		log = slog.Default()
	}
	return &TransactionsRepo{
		txs:         make(map[string]models.Transaction),
		lastUpdated: now(),
		now:         now,
		log:         log,
	}
}

func (r *TransactionsRepo) UpsertMany(_ context.Context, txs []models.Transaction) (int, error) {
	r.mu.Lock()
	for _, tx := range txs {
		r.txs[tx.ID] = tx
	}
	r.lastUpdated = r.now()
	total := len(r.txs)
	r.mu.Unlock()

	r.log.Info("saved transactions", "count", len(txs), "total", total)
	return len(txs), nil
}

func (r *TransactionsRepo) Query(_ context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	r.mu.RLock()
	out := make([]models.Transaction, 0, len(r.txs))
	for _, tx := range r.txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	r.mu.RUnlock()

	sortNewestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *TransactionsRepo) LatestTimestamp(_ context.Context) (time.Time, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest time.Time
	found := false
	for _, tx := range r.txs {
		if !found || tx.Timestamp.After(latest) {
			latest = tx.Timestamp
			found = true
		}
	}
	return latest, found, nil
}

func (r *TransactionsRepo) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.txs), nil
}

func (r *TransactionsRepo) Stats(_ context.Context) (models.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := models.Stats{
		TotalTransactions:         len(r.txs),
		TotalAmount:               decimal.Zero,
		AmountInCanonicalCurrency: decimal.Zero,
		LastUpdated:               r.lastUpdated,
	}
	for _, tx := range r.txs {
		st.TotalAmount = st.TotalAmount.Add(tx.Amount)
		if models.ConvertsOneToOne(tx.Currency) {
			st.AmountInCanonicalCurrency = st.AmountInCanonicalCurrency.Add(tx.Amount)
		}
	}
	return st, nil
}

// sortNewestFirst orders by timestamp descending; equal timestamps fall back
// to id so results are stable across calls.
func sortNewestFirst(txs []models.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.After(txs[j].Timestamp)
		}
		return txs[i].ID < txs[j].ID
	})
}
