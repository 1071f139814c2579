package services

import (
	"context"
	"log/slog"

	"github.com/baharkarakas/txn-aggregator/internal/models"
	repo "github.com/baharkarakas/txn-aggregator/internal/repository"
)

type PayoutService struct {
	r   repo.Transactions
	log *slog.Logger
}

func NewPayoutService(r repo.Transactions, log *slog.Logger) *PayoutService {
	if log == nil {
		log = slog.Default()
	}
	return &PayoutService{r: r, log: log}
}

// Payouts sums completed transactions per user.
func (s *PayoutService) Payouts(ctx context.Context) ([]models.UserPayout, error) {
	txs, err := s.r.Query(ctx, models.TransactionFilter{Status: models.TxnCompleted})
	if err != nil {
		s.log.Error("failed to get aggregated payout data", "err", err)
		return nil, err
	}
	out := AggregatePayouts(txs, s.log)
	if len(out) > 0 {
		s.log.Debug("aggregated payout data", "users", len(out))
	}
	return out, nil
}

// AggregatePayouts groups txs by user in first-seen order. Each group keeps
// the currency of its first-seen record, i.e. the newest for sorted input.
func AggregatePayouts(txs []models.Transaction, log *slog.Logger) []models.UserPayout {
	if log == nil {
		log = slog.Default()
	}
	out := []models.UserPayout{}
	if len(txs) == 0 {
		log.Warn("no payout transactions found")
		return out
	}

	idx := make(map[string]int)
	for _, tx := range txs {
		if i, ok := idx[tx.UserID]; ok {
			out[i].PayoutAmount = out[i].PayoutAmount.Add(tx.Amount)
			continue
		}
		cur := tx.Currency
		if cur == "" {
			cur = models.CanonicalCurrency
		}
		idx[tx.UserID] = len(out)
		out = append(out, models.UserPayout{UserID: tx.UserID, PayoutAmount: tx.Amount, Currency: cur})
	}
	return out
}
