package services

import (
	"context"
	"log/slog"

	"github.com/baharkarakas/txn-aggregator/internal/models"
	repo "github.com/baharkarakas/txn-aggregator/internal/repository"
	"github.com/shopspring/decimal"
)

type BalanceService struct {
	r   repo.Transactions
	log *slog.Logger
}

func NewBalanceService(r repo.Transactions, log *slog.Logger) *BalanceService {
	if log == nil {
		log = slog.Default()
	}
	return &BalanceService{r: r, log: log}
}

func (s *BalanceService) UserBalance(ctx context.Context, userID string) (models.UserBalance, error) {
	s.log.Debug("fetching aggregated data for user", "user_id", userID)

	txs, err := s.r.Query(ctx, models.TransactionFilter{UserID: userID})
	if err != nil {
		s.log.Error("failed to get aggregated data for user", "user_id", userID, "err", err)
		return models.UserBalance{}, err
	}
	return AggregateBalance(userID, txs, s.log), nil
}

// AggregateBalance folds one user's transactions (newest first) into a balance.
// The reported currency is that of txs[0]; mixed currencies are not reconciled.
func AggregateBalance(userID string, txs []models.Transaction, log *slog.Logger) models.UserBalance {
	if log == nil {
		log = slog.Default()
	}
	b := models.UserBalance{
		UserID:   userID,
		Balance:  decimal.Zero,
		Earned:   decimal.Zero,
		Spent:    decimal.Zero,
		Payout:   decimal.Zero,
		PaidOut:  decimal.Zero,
		Currency: models.CanonicalCurrency,
	}
	if len(txs) == 0 {
		log.Warn("no transactions found for user", "user_id", userID)
		return b
	}

	for _, tx := range txs {
		switch tx.Status {
		case models.TxnPending:
			b.Earned = b.Earned.Add(tx.Amount)
		case models.TxnProcessed:
			b.Spent = b.Spent.Add(tx.Amount)
		case models.TxnCompleted:
			b.Payout = b.Payout.Add(tx.Amount)
			b.PaidOut = b.PaidOut.Add(tx.Amount)
		default:
			log.Warn("unhandled transaction status", "status", tx.Status, "transaction_id", tx.ID)
		}
	}

	b.Balance = b.Earned.Sub(b.Spent).Sub(b.PaidOut)
	if txs[0].Currency != "" {
		b.Currency = txs[0].Currency
	}
	return b
}
