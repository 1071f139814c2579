package services

import (
	"context"
	"log/slog"

	"github.com/baharkarakas/txn-aggregator/internal/models"
	repo "github.com/baharkarakas/txn-aggregator/internal/repository"
)

// TransactionService is the read side used by the list and stats endpoints.
type TransactionService struct {
	trx repo.Transactions
	log *slog.Logger
}

func NewTransactionService(t repo.Transactions, log *slog.Logger) *TransactionService {
	if log == nil {
		log = slog.Default()
	}
	return &TransactionService{trx: t, log: log}
}

func (s *TransactionService) List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	txs, err := s.trx.Query(ctx, f)
	if err != nil {
		s.log.Error("list transactions", "user_id", f.UserID, "status", f.Status, "err", err)
		return nil, err
	}
	return txs, nil
}

func (s *TransactionService) Stats(ctx context.Context) (models.Stats, error) {
	st, err := s.trx.Stats(ctx)
	if err != nil {
		s.log.Error("transaction stats", "err", err)
		return models.Stats{}, err
	}
	return st, nil
}
