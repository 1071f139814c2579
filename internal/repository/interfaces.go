package repository

import (
	"context"
	"time"

	"github.com/baharkarakas/txn-aggregator/internal/models"
)

// Transactions is the idempotent keyed store. UpsertMany is the only mutation;
// nothing is ever deleted.
type Transactions interface {
	UpsertMany(ctx context.Context, txs []models.Transaction) (int, error)
	Query(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error)
	LatestTimestamp(ctx context.Context) (time.Time, bool, error)
	Count(ctx context.Context) (int, error)
	Stats(ctx context.Context) (models.Stats, error)
}
