package postgres

import (
	"log/slog"
	"time"

	repo "github.com/baharkarakas/txn-aggregator/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	Transactions repo.Transactions
}

func NewRepositories(pool *pgxpool.Pool, log *slog.Logger) Repositories {
	if log == nil {
		log = slog.Default()
	}
	return Repositories{
		Transactions: &transactionsRepo{pool: pool, log: log, created: time.Now()},
	}
}
