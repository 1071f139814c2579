package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/baharkarakas/txn-aggregator/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type transactionsRepo struct {
	pool    *pgxpool.Pool
	log     *slog.Logger
	created time.Time
}

const upsertSQL = `
INSERT INTO transactions (id, user_id, ts, status, amount, currency, updated_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, now())
ON CONFLICT (id) DO UPDATE
SET user_id    = EXCLUDED.user_id,
    ts         = EXCLUDED.ts,
    status     = EXCLUDED.status,
    amount     = EXCLUDED.amount,
    currency   = EXCLUDED.currency,
    updated_at = EXCLUDED.updated_at`

// UpsertMany replaces-or-inserts the whole batch inside one DB transaction.
func (r *transactionsRepo) UpsertMany(ctx context.Context, txs []models.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, t := range txs {
			b.Queue(upsertSQL, t.ID, t.UserID, t.Timestamp, string(t.Status), t.Amount.String(), t.Currency)
		}
		return tx.SendBatch(ctx, b).Close()
	})
	if err != nil {
		r.log.Error("upsert transactions", "count", len(txs), "first_id", txs[0].ID, "err", err)
		return 0, fmt.Errorf("upsert transactions: %w", err)
	}
	r.log.Info("saved transactions", "count", len(txs))
	return len(txs), nil
}

// buildQuery renders the filter as a parameterised SELECT.
func buildQuery(f models.TransactionFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if !f.StartTime.IsZero() {
		add("ts >= ?", f.StartTime)
	}
	if !f.EndTime.IsZero() {
		add("ts <= ?", f.EndTime)
	}
	if f.UserID != "" {
		add("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, user_id, ts, status, amount::text, currency FROM transactions")
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY ts DESC, id ASC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	return sb.String(), args
}

func (r *transactionsRepo) Query(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	q, args := buildQuery(f)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.log.Error("query transactions", "user_id", f.UserID, "status", f.Status, "err", err)
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		var (
			tx     models.Transaction
			status string
			amount string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Timestamp, &status, &amount, &tx.Currency); err != nil {
			return nil, err
		}
		tx.Status = models.TransactionStatus(status)
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s amount: %w", tx.ID, err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *transactionsRepo) LatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	var ts *time.Time
	if err := r.pool.QueryRow(ctx, `SELECT max(ts) FROM transactions`).Scan(&ts); err != nil {
		return time.Time{}, false, fmt.Errorf("latest timestamp: %w", err)
	}
	if ts == nil {
		return time.Time{}, false, nil
	}
	return *ts, true, nil
}

func (r *transactionsRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (r *transactionsRepo) Stats(ctx context.Context) (models.Stats, error) {
	var (
		st        models.Stats
		total     string
		canonical string
		updated   *time.Time
	)
	err := r.pool.QueryRow(ctx, `
SELECT count(*),
       COALESCE(sum(amount), 0)::text,
       COALESCE(sum(amount) FILTER (WHERE currency IN ($1, 'EUR')), 0)::text,
       max(updated_at)
  FROM transactions`, models.CanonicalCurrency).Scan(&st.TotalTransactions, &total, &canonical, &updated)
	if err != nil {
		return models.Stats{}, fmt.Errorf("transaction stats: %w", err)
	}
	if st.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return models.Stats{}, err
	}
	if st.AmountInCanonicalCurrency, err = decimal.NewFromString(canonical); err != nil {
		return models.Stats{}, err
	}
	st.LastUpdated = r.created
	if updated != nil {
		st.LastUpdated = *updated
	}
	return st, nil
}

func (r *transactionsRepo) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
