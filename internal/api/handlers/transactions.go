package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/baharkarakas/txn-aggregator/internal/api/httpx"
	"github.com/baharkarakas/txn-aggregator/internal/api/validate"
	"github.com/baharkarakas/txn-aggregator/internal/middleware"
	"github.com/baharkarakas/txn-aggregator/internal/models"
	"github.com/baharkarakas/txn-aggregator/internal/services"
)

type TransactionReader interface {
	List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error)
	Stats(ctx context.Context) (models.Stats, error)
}

type BalanceReader interface {
	UserBalance(ctx context.Context, userID string) (models.UserBalance, error)
}

type PayoutReader interface {
	Payouts(ctx context.Context) ([]models.UserPayout, error)
}

type Syncer interface {
	Sync(ctx context.Context, lookbackDays int) (services.SyncResult, error)
}

type TransactionHandler struct {
	Txns        TransactionReader
	Balances    BalanceReader
	Payouts     PayoutReader
	Sync        Syncer
	DefaultDays int
	Log         *slog.Logger
}

type syncResponse struct {
	Message string `json:"message"`
	services.SyncResult
}

func (h *TransactionHandler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

// List serves GET /transactions.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var errs validate.Errs

	start, ef := validate.Date(q, "startDate")
	errs.Add(ef)
	end, ef := validate.Date(q, "endDate")
	errs.Add(ef)
	limit, ef := validate.Int(q, "limit", 0, 1)
	errs.Add(ef)

	status := models.TransactionStatus(strings.ToLower(strings.TrimSpace(q.Get("status"))))
	switch status {
	case "", models.TxnPending, models.TxnProcessed, models.TxnCompleted, models.TxnUnknown:
	default:
		errs = append(errs, validate.ErrField{Field: "status", Msg: "must be one of pending, processed, completed, unknown"})
	}

	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	txs, err := h.Txns.List(r.Context(), models.TransactionFilter{
		StartTime: start,
		EndTime:   end,
		UserID:    strings.TrimSpace(q.Get("userId")),
		Status:    status,
		Limit:     limit,
	})
	if err != nil {
		writeInternal(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, txs)
}

// Balance serves GET /transactions/balance?user=<id>.
func (h *TransactionHandler) Balance(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if ef := validate.Required("user", user); ef != nil {
		writeValidation(w, validate.Errs{*ef})
		return
	}
	b, err := h.Balances.UserBalance(r.Context(), strings.TrimSpace(user))
	if err != nil {
		writeInternal(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *TransactionHandler) PayoutList(w http.ResponseWriter, r *http.Request) {
	p, err := h.Payouts.Payouts(r.Context())
	if err != nil {
		writeInternal(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *TransactionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Txns.Stats(r.Context())
	if err != nil {
		writeInternal(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

// TriggerSync serves POST /transactions/sync?days=<n> and blocks until the run ends.
func (h *TransactionHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	days, ef := validate.Int(r.URL.Query(), "days", h.DefaultDays, 1)
	if ef == nil {
		ef = validate.MaxInt("days", int64(days), services.MaxLookbackDays)
	}
	if ef != nil {
		writeValidation(w, validate.Errs{*ef})
		return
	}

	log := h.logger()
	if c, ok := middleware.Claims(r.Context()); ok {
		log = log.With("subject", c.Subject)
	}
	log.Info("manual sync triggered", "days", days)
	res, err := h.Sync.Sync(r.Context(), days)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeSyncFailed, "transaction sync failed", res)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, syncResponse{Message: "Transactions synced successfully", SyncResult: res})
}

func writeValidation(w http.ResponseWriter, errs validate.Errs) {
	httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "invalid request", errs)
}

func writeInternal(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "internal error", nil)
}
