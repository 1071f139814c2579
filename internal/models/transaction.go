package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CanonicalCurrency is substituted when upstream data carries no currency.
const CanonicalCurrency = "SCR"

type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnProcessed TransactionStatus = "processed"
	TxnCompleted TransactionStatus = "completed"
	TxnUnknown   TransactionStatus = "unknown"
)

// StatusFromType maps an upstream transaction type onto the internal status.
func StatusFromType(t string) TransactionStatus {
	switch strings.ToLower(t) {
	case "payout":
		return TxnCompleted
	case "spent":
		return TxnProcessed
	case "earned":
		return TxnPending
	default:
		return TxnUnknown
	}
}

type Transaction struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Timestamp time.Time         `json:"timestamp"`
	Status    TransactionStatus `json:"status"`
	Amount    decimal.Decimal   `json:"amount"`
	Currency  string            `json:"currency"`
}

// TransactionFilter holds optional, conjunctive query predicates.
// Zero values mean "not set"; Limit <= 0 is unbounded.
type TransactionFilter struct {
	StartTime time.Time
	EndTime   time.Time
	UserID    string
	Status    TransactionStatus
	Limit     int
}

// Match reports whether tx satisfies every predicate that is set.
func (f TransactionFilter) Match(tx Transaction) bool {
	if !f.StartTime.IsZero() && tx.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && tx.Timestamp.After(f.EndTime) {
		return false
	}
	if f.UserID != "" && tx.UserID != f.UserID {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	return true
}
