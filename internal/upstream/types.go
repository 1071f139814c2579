package upstream

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the only date format the upstream accepts for query bounds.
const DateLayout = "2006-01-02 15:04:05"

// APITransaction is a raw item as served by the upstream.
type APITransaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	CreatedAt string          `json:"createdAt"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  *string         `json:"currency,omitempty"`
}

// PageMeta is the pagination block of a TransactionsPage.
type PageMeta struct {
	TotalItems   int `json:"totalItems"`
	ItemCount    int `json:"itemCount"`
	ItemsPerPage int `json:"itemsPerPage"`
	TotalPages   int `json:"totalPages"`
	CurrentPage  int `json:"currentPage"`
}

type TransactionsPage struct {
	Items []APITransaction `json:"items"`
	Meta  PageMeta         `json:"meta"`
}

// PageRequest selects one page of the [Start, End] window. Page is 1-based.
type PageRequest struct {
	Page  int
	Start time.Time
	End   time.Time
}

// FormatDate renders t in DateLayout, in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
