package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserBalance struct {
	UserID   string          `json:"userId"`
	Balance  decimal.Decimal `json:"balance"`
	Earned   decimal.Decimal `json:"earned"`
	Spent    decimal.Decimal `json:"spent"`
	Payout   decimal.Decimal `json:"payout"`
	PaidOut  decimal.Decimal `json:"paidOut"`
	Currency string          `json:"currency"`
}

type UserPayout struct {
	UserID       string          `json:"userId"`
	PayoutAmount decimal.Decimal `json:"payoutAmount"`
	Currency     string          `json:"currency"`
}

type Stats struct {
	TotalTransactions         int             `json:"totalTransactions"`
	TotalAmount               decimal.Decimal `json:"totalAmount"`
	AmountInCanonicalCurrency decimal.Decimal `json:"amountInCanonicalCurrency"`
	LastUpdated               time.Time       `json:"lastUpdated"`
}

// ConvertsOneToOne reports whether amounts in currency count 1:1 towards the
// canonical total. Anything else contributes nothing; there is no rate table.
func ConvertsOneToOne(currency string) bool {
	return currency == CanonicalCurrency || currency == "EUR"
}
