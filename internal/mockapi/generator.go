// Package mockapi is a stand-in for the upstream transactions API, used for
// local runs and integration tests.
package mockapi

import (
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultCount = 1200
	DefaultDays  = 90
)

// DefaultUsers are the user ids the generator draws from.
var DefaultUsers = []string{"74092", "85123", "63957"}

var types = []string{"payout", "spent", "earned"}

// Item is one generated upstream transaction.
type Item struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	Type      string
	Amount    decimal.Decimal
}

type GenOptions struct {
	Count int
	Days  int
	Users []string
	Now   time.Time
	Seed  uint64 // 0 picks a random seed
}

// Generate builds opts.Count transactions spread over the last opts.Days days,
// newest first. Payouts are multiples of 5, spends whole numbers below 100,
// earnings two-decimal values below 50.
func Generate(opts GenOptions) []Item {
	if opts.Count <= 0 {
		opts.Count = DefaultCount
	}
	if opts.Days <= 0 {
		opts.Days = DefaultDays
	}
	if len(opts.Users) == 0 {
		opts.Users = DefaultUsers
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	items := make([]Item, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		typ := types[rng.IntN(len(types))]
		var amount decimal.Decimal
		switch typ {
		case "earned":
			amount = decimal.NewFromInt(int64(rng.IntN(5000))).Shift(-2)
		case "payout":
			amount = decimal.NewFromInt(int64(rng.IntN(100) * 5))
		default:
			amount = decimal.NewFromInt(int64(rng.IntN(100)))
		}
		items = append(items, Item{
			ID:        uuid.NewString(),
			UserID:    opts.Users[rng.IntN(len(opts.Users))],
			CreatedAt: opts.Now.AddDate(0, 0, -rng.IntN(opts.Days)).UTC().Truncate(time.Millisecond),
			Type:      typ,
			Amount:    amount,
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items
}
