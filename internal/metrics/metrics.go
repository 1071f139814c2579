package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	RateLimitDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_denied_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
		[]string{"route"},
	)

	// Sync
	SyncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Sync invocations by trigger and outcome",
		},
		[]string{"trigger", "result"}, // manual|periodic, ok|error|skipped
	)
	SyncPagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_pages_fetched_total",
			Help: "Upstream pages fetched and stored",
		},
	)
	TransactionsUpserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transactions_upserted_total",
			Help: "Transactions written to the store (including replacements)",
		},
	)
	StoredTransactions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transactions_stored",
			Help: "Transactions currently held by the store",
		},
	)

	// Worker kuyruğu
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)

	initOnce sync.Once
)

// /metrics endpoint'i için handler
var Handler = promhttp.Handler

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			RateLimitDenied,
			SyncRunsTotal,
			SyncPagesTotal,
			TransactionsUpserted,
			StoredTransactions,
			WorkerQueueDepth,
		)
	})
}
