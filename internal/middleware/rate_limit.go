package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/baharkarakas/txn-aggregator/internal/api/httpx"
	"github.com/baharkarakas/txn-aggregator/internal/metrics"
	"github.com/baharkarakas/txn-aggregator/internal/ratelimit"
)

const rateLimitMessage = "Rate limit exceeded. Try again later."

// RateLimit admits each request through l keyed by client address. now may be
// nil, in which case time.Now is used.
func RateLimit(l *ratelimit.Limiter, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Admit(ClientKey(r), now())
			if !d.Allowed {
				metrics.RateLimitDenied.WithLabelValues(routePattern(r)).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds))
				httpx.WriteError(w, http.StatusTooManyRequests, httpx.CodeRateLimited, rateLimitMessage,
					map[string]int{"retryAfter": d.RetryAfterSeconds})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey returns the host part of r.RemoteAddr. RealIP, when mounted,
// has already rewritten RemoteAddr from forwarding headers.
func ClientKey(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "127.0.0.1"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
