package mockapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/txn-aggregator/internal/api/httpx"
	"github.com/baharkarakas/txn-aggregator/internal/api/validate"
	"github.com/baharkarakas/txn-aggregator/internal/middleware"
	"github.com/baharkarakas/txn-aggregator/internal/ratelimit"
	"github.com/baharkarakas/txn-aggregator/internal/upstream"
)

const (
	DefaultLimit = 3
	MaxLimit     = 1000
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

// wireItem mirrors upstream.APITransaction but renders amount as a JSON number.
type wireItem struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	CreatedAt string      `json:"createdAt"`
	Type      string      `json:"type"`
	Amount    json.Number `json:"amount"`
}

type page struct {
	Items []wireItem        `json:"items"`
	Meta  upstream.PageMeta `json:"meta"`
}

// Server serves a fixed, pre-generated transaction set.
type Server struct {
	items []Item
	log   *slog.Logger
}

func NewServer(items []Item, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{items: items, log: log}
}

// Router mounts the listing at upstream.DefaultPath behind l. now may be nil.
func (s *Server) Router(l *ratelimit.Limiter, now func() time.Time) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover)
	r.With(middleware.RateLimit(l, now)).Get(upstream.DefaultPath, s.List)
	return r
}

func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	startStr, endStr := q.Get("startDate"), q.Get("endDate")
	if !dateRe.MatchString(startStr) || !dateRe.MatchString(endStr) {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid date format. Use YYYY-MM-DD HH:MM:SS", nil)
		return
	}
	start, err1 := time.Parse(upstream.DateLayout, startStr)
	end, err2 := time.Parse(upstream.DateLayout, endStr)
	if err1 != nil || err2 != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid date format. Use YYYY-MM-DD HH:MM:SS", nil)
		return
	}

	var errs validate.Errs
	pageNo, ef := validate.Int(q, "page", 1, 1)
	errs.Add(ef)
	limit, ef := validate.Int(q, "limit", DefaultLimit, 1)
	errs.Add(ef)
	if len(errs) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "invalid request", errs)
		return
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	httpx.WriteJSON(w, http.StatusOK, s.page(start, end, pageNo, limit))
}

func (s *Server) page(start, end time.Time, pageNo, limit int) page {
	var filtered []Item
	for _, it := range s.items {
		if !it.CreatedAt.Before(start) && !it.CreatedAt.After(end) {
			filtered = append(filtered, it)
		}
	}

	from := (pageNo - 1) * limit
	to := from + limit
	if from > len(filtered) {
		from = len(filtered)
	}
	if to > len(filtered) {
		to = len(filtered)
	}

	out := make([]wireItem, 0, to-from)
	for _, it := range filtered[from:to] {
		out = append(out, wireItem{
			ID:        it.ID,
			UserID:    it.UserID,
			CreatedAt: it.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
			Type:      it.Type,
			Amount:    json.Number(it.Amount.String()),
		})
	}
	return page{
		Items: out,
		Meta: upstream.PageMeta{
			TotalItems:   len(filtered),
			ItemCount:    len(out),
			ItemsPerPage: limit,
			TotalPages:   (len(filtered) + limit - 1) / limit,
			CurrentPage:  pageNo,
		},
	}
}
