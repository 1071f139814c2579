package upstream

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultPath         = "/mock-transactions"
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRedirects = 5
)

// Client fetches transaction pages from the upstream source.
type Client struct {
	baseURL      string
	path         string
	pageSize     int
	timeout      time.Duration
	maxRedirects int
	httpClient   *http.Client
	logger       *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a client for baseURL with a bounded timeout and redirect
// count. Both bounds are applied to a copy of any client passed via
// WithHTTPClient.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      baseURL,
		path:         DefaultPath,
		timeout:      DefaultTimeout,
		maxRedirects: DefaultMaxRedirects,
		httpClient:   &http.Client{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.httpClient
	hc.Timeout = c.timeout
	hc.CheckRedirect = limitRedirects(c.maxRedirects)
	c.httpClient = &hc
	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxRedirects caps how many redirects a single request may follow.
func WithMaxRedirects(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRedirects = n
		}
	}
}

// WithPath overrides the transactions endpoint path.
func WithPath(p string) ClientOption {
	return func(c *Client) {
		if p != "" {
			c.path = p
		}
	}
}

// WithPageSize sends an explicit limit per page. Zero leaves the upstream default.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient supplies the transport settings. Its Timeout and
// CheckRedirect are overridden by the client's own bounds.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func limitRedirects(max int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("stopped after too many redirects")
		}
		return nil
	}
}
