package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// APIError represents a non-2xx answer from the upstream.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether a later attempt could plausibly succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// FetchPage performs a single GET for one page of the window.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) (*TransactionsPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(req.Page))
	if !req.Start.IsZero() {
		query.Set("startDate", FormatDate(req.Start))
	}
	if !req.End.IsZero() {
		query.Set("endDate", FormatDate(req.End))
	}
	if c.pageSize > 0 {
		query.Set("limit", strconv.Itoa(c.pageSize))
	}

	start := time.Now()
	body, err := c.doRequest(ctx, http.MethodGet, c.path, query)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", req.Page, err)
	}

	var page TransactionsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("fetch page %d: unmarshal response: %w", req.Page, err)
	}

	c.logger.Debug("fetched upstream page",
		"page", req.Page,
		"items", len(page.Items),
		"total_pages", page.Meta.TotalPages,
		"duration", time.Since(start),
	)
	return &page, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}
	return body, nil
}
