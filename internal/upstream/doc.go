// Package upstream is the HTTP client for the paginated transaction source.
//
// The source serves pages of raw transactions for a [startDate, endDate]
// window together with pagination metadata. The client performs exactly one
// request per FetchPage call: it never retries, so a failed page surfaces to
// the caller immediately.
package upstream
