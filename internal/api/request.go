package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/tradestream/internal/credential"
)

// ErrNoCredential is returned, without touching the network, when an
// authenticated endpoint is called while no access token is stored.
var ErrNoCredential = errors.New("no access token stored")

// maxRetryAfter caps how long a 429 Retry-After header can stall a poll.
const maxRetryAfter = 30 * time.Second

// APIError represents an error response from the dashboard API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte

	// RetryAfter is the server-requested wait on 429, zero when absent.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dashboard api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
// Auth failures never do: a stale token stays stale.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsUnauthorized reports whether err means the caller is not logged in:
// a 401 from the API or no stored token at all.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrNoCredential) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// request describes one call against the dashboard API.
type request struct {
	method string
	path   string
	query  url.Values
	auth   bool
}

// doRequest sends req once. The bearer token is read from the store on every
// call so a re-login is picked up without rebuilding the client.
func (c *Client) doRequest(ctx context.Context, req request) ([]byte, error) {
	token, hasToken := credential.AccessToken(ctx, c.store, c.logger)
	if req.auth && !hasToken {
		return nil, ErrNoCredential
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if hasToken {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, newAPIError(resp, body)
	}
	return body, nil
}

// newAPIError prefers the dashboard's {"detail": "..."} message over the bare
// status text.
func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		Body:       body,
	}

	var detail struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &detail) == nil && detail.Detail != "" {
		apiErr.Message = detail.Detail
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			apiErr.RetryAfter = min(time.Duration(secs)*time.Second, maxRetryAfter)
		}
	}
	return apiErr
}

// retryDelay reports whether err is worth another attempt and how long to
// wait first. Transport failures are retried while ctx is alive.
func (c *Client) retryDelay(ctx context.Context, err error, backoff time.Duration) (time.Duration, bool) {
	if ctx.Err() != nil || errors.Is(err, ErrNoCredential) {
		return 0, false
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return jitter(backoff), true
	}
	if !apiErr.IsRetryable() {
		return 0, false
	}
	if apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter, true
	}
	return jitter(backoff), true
}

// jitter spreads d over [d/2, 3d/2).
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int64N(int64(d)))
}

// doWithRetry sends req, retrying transient failures with doubling backoff.
func (c *Client) doWithRetry(ctx context.Context, req request) ([]byte, error) {
	backoff := c.retryBackoff
	var lastErr error

	for attempt := 0; ; attempt++ {
		body, err := c.doRequest(ctx, req)
		if err == nil {
			return body, nil
		}
		lastErr = err

		wait, ok := c.retryDelay(ctx, err, backoff)
		if !ok {
			return nil, err
		}
		if attempt >= c.maxRetries {
			break
		}

		c.logger.Debug("retrying request",
			"attempt", attempt+1,
			"wait", wait,
			"path", req.path,
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// getJSON performs an authenticated GET and decodes the body into T.
func getJSON[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var result T
	body, err := c.doWithRetry(ctx, request{
		method: http.MethodGet,
		path:   path,
		query:  query,
		auth:   true,
	})
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return result, fmt.Errorf("unmarshal response: %w", err)
	}
	return result, nil
}
