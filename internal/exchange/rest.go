package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"
)

// APIError represents an HTTP-level error from an exchange REST API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// restClient is the shared HTTP plumbing for connectors without an SDK.
type restClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	header     http.Header

	maxRetries   int
	retryBackoff time.Duration
}

// restOption configures a restClient.
type restOption func(*restClient)

// withHeader sets a static header applied to every request.
func withHeader(key, value string) restOption {
	return func(c *restClient) {
		c.header.Set(key, value)
	}
}

// withTimeout sets the HTTP client timeout.
func withTimeout(d time.Duration) restOption {
	return func(c *restClient) {
		c.httpClient.Timeout = d
	}
}

// withRetries sets the retry configuration.
func withRetries(max int, backoff time.Duration) restOption {
	return func(c *restClient) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// withHTTPClient sets a custom HTTP client.
func withHTTPClient(hc *http.Client) restOption {
	return func(c *restClient) {
		c.httpClient = hc
	}
}

func newRESTClient(baseURL string, logger *slog.Logger, opts ...restOption) *restClient {
	c := &restClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       logger,
		header:       http.Header{},
		maxRetries:   2,
		retryBackoff: time.Second,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// doRequest performs one HTTP request. A non-nil body is sent as JSON.
func (c *restClient) doRequest(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}

	return respBody, nil
}

// doWithRetry performs a request with exponential backoff retry on
// retryable HTTP errors only.
func (c *restClient) doWithRetry(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		respBody, err := c.doRequest(ctx, method, path, query, body)
		if err == nil {
			return respBody, nil
		}

		lastErr = err

		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// getJSON performs a GET request with retries and unmarshals the response.
func (c *restClient) getJSON(ctx context.Context, path string, query url.Values, result any) error {
	body, err := c.doWithRetry(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

// postJSON performs a POST request with a JSON payload and unmarshals the
// response.
func (c *restClient) postJSON(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.doWithRetry(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
