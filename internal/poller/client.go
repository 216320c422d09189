package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jpalmerr/resourceboard/internal/jsonvalue"
)

const maxResponseBodySize = 1 << 20 // 1MB

// DefaultTimeout applies when Fetch is called without a positive timeout.
const DefaultTimeout = 10 * time.Second

// maxErrorBodyRunes bounds the upstream body quoted in http_status errors.
const maxErrorBodyRunes = 200

// connection pooling limits to prevent resource exhaustion when polling many endpoints
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second // conservative: matches common ALB defaults
)

// ErrorKind classifies a failed fetch.
type ErrorKind string

const (
	// ErrConfiguration means the resource cannot be requested as configured,
	// for example because the URL is empty or malformed.
	ErrConfiguration ErrorKind = "configuration"

	// ErrConnectionFailed covers DNS failures, refused connections and timeouts.
	ErrConnectionFailed ErrorKind = "connection_failed"

	// ErrHTTPStatus means the server answered with a non-2xx status.
	ErrHTTPStatus ErrorKind = "http_status"

	// ErrInvalidPayload means a 2xx response did not carry valid JSON.
	ErrInvalidPayload ErrorKind = "invalid_payload"
)

// FetchError describes why a fetch failed.
type FetchError struct {
	Kind ErrorKind

	// StatusCode and Body are set for ErrHTTPStatus only. Body is truncated
	// to 200 characters.
	StatusCode int
	Body       string

	Message string
}

func (e *FetchError) Error() string {
	return e.Message
}

// Result is the outcome of one fetch. Exactly one of Payload (on success) and
// Err is meaningful.
type Result struct {
	Payload jsonvalue.Value
	Err     *FetchError

	// StatusCode is zero if the request failed before receiving a response.
	StatusCode int

	Latency   time.Duration
	FetchedAt time.Time
}

// OK reports whether the fetch produced a payload.
func (r Result) OK() bool {
	return r.Err == nil
}

// Client is an HTTP client wrapper for fetching JSON resources.
//
// Client uses per-request timeouts via context rather than a global timeout,
// allowing callers to apply different timeouts per fetch.
// Response bodies are limited to 1MB to prevent memory issues.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new [Client].
//
// The client is configured with connection pooling limits to prevent resource
// exhaustion when polling many resources. Timeouts are applied per-request via
// the context parameter in [Client.Fetch], not as a global client timeout.
//
// Connection pooling configuration:
//   - MaxIdleConns: 100 total idle connections
//   - MaxIdleConnsPerHost: 10 idle connections per host
//   - MaxConnsPerHost: 10 concurrent connections per host
//   - IdleConnTimeout: 60 seconds before closing idle connections
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Fetch GETs url and parses the response as JSON.
//
// Fetch never returns a Go error: every failure is described by
// [Result.Err], classified as one of the [ErrorKind] values. A non-positive
// timeout means [DefaultTimeout].
func (c *Client) Fetch(ctx context.Context, url string, timeout time.Duration) Result {
	start := time.Now()
	result := func(r Result) Result {
		r.Latency = time.Since(start)
		r.FetchedAt = time.Now()
		return r
	}

	url = strings.TrimSpace(url)
	if url == "" {
		return result(Result{Err: &FetchError{Kind: ErrConfiguration, Message: "URL is required"}})
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return result(Result{Err: &FetchError{
			Kind:    ErrConfiguration,
			Message: fmt.Sprintf("invalid URL: %v", err),
		}})
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result(Result{Err: connectionError(err)})
	}
	defer func() { _ = resp.Body.Close() }()

	// read body with size limit
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return result(Result{
			StatusCode: resp.StatusCode,
			Err:        connectionError(fmt.Errorf("failed to read response body: %w", err)),
		})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result(Result{StatusCode: resp.StatusCode, Err: statusError(resp, body)})
	}

	payload, err := jsonvalue.Parse(body)
	if err != nil {
		return result(Result{
			StatusCode: resp.StatusCode,
			Err: &FetchError{
				Kind:    ErrInvalidPayload,
				Message: fmt.Sprintf("invalid JSON response: %v", err),
			},
		})
	}

	return result(Result{Payload: payload, StatusCode: resp.StatusCode})
}

func connectionError(err error) *FetchError {
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out: " + msg
	}
	return &FetchError{Kind: ErrConnectionFailed, Message: msg}
}

// statusError builds the "HTTP <code>: <status text>. Response: <body>" error.
func statusError(resp *http.Response, body []byte) *FetchError {
	text := http.StatusText(resp.StatusCode)
	if text == "" {
		text = strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
	}
	truncated := truncateRunes(string(body), maxErrorBodyRunes)
	return &FetchError{
		Kind:       ErrHTTPStatus,
		StatusCode: resp.StatusCode,
		Body:       truncated,
		Message:    fmt.Sprintf("HTTP %d: %s. Response: %s", resp.StatusCode, text, truncated),
	}
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Close closes all idle connections in the client's connection pool.
//
// This should be called when the client is no longer needed to release
// resources immediately rather than waiting for the idle connection timeout.
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
