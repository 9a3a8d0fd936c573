package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits; a synchronizer talks to a single host
const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 4
	defaultMaxConnsPerHost     = 4
	defaultIdleConnTimeout     = 60 * time.Second // conservative: matches common ALB defaults
)

// ErrBodyTooLarge is returned when a response body exceeds 1MB.
var ErrBodyTooLarge = errors.New("response body exceeds 1MB")

// StatusError reports a response with a non-success HTTP status.
type StatusError struct {
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %s", e.Status)
}

// Client fetches the analytics document over HTTP and decodes it into its
// untyped form. It implements creditpulse.Fetcher.
//
// Client has no global timeout; the caller bounds each request through the
// context passed to [Client.Fetch]. Response bodies are limited to 1MB.
type Client struct {
	httpClient *http.Client
	url        string
	method     string
	headers    map[string]string
	limiter    *rate.Limiter
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithMethod sets the HTTP method. Defaults to GET.
func WithMethod(method string) ClientOption {
	return func(c *Client) {
		if method != "" {
			c.method = method
		}
	}
}

// WithHeader adds a request header, e.g. an Authorization token.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithRateLimit caps outgoing requests at limit per second with the given
// burst. Requests over the limit wait for a token or for their context to
// end. A non-positive limit disables rate limiting.
func WithRateLimit(limit float64, burst int) ClientOption {
	return func(c *Client) {
		if limit <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
}

// NewClient creates a [Client] for url.
//
// Connection pooling configuration:
//   - MaxIdleConns: 10 total idle connections
//   - MaxIdleConnsPerHost: 4 idle connections per host
//   - MaxConnsPerHost: 4 concurrent connections per host
//   - IdleConnTimeout: 60 seconds before closing idle connections
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		url:     url,
		method:  http.MethodGet,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the URL the client fetches.
func (c *Client) URL() string {
	return c.url
}

// Fetch requests the document and decodes it by Content-Type: CBOR for
// application/cbor, JSON otherwise.
//
// Any status outside 2xx is returned as a [*StatusError]. Network failures
// are wrapped with context; the caller classifies them.
func (c *Client) Fetch(ctx context.Context) (any, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, c.method, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	// read one byte past the limit to detect oversized bodies
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > maxResponseBodySize {
		return nil, ErrBodyTooLarge
	}

	return decodeBody(resp.Header.Get("Content-Type"), body)
}

// Close closes all idle connections in the client's connection pool.
//
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
