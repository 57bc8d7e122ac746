// Package transport provides the HTTP client turbodl issues probe and
// chunk-range requests through. TLS, redirects, connection pooling and DNS
// are delegated entirely to net/http; this package only shapes requests and
// classifies responses.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// Sentinel errors surfaced to callers.
var (
	ErrRangeNotSupported = errors.New("transport: server does not support range requests")
	ErrRangeIgnored      = errors.New("transport: server ignored range request and returned full body")
	ErrNotFound          = errors.New("transport: resource not found")
	ErrForbidden         = errors.New("transport: access forbidden")
	ErrUnauthorized      = errors.New("transport: unauthorized")
	ErrServerError       = errors.New("transport: server error")
)

// Options configures the Client.
type Options struct {
	// MaxIdleConnsPerHost bounds idle connections kept per host.
	MaxIdleConnsPerHost int

	// Timeout bounds a single request's lifetime (dial through body read).
	Timeout time.Duration

	// IdleConnTimeout is how long an idle connection is kept before closing.
	IdleConnTimeout time.Duration

	// RetryAttempts is the number of retries for transient connection-level
	// failures at the probe layer. This is independent of the scheduler's
	// per-chunk retry budget (turbodl.Config.RetryCount).
	RetryAttempts int

	// RetryBackoff is the initial backoff between probe retries.
	RetryBackoff time.Duration

	// RetryMaxBackoff caps the probe retry backoff.
	RetryMaxBackoff time.Duration
}

// DefaultOptions returns sensible defaults for the transport client.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 100,
		Timeout:             30 * time.Second,
		IdleConnTimeout:     30 * time.Second,
		RetryAttempts:       3,
		RetryBackoff:        500 * time.Millisecond,
		RetryMaxBackoff:     10 * time.Second,
	}
}

// FileInfo is the result of a metadata probe.
type FileInfo struct {
	// Size is the resource's total byte length, or -1 if unknown.
	Size int64
	// AcceptRanges is true iff the server advertised byte-range support.
	AcceptRanges bool
}

// RangeResponse is the result of a ranged (or full-body) GET.
type RangeResponse struct {
	Body          io.ReadCloser
	ContentLength int64
	// Ranged is true iff the server answered 206 to a request that carried
	// a Range header.
	Ranged bool
}

// Client issues probe and chunk-range requests.
type Client struct {
	http *http.Client
	opts Options
}

// NewClient builds a Client from opts exactly as given; zero fields are not
// replaced by DefaultOptions' values (a zero RetryAttempts means no probe
// retries).
func NewClient(opts Options) *Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     opts.IdleConnTimeout,
		DisableCompression:  true, // raw bytes matter for range accounting
	}
	return &Client{
		http: &http.Client{Transport: transport, Timeout: opts.Timeout},
		opts: opts,
	}
}

// Head issues a metadata-only (HEAD) request for url.
func (c *Client) Head(ctx context.Context, url string) (*FileInfo, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return nil, fmt.Errorf("transport: build head request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%w: %s", ErrServerError, resp.Status)
			continue
		}
		if err := checkStatusCode(resp.StatusCode); err != nil {
			return nil, err
		}

		size := resp.ContentLength
		return &FileInfo{
			Size:         size,
			AcceptRanges: resp.Header.Get("Accept-Ranges") == "bytes",
		}, nil
	}

	return nil, fmt.Errorf("transport: head request failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// GetRange issues a ranged GET (Range: bytes=start-end, inclusive) when
// remaining > 0, otherwise a plain GET for the whole resource.
func (c *Client) GetRange(ctx context.Context, url string, start, remaining int64) (*RangeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: build range request: %w", err)
	}

	ranged := remaining > 0
	if ranged {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, start+remaining-1))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrServerError, resp.Status)
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		return &RangeResponse{Body: resp.Body, ContentLength: resp.ContentLength, Ranged: true}, nil
	case http.StatusOK:
		// Either we asked for the whole resource, or the server ignored our
		// Range header and sent the whole body anyway; either way Ranged is
		// false and the caller decides what that means for a partial read.
		return &RangeResponse{Body: resp.Body, ContentLength: resp.ContentLength, Ranged: false}, nil
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return nil, ErrRangeNotSupported
	default:
		resp.Body.Close()
		if err := checkStatusCode(resp.StatusCode); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("transport: unexpected status %d", resp.StatusCode)
	}
}

// backoff waits an exponentially increasing, jittered duration before the
// given attempt index (1-based: attempt 1 is the first retry).
func (c *Client) backoff(ctx context.Context, attempt int) error {
	backoff := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > c.opts.RetryMaxBackoff {
		backoff = c.opts.RetryMaxBackoff
	}
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("transport: unexpected status code: %d", code)
	}
}
