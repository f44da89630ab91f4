package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/cesargomez89/navistream/internal/constants"
)

// Options tune pacing and retries. Zero values take the package defaults.
type Options struct {
	RequestsPerSec float64
	Burst          int
	Retries        int
	RetryBase      time.Duration
}

// Client wraps an http.Client to provide rate limiting and automatic retries.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	retryBase  time.Duration
}

// NewClient creates a new rate-limited, retrying HTTP client.
func NewClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		}
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = constants.DefaultRequestsPerSec
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Retries <= 0 {
		opts.Retries = constants.DefaultRetryCount
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = constants.DefaultRetryBase
	}
	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		retries:    opts.Retries,
		retryBase:  opts.RetryBase,
	}
}

// StatusError is returned when the final attempt got a non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed: %s", e.Status)
}

// Transient reports whether the status is worth retrying later.
func (e *StatusError) Transient() bool {
	return retryableStatus(e.StatusCode)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Do executes an HTTP request with rate-limiting and retries. Requests with
// a body are retried only when GetBody is set. Any 2xx response is
// returned; other statuses come back as *StatusError after the body is
// closed.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 && req.Body != nil {
			if req.GetBody == nil {
				break
			}
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		backoffWait := time.Duration(attempt+1) * c.retryBase

		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		case retryableStatus(resp.StatusCode):
			retryAfter := parseRetryAfter(resp)
			drain(resp)
			lastErr = &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
			if retryAfter > backoffWait {
				backoffWait = retryAfter
			}
		default:
			drain(resp)
			return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}

		if attempt == c.retries-1 {
			break
		}
		timer := time.NewTimer(backoffWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if lastErr == nil {
		lastErr = errors.New("request not retried")
	}
	return nil, lastErr
}

// MaxImageBytes caps downloaded artwork.
const MaxImageBytes = 10 << 20

// Image downloads artwork. Only http and https URLs are followed.
func (c *Client) Image(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", constants.UserAgent)

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return data, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

// parseRetryAfter reads a Retry-After header and returns the duration to wait.
func parseRetryAfter(resp *http.Response) time.Duration {
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(ra); err == nil {
		return time.Until(t)
	}
	return 0
}
