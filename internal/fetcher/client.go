// Package fetcher implements the HTTP client for the turfinfo racing API:
// browser-mimicking headers, randomized inter-request delay, rate limiting,
// and bounded retry with response classification.
package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mathis-dumont/horse-racing-prediction/internal/resilience"
)

// Options configures the racing API client. Header values and delay bounds
// are traffic shaping observed against the live source; they are tunables,
// not correctness parameters.
type Options struct {
	BaseURL     string
	UserAgent   string
	Referer     string
	Origin      string
	Timeout     time.Duration
	MinDelay    time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	RatePerSec  float64
	RateBurst   int
}

// Result is the outcome of a successful exchange with the source. Empty
// marks a "no content" response (204/404), a first-class valid outcome:
// e.g. a foreign race with no detailed history.
type Result struct {
	Body  []byte
	Empty bool
}

// Client fetches JSON documents from the racing API.
type Client struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// New creates a racing API client with the given options.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 5
	}
	if opts.RateBurst == 0 {
		opts.RateBurst = 5
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RateBurst),
		retry: resilience.RetryConfig{
			MaxAttempts: opts.MaxAttempts,
		},
	}
}

// Get fetches the URL, retrying transient failures with bounded backoff.
// Exceeding the attempt cap returns the last error, escalated by the caller
// for that unit only.
func (c *Client) Get(ctx context.Context, url string) (Result, error) {
	retry := c.retry
	retry.OnRetry = func(attempt int, err error) {
		zap.L().Warn("retrying fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Bool("rate_limited", resilience.IsRateLimited(err)),
			zap.Error(err),
		)
	}
	return resilience.DoVal(ctx, retry, func(ctx context.Context) (Result, error) {
		return c.getOnce(ctx, url)
	})
}

func (c *Client) getOnce(ctx context.Context, url string) (Result, error) {
	if err := c.preDispatchDelay(ctx); err != nil {
		return Result{}, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, eris.Wrap(err, "fetcher: create request")
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, eris.Wrapf(err, "fetcher: GET %s", url)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		// The source reports "no data for this unit" as 204 or 404.
		return Result{Empty: true}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, resilience.NewRateLimitError(eris.Errorf("fetcher: http 429 from %s", url))
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return Result{}, resilience.NewTransientError(eris.Errorf("fetcher: http %d from %s", resp.StatusCode, url), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Result{}, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, resilience.NewTransientError(eris.Wrapf(err, "fetcher: read body from %s", url), resp.StatusCode)
	}
	if len(body) == 0 {
		return Result{Empty: true}, nil
	}
	return Result{Body: body}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if c.opts.Referer != "" {
		req.Header.Set("Referer", c.opts.Referer)
	}
	if c.opts.Origin != "" {
		req.Header.Set("Origin", c.opts.Origin)
	}
}

// preDispatchDelay sleeps a random duration within the configured bounds
// before every request.
func (c *Client) preDispatchDelay(ctx context.Context) error {
	if c.opts.MaxDelay <= 0 {
		return nil
	}
	d := c.opts.MinDelay
	if span := c.opts.MaxDelay - c.opts.MinDelay; span > 0 {
		d += time.Duration(rand.Int64N(int64(span)))
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
