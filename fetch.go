package nitter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/ratelimit"
)

// Doer performs a single HTTP GET. Implementations must honour ctx.
type Doer interface {
	Get(ctx context.Context, url string, headers map[string]string) (body []byte, respHeaders map[string]string, status int, err error)
}

// stealthDoer adapts a go-stealth BrowserClient to Doer.
type stealthDoer struct {
	client *stealth.BrowserClient

	// slot is held while a backend request runs, including one whose caller
	// has already given up, so a handle never has two requests on the wire.
	slot chan struct{}
}

// newStealthDoer builds a redirect-following browser client whose backend
// aborts requests after timeout. A client that cannot be built is a
// configuration error.
func newStealthDoer(proxy string, timeout time.Duration) (*stealthDoer, error) {
	opts := []stealth.ClientOption{
		stealth.WithHeaderOrder(nitterHeaderOrder),
		stealth.WithFollowRedirects(),
		stealth.WithTimeout(timeoutSeconds(timeout)),
	}
	if len(stealth.BuiltinProfiles) > 0 {
		opts = append(opts, stealth.WithProfile(stealth.BuiltinProfiles[0].TLSProfile))
	}
	if proxy != "" {
		opts = append(opts, stealth.WithProxy(proxy))
	}
	bc, err := stealth.NewClient(opts...)
	if err != nil {
		return nil, &ConfigError{Field: "proxy", Err: fmt.Errorf("stealth client: %w", err)}
	}
	return &stealthDoer{client: bc, slot: make(chan struct{}, 1)}, nil
}

// timeoutSeconds rounds d up to the whole seconds the backend accepts.
func timeoutSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}

// Get runs the request and returns early when ctx is done. The backend call
// takes no context; its own timeout ends an abandoned request, and until then
// the slot stays taken.
func (d *stealthDoer) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, map[string]string, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, 0, err
	}
	select {
	case d.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, 0, ctx.Err()
	}

	type result struct {
		body    []byte
		headers map[string]string
		status  int
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() { <-d.slot }()
		body, hdrs, status, err := d.client.DoWithHeaderOrder("GET", rawURL, headers, nil, nitterHeaderOrder)
		ch <- result{body, hdrs, status, err}
	}()

	select {
	case r := <-ch:
		return r.body, r.headers, r.status, r.err
	case <-ctx.Done():
		return nil, nil, 0, ctx.Err()
	}
}

// Wait blocks until no backend request is running.
func (d *stealthDoer) Wait() {
	d.slot <- struct{}{}
	<-d.slot
}

// Fetcher issues GETs with a per-attempt timeout and exponential backoff retries.
type Fetcher struct {
	doer     Doer
	timeout  time.Duration
	attempts int
	backoff  func(attempt int) time.Duration
	maxWait  time.Duration
	jitter   bool
	limiter  *ratelimit.Limiter
	now      func() time.Time
}

// newFetcher creates a Fetcher from a defaulted config. limiter records 429
// cool-downs and should belong to a single chain.
func newFetcher(doer Doer, cfg ClientConfig, limiter *ratelimit.Limiter) *Fetcher {
	return &Fetcher{
		doer:     doer,
		timeout:  cfg.Timeout,
		attempts: max(cfg.Attempts, 1),
		backoff:  exponentialBackoff(cfg.BackoffInitial, cfg.BackoffMin, cfg.BackoffMax),
		maxWait:  cfg.BackoffMax,
		jitter:   cfg.Jitter,
		limiter:  limiter,
		now:      time.Now,
	}
}

// exponentialBackoff returns the delay before retry number attempt (1-based),
// doubling from initial and clamped to [lo, hi].
func exponentialBackoff(initial, lo, hi time.Duration) func(attempt int) time.Duration {
	cfg := stealth.BackoffConfig{
		InitialWait: initial,
		MaxWait:     hi,
		Multiplier:  2.0,
	}
	return func(attempt int) time.Duration {
		return min(max(cfg.Duration(attempt-1), lo), hi)
	}
}

// Get fetches rawURL, retrying transient failures. A malformed URL fails
// immediately with a *ConfigError. After the last attempt the final error is
// returned as is.
func (f *Fetcher) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ConfigError{Field: "url", Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, configErr("url", "not an absolute http(s) URL: %q", rawURL)
	}

	if f.jitter {
		if err := stealth.DefaultJitter.Sleep(ctx); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := range f.attempts {
		delay := f.coolDown(u.Host)
		if attempt > 0 {
			delay = max(delay, f.backoff(attempt))
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				if lastErr == nil {
					lastErr = ctx.Err()
				}
				return nil, lastErr
			}
		}

		body, err := f.do(ctx, u.Host, rawURL, headers)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		slog.Debug("fetch attempt failed",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt+1),
			slog.Int("of", f.attempts),
			slog.Any("error", err))
	}
	return nil, lastErr
}

// coolDown is how long to hold off host after a 429, capped at maxWait.
func (f *Fetcher) coolDown(host string) time.Duration {
	if f.limiter == nil {
		return 0
	}
	at := f.limiter.AvailableAt(host)
	if at.IsZero() {
		return 0
	}
	return min(max(at.Sub(f.now()), 0), f.maxWait)
}

// do performs one attempt.
func (f *Fetcher) do(ctx context.Context, host, rawURL string, headers map[string]string) ([]byte, error) {
	actx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	body, respHdrs, status, err := f.doer.Get(actx, rawURL, headers)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	if status == 429 && f.limiter != nil {
		until := parseRetryAfter(respHdrs, f.now())
		f.limiter.MarkRateLimited(host, until)
		slog.Warn("instance rate limited",
			slog.String("host", host),
			slog.Time("until", until))
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{URL: rawURL, Status: status, Body: truncateBytes(body, 200)}
	}
	return body, nil
}
