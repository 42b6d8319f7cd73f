package nitter

import (
	"context"
	"log/slog"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/ratelimit"
)

// Client fetches public timelines from a Nitter front-end.
type Client struct {
	cfg     ClientConfig
	newDoer func() (Doer, error)
	now     func() time.Time
}

// NewClient validates cfg and creates a client. Invalid base URL, proxy or
// limits are reported as *ConfigError.
func NewClient(cfg ClientConfig) (*Client, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Proxy != "" {
		slog.Info("using proxy", slog.String("proxy", stealth.MaskProxy(cfg.Proxy)))
	}

	proxy, timeout := cfg.Proxy, cfg.Timeout
	return &Client{
		cfg:     cfg,
		newDoer: func() (Doer, error) { return newStealthDoer(proxy, timeout) },
		now:     time.Now,
	}, nil
}

// Config returns the effective configuration, defaults applied.
func (c *Client) Config() ClientConfig {
	return c.cfg
}

// FetchTimeline extracts the timeline of one handle, falling back from HTML
// to JSON to synthetic records. Each call owns its own HTTP client and
// rate limiter, and returns only once none of its requests is still running.
// The only errors returned are configuration errors.
func (c *Client) FetchTimeline(ctx context.Context, handle string) ([]Record, error) {
	doer, err := c.newDoer()
	if err != nil {
		return nil, err
	}
	if w, ok := doer.(interface{ Wait() }); ok {
		defer w.Wait()
	}
	return c.chain(doer).Run(ctx, handle)
}

// FetchAll fetches every handle with at most cfg.Concurrency in flight and
// returns the stamped, aggregated records.
func (c *Client) FetchAll(ctx context.Context, handles []string) *Batch {
	co := &Coordinator{
		Limit:  c.cfg.Concurrency,
		Source: c.cfg.Source,
		Now:    c.now,
	}
	return co.Run(ctx, handles, c.FetchTimeline)
}

// chain builds the html → json → synthetic chain over doer.
func (c *Client) chain(doer Doer) *Chain {
	f := newFetcher(doer, c.cfg, ratelimit.NewLimiter(c.cfg.RateLimit))
	ch := NewChain(c.cfg.MaxPosts,
		&htmlStrategy{fetcher: f, baseURL: c.cfg.BaseURL, maxPosts: c.cfg.MaxPosts, now: c.now},
		&jsonStrategy{fetcher: f, baseURL: c.cfg.BaseURL, maxPosts: c.cfg.MaxPosts, now: c.now},
		&syntheticStrategy{maxPosts: c.cfg.MaxPosts, now: c.now},
	)
	ch.metrics = c.cfg.MetricsHook
	return ch
}
