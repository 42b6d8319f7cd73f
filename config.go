package nitter

import (
	"net/url"
	"strings"
	"time"

	"github.com/anatolykoptev/go-stealth/ratelimit"
)

// DefaultBaseURL is the public Nitter instance used when none is configured.
const DefaultBaseURL = "https://nitter.net"

// DefaultSource is the tag stamped on every record of a run.
const DefaultSource = "nitter"

// ClientConfig holds all configuration for the timeline client.
type ClientConfig struct {
	// BaseURL is the origin of the Nitter front-end, e.g. https://nitter.net.
	BaseURL string

	// Proxy is an optional forward proxy URL (http, https or socks5).
	Proxy string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// MaxPosts caps the records produced for one handle.
	MaxPosts int

	// Concurrency is the number of handles fetched in parallel.
	Concurrency int

	// Source is stamped on every record. Default: "nitter".
	Source string

	// Attempts is the total number of tries per request, including the first.
	Attempts int

	// BackoffInitial is the first exponential backoff step.
	BackoffInitial time.Duration

	// BackoffMin and BackoffMax clamp every backoff delay.
	BackoffMin time.Duration
	BackoffMax time.Duration

	// Jitter adds a short random sleep before each request.
	Jitter bool

	// RateLimit configures the per-instance limiter that enforces 429 cool-downs.
	RateLimit ratelimit.Config

	// MetricsHook is called once per extraction stage.
	// stage is "html", "json" or "synthetic"; success means it produced records.
	MetricsHook func(stage string, success bool)
}

// defaults fills in zero-value config fields with sensible defaults.
func (cfg *ClientConfig) defaults() {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxPosts == 0 {
		cfg.MaxPosts = 50
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 5
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.BackoffInitial == 0 {
		cfg.BackoffInitial = 800 * time.Millisecond
	}
	if cfg.BackoffMin == 0 {
		cfg.BackoffMin = time.Second
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 6 * time.Second
	}
	if cfg.RateLimit.RequestsPerWindow == 0 {
		cfg.RateLimit = ratelimit.DefaultConfig
	}
}

// validate rejects settings that no request could succeed with.
func (cfg *ClientConfig) validate() error {
	if _, err := parseBaseURL(cfg.BaseURL); err != nil {
		return err
	}
	if cfg.Proxy != "" {
		if err := validateProxy(cfg.Proxy); err != nil {
			return err
		}
	}
	switch {
	case cfg.Timeout < 0:
		return configErr("timeout", "must be positive, got %s", cfg.Timeout)
	case cfg.MaxPosts < 0:
		return configErr("max_posts", "must be positive, got %d", cfg.MaxPosts)
	case cfg.Concurrency < 0:
		return configErr("concurrency", "must be positive, got %d", cfg.Concurrency)
	case cfg.Attempts < 0:
		return configErr("attempts", "must be positive, got %d", cfg.Attempts)
	case cfg.BackoffMin > cfg.BackoffMax:
		return configErr("backoff", "min %s exceeds max %s", cfg.BackoffMin, cfg.BackoffMax)
	}
	return nil
}

// parseBaseURL accepts absolute http(s) origins only.
func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, &ConfigError{Field: "base_url", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, configErr("base_url", "unsupported scheme %q in %q", u.Scheme, raw)
	}
	if u.Host == "" {
		return nil, configErr("base_url", "missing host in %q", raw)
	}
	return u, nil
}

func validateProxy(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigError{Field: "proxy", Err: err}
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h", "socks4":
	default:
		return configErr("proxy", "unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return configErr("proxy", "missing host")
	}
	return nil
}
