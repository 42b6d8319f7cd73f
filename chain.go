package nitter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Strategy is one way of turning a handle into records.
// An error or an empty result tells the Chain to try the next strategy;
// a *ConfigError stops the Chain.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, handle string) ([]Record, error)
}

// htmlStrategy scrapes the profile page.
type htmlStrategy struct {
	fetcher  *Fetcher
	baseURL  string
	maxPosts int
	now      func() time.Time
}

func (s *htmlStrategy) Name() string { return "html" }

func (s *htmlStrategy) Extract(ctx context.Context, handle string) ([]Record, error) {
	u, err := timelineURL(s.baseURL, handle)
	if err != nil {
		return nil, err
	}
	body, err := s.fetcher.Get(ctx, u, nitterHeaders())
	if err != nil {
		return nil, err
	}
	base, _ := parseBaseURL(s.baseURL)
	return parseTimelineHTML(bytes.NewReader(body), handle, base, s.maxPosts, s.now())
}

// jsonStrategy reads the ?_format=json variant some instances expose.
type jsonStrategy struct {
	fetcher  *Fetcher
	baseURL  string
	maxPosts int
	now      func() time.Time
}

func (s *jsonStrategy) Name() string { return "json" }

func (s *jsonStrategy) Extract(ctx context.Context, handle string) ([]Record, error) {
	u, err := timelineJSONURL(s.baseURL, handle)
	if err != nil {
		return nil, err
	}
	body, err := s.fetcher.Get(ctx, u, jsonHeaders())
	if err != nil {
		return nil, err
	}
	return parseTimelineJSON(body, handle, s.maxPosts, s.now())
}

// syntheticStrategy is the offline terminal fallback. It never fails.
type syntheticStrategy struct {
	maxPosts int
	now      func() time.Time
}

func (s *syntheticStrategy) Name() string { return "synthetic" }

func (s *syntheticStrategy) Extract(_ context.Context, handle string) ([]Record, error) {
	slog.Info("using synthetic data", slog.String("handle", handle))
	return syntheticRecords(handle, s.maxPosts, s.now()), nil
}

// Chain tries its strategies in order and returns the first non-empty result.
type Chain struct {
	strategies []Strategy
	maxPosts   int
	metrics    func(stage string, success bool)
}

// NewChain creates a chain over strategies. maxPosts <= 0 disables the cap.
func NewChain(maxPosts int, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, maxPosts: maxPosts}
}

// Run extracts the timeline of handle. Only configuration errors are
// returned; every other failure moves on to the next strategy.
func (c *Chain) Run(ctx context.Context, handle string) ([]Record, error) {
	handle = NormalizeHandle(handle)
	if handle == "" {
		return nil, &ConfigError{Field: "handle", Err: ErrEmptyHandle}
	}

	for _, s := range c.strategies {
		records, err := s.Extract(ctx, handle)
		if err != nil {
			c.record(s.Name(), false)
			if IsConfigError(err) {
				return nil, fmt.Errorf("%s strategy for @%s: %w", s.Name(), handle, err)
			}
			slog.Warn("strategy failed, trying next",
				slog.String("handle", handle),
				slog.String("strategy", s.Name()),
				slog.Any("error", err))
			continue
		}
		if len(records) == 0 {
			c.record(s.Name(), false)
			slog.Debug("strategy returned no records",
				slog.String("handle", handle),
				slog.String("strategy", s.Name()))
			continue
		}

		c.record(s.Name(), true)
		if c.maxPosts > 0 && len(records) > c.maxPosts {
			records = records[:c.maxPosts]
		}
		slog.Debug("timeline extracted",
			slog.String("handle", handle),
			slog.String("strategy", s.Name()),
			slog.Int("count", len(records)))
		return records, nil
	}
	return nil, nil
}

// record calls the metrics hook if configured.
func (c *Chain) record(stage string, success bool) {
	if c.metrics != nil {
		c.metrics(stage, success)
	}
}
