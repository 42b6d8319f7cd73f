package nitter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// TimelineFunc extracts the records of one handle.
type TimelineFunc func(ctx context.Context, handle string) ([]Record, error)

// Batch is the aggregated outcome of one run over many handles.
type Batch struct {
	// Records holds every record of the run, stamped with FetchedAt and the source tag.
	Records []Record

	// Counts maps each processed handle to the number of records it produced.
	Counts map[string]int

	// Failures maps handles that produced nothing because of an error to that error.
	Failures map[string]error

	FetchedAt time.Time
}

// Coordinator runs a TimelineFunc over many handles with bounded parallelism.
type Coordinator struct {
	// Limit is the maximum number of handles in flight. Values below 1 mean 1.
	Limit int

	// Source is stamped on every record.
	Source string

	// Now returns the run timestamp. Default: time.Now.
	Now func() time.Time
}

// Run fetches every handle and aggregates the results. A failing handle
// contributes no records and never affects the others.
// Records of one handle keep their order; handles are merged in input order.
func (c *Coordinator) Run(ctx context.Context, handles []string, fetch TimelineFunc) *Batch {
	now := c.Now
	if now == nil {
		now = time.Now
	}
	source := c.Source
	if source == "" {
		source = DefaultSource
	}

	targets, invalid := dedupeHandles(handles)
	batch := &Batch{
		Counts:   make(map[string]int, len(targets)),
		Failures: make(map[string]error),
	}
	for _, raw := range invalid {
		batch.Failures[raw] = &ConfigError{Field: "handle", Err: ErrEmptyHandle}
		slog.Warn("skipping empty handle", slog.String("input", raw))
	}

	// One slot per handle; slots are merged after Wait.
	results := make([][]Record, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(max(c.Limit, 1))
	for i, handle := range targets {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			records, err := fetch(ctx, handle)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = records
			return nil
		})
	}
	_ = g.Wait()

	batch.FetchedAt = now().UTC()
	for i, handle := range targets {
		if errs[i] != nil {
			batch.Failures[handle] = errs[i]
			batch.Counts[handle] = 0
			slog.Error("failed fetching timeline",
				slog.String("handle", handle),
				slog.Any("error", errs[i]))
			continue
		}
		batch.Counts[handle] = len(results[i])
		slog.Info("fetched posts",
			slog.String("handle", handle),
			slog.Int("count", len(results[i])))
		for _, rec := range results[i] {
			rec.Stamp(batch.FetchedAt, source)
			batch.Records = append(batch.Records, rec)
		}
	}
	return batch
}

// dedupeHandles normalizes handles and drops duplicates, keeping first-seen order.
// Inputs that are blank after normalization are returned separately.
func dedupeHandles(handles []string) (targets, invalid []string) {
	seen := make(map[string]bool, len(handles))
	for _, raw := range handles {
		h := NormalizeHandle(raw)
		if h == "" {
			invalid = append(invalid, raw)
			continue
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		targets = append(targets, h)
	}
	return targets, invalid
}
