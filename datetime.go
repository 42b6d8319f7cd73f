package nitter

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// dateLayouts are tried before the generic parser.
var dateLayouts = []string{
	"Jan 2, 2006 · 3:04 PM MST",      // Nitter tweet-date title
	"Mon Jan 02 15:04:05 -0700 2006", // Twitter legacy created_at
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
}

// normalizeDate converts a source timestamp to UTC. Blank or unrecognized
// input yields now, so a record always carries a valid time.
// Timestamps without a zone are taken as UTC.
func normalizeDate(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.UTC()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
		return t.UTC()
	}
	return now.UTC()
}
