package nitter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	maxSyntheticPosts = 10
	syntheticIDSpace  = 10_000_000_000
	syntheticLang     = "en"
)

// syntheticBaseID derives a stable id base from the handle. xxhash is
// seedless, so the value is the same in every process.
func syntheticBaseID(handle string) uint64 {
	return xxhash.Sum64String(handle) % syntheticIDSpace
}

// syntheticRecords builds placeholder posts for handle without any network
// access. It always returns between 1 and 10 records.
func syntheticRecords(handle string, maxPosts int, now time.Time) []Record {
	n := min(maxPosts, maxSyntheticPosts)
	if n < 1 {
		n = 1
	}
	base := syntheticBaseID(handle)
	created := now.UTC()

	out := make([]Record, 0, n)
	for i := range n {
		id := strconv.FormatUint(base+uint64(i), 10)
		out = append(out, Record{
			ID:        strPtr(id),
			CreatedAt: created,
			Text:      strPtr(fmt.Sprintf("SYNTHETIC: Hello from @%s #%d", handle, i)),
			Lang:      strPtr(syntheticLang),
			Engagement: Engagement{
				Replies:   i / 2,
				Reposts:   i / 3,
				Quotes:    i / 5,
				Favorites: 10 + i,
				Views:     strPtr(strconv.Itoa(1000 + i*7)),
			},
			ConversationID: strPtr(id),
			Media:          []Media{},
			Author: Author{
				DisplayName: handle,
				Handle:      handle,
			},
		})
	}
	return out
}
