package nitter

import "time"

// MediaType is the kind of a media attachment.
type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

// Media is a single attachment of a post. For videos URL is the poster image.
type Media struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
}

// Author is the account a post was published by.
type Author struct {
	ID          *string `json:"id"`
	DisplayName string  `json:"display_name"`
	Handle      string  `json:"handle"`
	AvatarURL   *string `json:"avatar_url"`
	Verified    bool    `json:"verified"`
}

// Engagement holds the interaction counters of a post.
// Views and Bookmarks are kept as reported by the source, nil when unknown.
type Engagement struct {
	Replies   int     `json:"replies"`
	Reposts   int     `json:"reposts"`
	Quotes    int     `json:"quotes"`
	Favorites int     `json:"favorites"`
	Views     *string `json:"views"`
	Bookmarks *string `json:"bookmarks"`
}

// Record is one normalized timeline post.
type Record struct {
	ID             *string    `json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	Text           *string    `json:"text"`
	Lang           *string    `json:"lang"`
	Engagement     Engagement `json:"engagement"`
	ConversationID *string    `json:"conversation_id"`
	Media          []Media    `json:"media"`
	Author         Author     `json:"author"`

	// Run metadata, set by Stamp.
	FetchedAt time.Time `json:"fetched_at"`
	Source    string    `json:"source"`
}

// Stamp attaches run metadata to the record.
func (r *Record) Stamp(fetchedAt time.Time, source string) {
	r.FetchedAt = fetchedAt.UTC()
	r.Source = source
}

// keep reports whether the record carries enough data to be emitted.
func (r *Record) keep() bool {
	return r.ID != nil || r.Text != nil
}

func strPtr(s string) *string { return &s }

// nonEmpty returns nil for an empty string.
func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
