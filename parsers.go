package nitter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseTimelineJSON parses the ?_format=json variant. It accepts either
// {"statuses": [...]} or a bare array; any other shape yields no records.
// Missing fields fall back to defaults, only undecodable JSON is an error.
func parseTimelineJSON(body []byte, handle string, maxPosts int, now time.Time) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("unmarshal timeline json: %w", err)
	}

	var items []any
	switch v := data.(type) {
	case map[string]any:
		items, _ = v["statuses"].([]any)
	case []any:
		items = v
	}

	var records []Record
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		rec := parseStatus(obj, handle, now)
		if !rec.keep() {
			continue
		}
		records = append(records, rec)
		if maxPosts > 0 && len(records) >= maxPosts {
			break
		}
	}
	return records, nil
}

func parseStatus(obj map[string]any, handle string, now time.Time) Record {
	id := nonEmpty(firstString(obj, "id", "id_str"))

	conv := nonEmpty(firstString(obj, "conversation_id"))
	if conv == nil {
		conv = id
	}

	var text *string
	if raw, ok := obj["text"].(string); ok {
		text = nonEmpty(strings.Join(strings.Fields(raw), " "))
	}

	user, _ := obj["user"].(map[string]any)
	author := Author{
		ID:          nonEmpty(firstString(user, "id", "id_str")),
		DisplayName: handle,
		Handle:      handle,
		AvatarURL:   nonEmpty(firstString(user, "profile_image_url", "avatar")),
		Verified:    jsonBool(user["verified"]),
	}
	if name := firstString(user, "name"); name != "" {
		author.DisplayName = name
	}
	if sn := firstString(user, "screen_name", "username"); sn != "" {
		author.Handle = sn
	}

	return Record{
		ID:        id,
		CreatedAt: normalizeDate(firstString(obj, "date", "created_at"), now),
		Text:      text,
		Lang:      nonEmpty(firstString(obj, "lang")),
		Engagement: Engagement{
			Replies:   firstCount(obj, "replies"),
			Reposts:   firstCount(obj, "retweets", "reposts"),
			Quotes:    firstCount(obj, "quotes"),
			Favorites: firstCount(obj, "likes", "favorites"),
			Views:     rawString(obj["views"]),
			Bookmarks: rawString(obj["bookmarks"]),
		},
		ConversationID: conv,
		Media:          parseMediaList(obj["media"]),
		Author:         author,
	}
}

func parseMediaList(v any) []Media {
	media := []Media{}
	list, _ := v.([]any)
	for _, it := range list {
		switch m := it.(type) {
		case string:
			if m != "" {
				media = append(media, Media{Type: MediaPhoto, URL: m})
			}
		case map[string]any:
			u := firstString(m, "url", "media_url_https", "media_url")
			if u == "" {
				continue
			}
			typ := MediaPhoto
			switch strings.ToLower(firstString(m, "type")) {
			case "video", "gif", "animated_gif":
				typ = MediaVideo
			}
			media = append(media, Media{Type: typ, URL: u})
		}
	}
	return media
}

// firstString returns the first key whose value is a non-empty string or number.
func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// firstCount returns the first positive counter among keys, or 0.
func firstCount(obj map[string]any, keys ...string) int {
	for _, k := range keys {
		if n := jsonCount(obj[k]); n > 0 {
			return n
		}
	}
	return 0
}

// jsonCount coerces a number or numeric string to a non-negative int.
func jsonCount(v any) int {
	var n int64
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			n = i
		} else if f, err := x.Float64(); err == nil {
			n = int64(f)
		}
	case string:
		i, err := strconv.ParseInt(digitSeparators.Replace(strings.TrimSpace(x)), 10, 64)
		if err == nil {
			n = i
		}
	}
	if n < 0 {
		return 0
	}
	return int(n)
}

// rawString keeps a loosely typed counter as text, nil when absent.
func rawString(v any) *string {
	switch x := v.(type) {
	case string:
		return nonEmpty(x)
	case json.Number:
		return strPtr(x.String())
	}
	return nil
}

func jsonBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	}
	return false
}
