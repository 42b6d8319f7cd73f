package nitter

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	statusIDRe  = regexp.MustCompile(`/status/(\d+)`)
	statLabelRe = regexp.MustCompile(`(\d[\d,.]*)\s+(\w+)`)

	digitSeparators = strings.NewReplacer(",", "", ".", "")
)

// Nitter markup selectors.
const (
	selTimelineItem   = "div.timeline > div.timeline-item"
	selTweetLink      = "a.tweet-link"
	selTweetContent   = ".tweet-content"
	selTweetDate      = "span.tweet-date > a"
	selTweetStats     = "div.tweet-stats > span"
	selImageAttach    = ".attachments .attachment.image img"
	selVideoAttach    = ".attachments .attachment.video"
	selProfileName    = "a.profile-card-fullname"
	selProfileAvatar  = "a.profile-card-avatar img"
	selVerifiedInBio  = "span.profile-bio .icon-verified"
	selVerifiedInCard = ".profile-card .icon-verified"
)

// parseTimelineHTML extracts up to maxPosts records from a Nitter profile page.
// A page without timeline items yields no records and no error.
// Relative media and avatar URLs are resolved against base when it is set.
func parseTimelineHTML(r io.Reader, handle string, base *url.URL, maxPosts int, now time.Time) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	items := doc.Find(selTimelineItem)
	if items.Length() == 0 {
		return nil, nil
	}

	// The profile card is rendered once per page, not per item.
	author := parseProfileCard(doc, handle, base)

	var records []Record
	items.EachWithBreak(func(_ int, item *goquery.Selection) bool {
		rec := parseTimelineItem(item, author, base, now)
		if rec.keep() {
			records = append(records, rec)
		}
		return maxPosts <= 0 || len(records) < maxPosts
	})
	return records, nil
}

func parseTimelineItem(item *goquery.Selection, author Author, base *url.URL, now time.Time) Record {
	var id *string
	if href, ok := item.Find(selTweetLink).First().Attr("href"); ok {
		if m := statusIDRe.FindStringSubmatch(href); m != nil {
			id = strPtr(m[1])
		}
	}

	var text *string
	if content := item.Find(selTweetContent).First(); content.Length() > 0 {
		text = nonEmpty(joinedText(content))
	}

	dateTitle, _ := item.Find(selTweetDate).First().Attr("title")

	var eng Engagement
	item.Find(selTweetStats).Each(func(_ int, s *goquery.Selection) {
		label, _ := s.Attr("title")
		if strings.TrimSpace(label) == "" {
			label = joinedText(s)
		}
		applyStat(&eng, label)
	})

	media := []Media{}
	item.Find(selImageAttach).Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && src != "" {
			media = append(media, Media{Type: MediaPhoto, URL: resolveURL(base, src)})
		}
	})
	item.Find(selVideoAttach).Each(func(_ int, v *goquery.Selection) {
		if poster, ok := v.Attr("data-poster"); ok && poster != "" {
			media = append(media, Media{Type: MediaVideo, URL: resolveURL(base, poster)})
		}
	})

	return Record{
		ID:             id,
		CreatedAt:      normalizeDate(dateTitle, now),
		Text:           text,
		Engagement:     eng,
		ConversationID: id,
		Media:          media,
		Author:         author,
	}
}

func parseProfileCard(doc *goquery.Document, handle string, base *url.URL) Author {
	a := Author{DisplayName: handle, Handle: handle}
	if name := joinedText(doc.Find(selProfileName).First()); name != "" {
		a.DisplayName = name
	}
	if src, ok := doc.Find(selProfileAvatar).First().Attr("src"); ok && src != "" {
		a.AvatarURL = strPtr(resolveURL(base, src))
	}
	a.Verified = doc.Find(selVerifiedInBio).Length() > 0 || doc.Find(selVerifiedInCard).Length() > 0
	return a
}

// parseStat reads a "12,345 Likes" style label into a count and a lower-cased label word.
func parseStat(label string) (int, string, bool) {
	m := statLabelRe.FindStringSubmatch(label)
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(digitSeparators.Replace(m[1]))
	if err != nil || n < 0 {
		return 0, "", false
	}
	return n, strings.ToLower(m[2]), true
}

// applyStat sets the counter named by label. Unknown labels are ignored.
func applyStat(eng *Engagement, label string) {
	n, kind, ok := parseStat(label)
	if !ok {
		return
	}
	switch {
	case strings.Contains(kind, "like"):
		eng.Favorites = n
	case strings.Contains(kind, "retweet"):
		eng.Reposts = n
	case strings.Contains(kind, "repl"):
		eng.Replies = n
	case strings.Contains(kind, "quote"):
		eng.Quotes = n
	}
}

// joinedText returns the text nodes under sel joined by single spaces.
func joinedText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
