package nitter

import (
	"net/url"
	"strings"
)

// NormalizeHandle strips surrounding whitespace and leading '@' characters.
// Case is preserved.
func NormalizeHandle(handle string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(handle), "@"))
}

// timelineURL returns {base}/{handle}.
func timelineURL(base, handle string) (string, error) {
	u, err := parseBaseURL(base)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + handle
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// timelineJSONURL returns {base}/{handle}?_format=json.
func timelineJSONURL(base, handle string) (string, error) {
	raw, err := timelineURL(base, handle)
	if err != nil {
		return "", err
	}
	return raw + "?_format=json", nil
}

// resolveURL makes ref absolute against base. Unresolvable refs are returned as-is.
func resolveURL(base *url.URL, ref string) string {
	if base == nil || ref == "" {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
