package nitter

import stealth "github.com/anatolykoptev/go-stealth"

// userAgent is the stable client identifier sent with every request.
const userAgent = "Mozilla/5.0 (compatible; go-nitter/1.0; +https://github.com/anatolykoptev/go-nitter)"

// nitterHeaders returns the headers for an HTML timeline request.
func nitterHeaders() map[string]string {
	h := map[string]string{
		"user-agent":      userAgent,
		"accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"accept-language": "en-US,en;q=0.9",
		"accept-encoding": "gzip, deflate, br",
	}
	if ch := stealth.ClientHintsHeaders(userAgent); ch != nil {
		for k, v := range ch {
			h[k] = v
		}
	}
	return h
}

// jsonHeaders returns the headers for the ?_format=json variant.
func jsonHeaders() map[string]string {
	h := nitterHeaders()
	h["accept"] = "application/json, text/plain;q=0.9, */*;q=0.8"
	return h
}

// nitterHeaderOrder keeps the header order stable across requests.
var nitterHeaderOrder = []string{
	"sec-ch-ua",
	"sec-ch-ua-mobile",
	"sec-ch-ua-platform",
	"user-agent",
	"accept",
	"accept-language",
	"accept-encoding",
}
