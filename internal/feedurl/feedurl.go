// Package feedurl normalizes and validates feed subscription URLs.
package feedurl

import (
	"fmt"
	"net/url"
	"strings"
)

const feedScheme = "feed:"

// Normalize strips a leading feed: scheme when it wraps an http(s) URL, as in
// "feed:https://example.com/rss". Anything else is returned trimmed.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, feedScheme) {
		return trimmed
	}
	rest := strings.TrimPrefix(trimmed, feedScheme)
	if strings.HasPrefix(rest, "https:") || strings.HasPrefix(rest, "http:") {
		return rest
	}
	return trimmed
}

// Validate normalizes raw and checks it is an absolute http(s) URL.
func Validate(raw string) (string, error) {
	normalized := Normalize(raw)
	if normalized == "" {
		return "", fmt.Errorf("feed has no URL")
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return "", fmt.Errorf("invalid URL format")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid URL host")
	}
	return normalized, nil
}
