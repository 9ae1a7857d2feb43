package util

import (
	"net/url"
	"strings"
)

// IsRedirectSafe reports whether a post-login redirect target stays on this
// server. Relative paths are accepted unless they are protocol-relative;
// absolute URLs must use http(s) and match the host of baseURL.
func IsRedirectSafe(redirectURL, baseURL string) bool {
	if redirectURL == "" {
		return true
	}
	if strings.ContainsAny(redirectURL, "\r\n\\") {
		return false
	}
	if strings.HasPrefix(redirectURL, "/") {
		return !strings.HasPrefix(redirectURL, "//")
	}

	target, err := url.Parse(redirectURL)
	if err != nil {
		return false
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return false
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return target.Host == base.Host
}
