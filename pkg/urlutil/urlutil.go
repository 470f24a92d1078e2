// Package urlutil provides URL helpers that preserve original encoding.
package urlutil

import (
	"net/http"
	"net/url"
	"strings"
)

const upperHex = "0123456789ABCDEF"

// EncodeURIComponent escapes s the way JavaScript's encodeURIComponent
// does: everything except A-Z a-z 0-9 and -_.!~*'() is percent-encoded
// as UTF-8 with uppercase hex. url.QueryEscape differs (space as '+',
// and it escapes !*'()), which would break links decoded by Stremio.
func EncodeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// Host returns the host of urlStr, or "invalid" when it cannot be parsed.
// Used as a low-cardinality metrics label.
func Host(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Host == "" {
		return "invalid"
	}
	return parsed.Host
}

// RequestOrigin returns scheme://host of the inbound request as seen by
// the client.
func RequestOrigin(r *http.Request, trustProxy bool) string {
	scheme, host := RequestSchemeHost(r, trustProxy)
	return scheme + "://" + host
}

// RequestSchemeHost returns the scheme and host the client used. The
// X-Forwarded-Proto and X-Forwarded-Host headers are only honoured when
// trustProxy is set, since any client can send them.
func RequestSchemeHost(r *http.Request, trustProxy bool) (scheme, host string) {
	scheme = "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host = r.Host
	if !trustProxy {
		return scheme, host
	}

	if proto := strings.ToLower(firstHeaderValue(r.Header.Get("X-Forwarded-Proto"))); proto == "http" || proto == "https" {
		scheme = proto
	}
	if fwd := firstHeaderValue(r.Header.Get("X-Forwarded-Host")); fwd != "" {
		host = fwd
	}
	return scheme, host
}

func firstHeaderValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

// StreamResourceURL derives an addon's stream resource URL from its
// manifest URL: the manifest suffix is replaced by /stream/ followed by
// resourcePath.
func StreamResourceURL(manifestURL, resourcePath string) string {
	base := strings.TrimSpace(manifestURL)
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, "/manifest.json")
	base = strings.TrimRight(base, "/")
	return base + "/stream/" + strings.TrimLeft(resourcePath, "/")
}

// TrimJSONSuffix removes a trailing ".json" from a resource path.
func TrimJSONSuffix(resourcePath string) string {
	return strings.TrimSuffix(resourcePath, ".json")
}

// IsHTTPURL reports whether s is an absolute http or https URL with a host.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
