package urlutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEncodeURIComponent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"unreserved untouched", "AZaz09-_.!~*'()", "AZaz09-_.!~*'()"},
		{"space", "a b", "a%20b"},
		{"reserved", "https://x.example/a?b=c&d=e#f", "https%3A%2F%2Fx.example%2Fa%3Fb%3Dc%26d%3De%23f"},
		{"plus and percent", "1+1%", "1%2B1%25"},
		{"utf8", "é", "%C3%A9"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeURIComponent(tt.in); got != tt.want {
				t.Errorf("EncodeURIComponent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStreamResourceURL(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		path     string
		want     string
	}{
		{
			name:     "manifest suffix replaced",
			manifest: "https://addon.example/abc/manifest.json",
			path:     "movie/tt123.json",
			want:     "https://addon.example/abc/stream/movie/tt123.json",
		},
		{
			name:     "no manifest suffix",
			manifest: "https://addon.example/abc/",
			path:     "series/tt1:1:2.json",
			want:     "https://addon.example/abc/stream/series/tt1:1:2.json",
		},
		{
			name:     "query dropped",
			manifest: "https://addon.example/manifest.json?x=1",
			path:     "/movie/tt1.json",
			want:     "https://addon.example/stream/movie/tt1.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StreamResourceURL(tt.manifest, tt.path); got != tt.want {
				t.Errorf("StreamResourceURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestOrigin(t *testing.T) {
	newReq := func() *http.Request {
		r := httptest.NewRequest("GET", "http://addon.local:7000/x/stream/movie/tt1.json", nil)
		r.Header.Set("X-Forwarded-Proto", "https, http")
		r.Header.Set("X-Forwarded-Host", "public.example")
		return r
	}

	tests := []struct {
		name       string
		trustProxy bool
		want       string
	}{
		{"forwarded headers ignored", false, "http://addon.local:7000"},
		{"behind trusted proxy", true, "https://public.example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequestOrigin(newReq(), tt.trustProxy); got != tt.want {
				t.Errorf("RequestOrigin() = %q, want %q", got, tt.want)
			}
		})
	}

	r := httptest.NewRequest("GET", "http://addon.local/", nil)
	r.Header.Set("X-Forwarded-Proto", "javascript")
	if scheme, _ := RequestSchemeHost(r, true); scheme != "http" {
		t.Errorf("scheme = %q, want http for an unknown forwarded proto", scheme)
	}
}

func TestIsHTTPURL(t *testing.T) {
	for in, want := range map[string]bool{
		"https://x.example/a": true,
		"http://x.example":    true,
		"javascript:alert(1)": false,
		"/relative":           false,
		"ftp://x.example":     false,
	} {
		if got := IsHTTPURL(in); got != want {
			t.Errorf("IsHTTPURL(%q) = %v, want %v", in, got, want)
		}
	}
}
