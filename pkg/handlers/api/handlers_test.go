package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"syncribullet/pkg/appctx"
	"syncribullet/pkg/config"
	"syncribullet/pkg/logging"
	"syncribullet/pkg/receivers"
	"syncribullet/pkg/registry"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	reg := registry.NewReceiverRegistry()
	for _, r := range receivers.Builtin() {
		reg.Register(r)
	}

	promReg := prometheus.NewRegistry()
	probe := prometheus.NewCounter(prometheus.CounterOpts{Name: "probe_total", Help: "test"})
	promReg.MustRegister(probe)
	probe.Inc()

	ctx := appctx.New(&config.Config{BaseURL: "http://localhost:7000"}, logging.Discard(), reg).
		WithMetrics(promReg)

	mux := http.NewServeMux()
	NewHandlers(ctx).RegisterRoutes(mux)
	return mux
}

func get(mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	w := get(newTestMux(t), "/health")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestHandleReceivers(t *testing.T) {
	w := get(newTestMux(t), "/api/receivers")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var views []struct {
		ID              string   `json:"id"`
		DefaultCatalogs []string `json:"defaultCatalogs"`
		RedirectURI     string   `json:"redirectUri"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &views); err != nil {
		t.Fatal(err)
	}

	want := []struct {
		id          string
		redirectURI string
	}{
		{"simkl", "http://example.com.baby-beamup.club/oauth/simkl/"},
		{"anilist", "http://example.com.baby-beamup.club/oauth/anilist/"},
		{"kitsu", ""},
	}
	if len(views) != len(want) {
		t.Fatalf("got %d receivers, want %d", len(views), len(want))
	}
	for i, tt := range want {
		if views[i].ID != tt.id {
			t.Errorf("receiver %d = %s, want %s", i, views[i].ID, tt.id)
		}
		if views[i].RedirectURI != tt.redirectURI {
			t.Errorf("%s redirectUri = %q, want %q", tt.id, views[i].RedirectURI, tt.redirectURI)
		}
		if len(views[i].DefaultCatalogs) == 0 {
			t.Errorf("%s has no default catalogs", tt.id)
		}
	}
}

func TestHandleBareManifest(t *testing.T) {
	w := get(newTestMux(t), "/manifest.json")

	var m struct {
		ID            string   `json:"id"`
		Resources     []string `json:"resources"`
		Catalogs      []any    `json:"catalogs"`
		BehaviorHints struct {
			Configurable          bool `json:"configurable"`
			ConfigurationRequired bool `json:"configurationRequired"`
		} `json:"behaviorHints"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	if m.ID != "com.syncribullet" {
		t.Errorf("id = %q", m.ID)
	}
	if m.Catalogs == nil || len(m.Catalogs) != 0 {
		t.Errorf("catalogs = %v, want empty array", m.Catalogs)
	}
	if !m.BehaviorHints.Configurable || !m.BehaviorHints.ConfigurationRequired {
		t.Errorf("behaviorHints = %+v", m.BehaviorHints)
	}
}

func TestHandleOAuthCallback(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"known receiver with code", "/oauth/simkl/?code=abc%3Cb%3E", http.StatusOK, "abc&lt;b&gt;"},
		{"implicit grant", "/oauth/anilist/", http.StatusOK, "anilist login"},
		{"unknown receiver", "/oauth/trakt/", http.StatusNotFound, ""},
	}

	mux := newTestMux(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(mux, tt.path)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q", tt.wantBody)
			}
		})
	}
}

func TestHandleIndex(t *testing.T) {
	w := get(newTestMux(t), "/")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	for _, want := range []string{"SyncriBullet", "Simkl", "Kitsu", "http://localhost:7000/&lt;token&gt;/manifest.json"} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("index missing %q", want)
		}
	}
}

func TestHandleMetrics(t *testing.T) {
	w := get(newTestMux(t), "/metrics")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "probe_total 1") {
		t.Errorf("metrics output missing probe counter:\n%s", w.Body.String())
	}
}
