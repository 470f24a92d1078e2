// Package api provides the operational HTTP handlers of the addon: landing
// page, receiver discovery, OAuth callback, health and metrics.
package api

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"syncribullet/pkg/appctx"
	"syncribullet/pkg/interfaces"
	"syncribullet/pkg/logging"
	"syncribullet/pkg/manifest"
	"syncribullet/pkg/receivers"
	"syncribullet/pkg/types"
	"syncribullet/pkg/urlutil"
)

// Handlers contains all API handlers.
type Handlers struct {
	ctx *appctx.Context
	log *logging.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctx *appctx.Context) *Handlers {
	return &Handlers{
		ctx: ctx,
		log: ctx.Log.WithComponent("api"),
	}
}

// RegisterRoutes registers all API routes.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /favicon.ico", h.handleFavicon)
	mux.HandleFunc("GET /manifest.json", h.handleBareManifest)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/info", h.handleAPIInfo)
	mux.HandleFunc("GET /api/receivers", h.handleReceivers)
	mux.HandleFunc("GET /oauth/{receiver}/{$}", h.handleOAuthCallback)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.ctx.Metrics, promhttp.HandlerOpts{}))
}

// handleIndex serves a minimal landing page.
func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	var items strings.Builder
	for _, rc := range h.ctx.Receivers.All() {
		info := rc.Info()
		fmt.Fprintf(&items, "<li>%s: %d catalogs, live sync: %s</li>\n",
			html.EscapeString(info.Text), len(rc.ManifestCatalogItems()), yesNo(info.LiveSync))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%[1]s</title>
</head>
<body>
    <h1>%[1]s</h1>
    <p>%[2]s</p>
    <h2>Receivers</h2>
    <ul>
%[3]s    </ul>
    <p>Build your install URL with <code>syncribullet-config token</code>, then open
    <code>%[4]s/&lt;token&gt;/manifest.json</code> in Stremio.</p>
</body>
</html>`,
		html.EscapeString(manifest.DefaultInfo.Name),
		html.EscapeString(manifest.DefaultInfo.Description),
		items.String(),
		html.EscapeString(strings.TrimRight(h.ctx.Config.BaseURL, "/")),
	)
}

func (h *Handlers) handleFavicon(w http.ResponseWriter, r *http.Request) {
	http.NotFound(w, r)
}

// handleBareManifest serves the manifest of an unconfigured install.
func (h *Handlers) handleBareManifest(w http.ResponseWriter, r *http.Request) {
	m := manifest.Build(h.ctx.Receivers, nil, types.GlobalSettings{}, manifest.DefaultInfo)
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAPIInfo returns server status as JSON.
func (h *Handlers) handleAPIInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "running",
		"version":      manifest.DefaultInfo.Version,
		"receivers":    h.ctx.Receivers.IDs(),
		"insecureKey":  h.ctx.Config.EncryptionKeyIsFallback,
		"libraryReady": h.ctx.Library != nil,
	})
}

type receiverView struct {
	types.ReceiverInfo
	Catalogs        []types.ManifestCatalogItem `json:"catalogs"`
	DefaultCatalogs []string                    `json:"defaultCatalogs"`
	LiveSyncTypes   []types.LiveSyncType        `json:"liveSyncTypes"`
	RedirectURI     string                      `json:"redirectUri,omitempty"`
}

// handleReceivers lists every receiver with its catalogs, for config UIs.
func (h *Handlers) handleReceivers(w http.ResponseWriter, r *http.Request) {
	scheme, host := urlutil.RequestSchemeHost(r, h.ctx.Config.TrustProxy)

	all := h.ctx.Receivers.All()
	out := make([]receiverView, 0, len(all))
	for _, rc := range all {
		v := receiverView{
			ReceiverInfo:    rc.Info(),
			Catalogs:        rc.ManifestCatalogItems(),
			DefaultCatalogs: rc.DefaultCatalogs(),
			LiveSyncTypes:   rc.LiveSyncTypes(),
		}
		if _, ok := rc.(interfaces.OAuthReceiver); ok {
			v.RedirectURI = receivers.RedirectURI(scheme, host, rc)
		}
		out = append(out, v)
	}
	h.writeJSON(w, http.StatusOK, out)
}

// handleOAuthCallback is the landing page of the OAuth redirect. Code
// grants arrive as ?code=, implicit grants in the URL fragment, which
// only the browser sees, so the page shows both.
func (h *Handlers) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseReceiverID(r.PathValue("receiver"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if _, ok := h.ctx.Receivers.Get(id); !ok {
		http.NotFound(w, r)
		return
	}

	code := r.URL.Query().Get("code")
	h.log.Debug("oauth callback", "receiver", id, "has_code", code != "")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>%[1]s login</title></head>
<body>
    <h1>%[1]s login</h1>
    <p>Code: <code id="code">%[2]s</code></p>
    <p>Token: <code id="token"></code></p>
    <p>Store it with <code>syncribullet-config auth %[1]s access_token=&lt;value&gt;</code>.</p>
    <script>
        const p = new URLSearchParams(location.hash.slice(1));
        document.getElementById('token').textContent = p.get('access_token') || '';
    </script>
</body>
</html>`, html.EscapeString(string(id)), html.EscapeString(code))
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Debug("write response", "error", err)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
