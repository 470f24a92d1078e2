package stremio

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"syncribullet/pkg/appctx"
	"syncribullet/pkg/logging"
	"syncribullet/pkg/manifest"
	"syncribullet/pkg/metrics"
	"syncribullet/pkg/services"
	"syncribullet/pkg/token"
	"syncribullet/pkg/urlutil"
)

// Handlers contains all Stremio addon handlers.
type Handlers struct {
	ctx *appctx.Context
	log *logging.Logger
}

// NewHandlers creates a new Stremio Handlers instance.
func NewHandlers(ctx *appctx.Context) *Handlers {
	return &Handlers{
		ctx: ctx,
		log: ctx.Log.WithComponent("stremio"),
	}
}

// RegisterRoutes registers all Stremio addon routes. Every route is keyed
// by the config token in the first path segment.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{config}/manifest.json", h.handleManifest)
	mux.HandleFunc("GET /{config}/catalog/{type}/{path...}", h.handleCatalog)
	mux.HandleFunc("GET /{config}/stream/{type}/{path...}", h.handleStream)
	mux.HandleFunc("GET /{config}/subtitles/{type}/{path...}", h.handleSubtitles)
}

// handleManifest returns the manifest for the token. An unreadable token
// yields the unconfigured manifest.
func (h *Handlers) handleManifest(w http.ResponseWriter, r *http.Request) {
	p := h.parseToken(r.PathValue("config"))
	m := manifest.Build(h.ctx.Receivers, p.Receivers, p.Globals, manifest.DefaultInfo)
	h.writeJSON(w, m)
}

// handleStream aggregates streams from the external addons in the token.
// The response is always 200; unknown origins get an empty object.
func (h *Handlers) handleStream(w http.ResponseWriter, r *http.Request) {
	if !h.ctx.Config.IsAllowedOrigin(r.Header.Get("Origin")) {
		metrics.OriginRejectedTotal.Inc()
		h.writeJSON(w, struct{}{})
		return
	}

	tok := r.PathValue("config")
	p := h.parseToken(tok)

	resp := h.ctx.Aggregator.Aggregate(r.Context(), services.StreamRequest{
		Token:        tok,
		ResourcePath: resourcePath(r),
		Origin:       urlutil.RequestOrigin(r, h.ctx.Config.TrustProxy),
		Addons:       p.Globals.ExternalStreamAddons,
	})
	h.writeJSON(w, resp)
}

// handleSubtitles resolves the links written by the stream rewrite:
// <token>/subtitles/<resource>/r.json?r=<link> redirects to link.
// Anything else is an empty subtitles list.
func (h *Handlers) handleSubtitles(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("r")
	if !strings.HasSuffix(r.PathValue("path"), "r.json") || !urlutil.IsHTTPURL(target) {
		h.writeJSON(w, emptySubtitles())
		return
	}
	if _, err := h.ctx.Tokens.Parse(r.PathValue("config")); err != nil {
		h.tokenFailed(err)
		h.writeJSON(w, emptySubtitles())
		return
	}
	metrics.TokenParseTotal.WithLabelValues("ok").Inc()

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusFound)
}

// handleCatalog serves a receiver catalog enabled in the token. Path forms:
// <id>.json and <id>/<extra>.json where extra is a query string such as
// skip=20.
func (h *Handlers) handleCatalog(w http.ResponseWriter, r *http.Request) {
	id, extra := splitCatalogPath(r.PathValue("path"))

	p := h.parseToken(r.PathValue("config"))
	receiver, item, ok := manifest.FindCatalog(h.ctx.Receivers, p.Receivers, id)
	if !ok || string(item.Type) != r.PathValue("type") || h.ctx.Library == nil {
		h.writeJSON(w, emptyMetas())
		return
	}

	metas, err := h.ctx.Library.Catalog(r.Context(), receiver.ID(), p.Receivers[receiver.ID()], item, extra)
	if err != nil {
		h.log.WithError(err).Warn("catalog fetch failed", "receiver", receiver.ID(), "catalog", id)
		h.writeJSON(w, emptyMetas())
		return
	}
	if metas == nil {
		metas = []map[string]any{}
	}
	h.writeJSON(w, metasResponse{
		Metas:           metas,
		CacheMaxAge:     catalogCacheMaxAge,
		StaleRevalidate: catalogStaleRevalidate,
	})
}

// parseToken decodes tok, treating failures as an empty configuration.
func (h *Handlers) parseToken(tok string) token.Payload {
	p, err := h.ctx.Tokens.ParseOrEmpty(tok)
	if err != nil {
		h.tokenFailed(err)
		return p
	}
	metrics.TokenParseTotal.WithLabelValues("ok").Inc()
	return p
}

func (h *Handlers) tokenFailed(err error) {
	stage := "unknown"
	var ite *token.InvalidTokenError
	if errors.As(err, &ite) {
		stage = ite.Stage
	}
	metrics.TokenParseTotal.WithLabelValues("invalid").Inc()
	h.log.Debug("unreadable config token", "stage", stage)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		h.log.WithError(err).Error("encode response")
		body = []byte("{}")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func resourcePath(r *http.Request) string {
	return r.PathValue("type") + "/" + r.PathValue("path")
}

func splitCatalogPath(path string) (string, map[string]string) {
	path = urlutil.TrimJSONSuffix(path)
	id, rawExtra, _ := strings.Cut(path, "/")

	extra := make(map[string]string)
	if rawExtra == "" {
		return id, extra
	}
	values, err := url.ParseQuery(rawExtra)
	if err != nil {
		return id, extra
	}
	for k := range values {
		extra[k] = values.Get(k)
	}
	return id, extra
}
