// Package stremio serves the addon resources Stremio requests for a
// config token: manifest, catalogs, streams and the subtitles redirect.
package stremio

import "encoding/json"

// Response bodies. Empty results are encoded as empty arrays so Stremio
// never sees null.
type (
	metasResponse struct {
		Metas           []map[string]any `json:"metas"`
		CacheMaxAge     int              `json:"cacheMaxAge,omitempty"`
		StaleRevalidate int              `json:"staleRevalidate,omitempty"`
	}

	subtitlesResponse struct {
		Subtitles []json.RawMessage `json:"subtitles"`
	}
)

func emptyMetas() metasResponse {
	return metasResponse{Metas: []map[string]any{}}
}

func emptySubtitles() subtitlesResponse {
	return subtitlesResponse{Subtitles: []json.RawMessage{}}
}

// Cache hints of catalog responses, in seconds.
const (
	catalogCacheMaxAge     = 5 * 60
	catalogStaleRevalidate = 60 * 60
)
