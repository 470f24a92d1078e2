package receivers

import (
	"net/url"

	"syncribullet/pkg/types"
)

// Simkl live sync categories, named after the Simkl list statuses.
const (
	SimklWatching    types.LiveSyncType = "watching"
	SimklPlanToWatch types.LiveSyncType = "plantowatch"
	SimklHold        types.LiveSyncType = "hold"
	SimklCompleted   types.LiveSyncType = "completed"
	SimklDropped     types.LiveSyncType = "dropped"
)

// Simkl credential keys.
const (
	SimklAccessToken = "access_token"
	SimklClientID    = "client_id"
)

const simklAuthorizeEndpoint = "https://simkl.com/oauth/authorize"

// Simkl is the simkl.com receiver.
type Simkl struct {
	*Base
}

// NewSimkl creates the Simkl receiver.
func NewSimkl() *Simkl {
	catalogs := []types.ManifestCatalogItem{
		catalog("simkl_watching_series", "Simkl Watching", types.ContentSeries, extraSkip),
		catalog("simkl_watching_anime", "Simkl Watching", types.ContentAnime, extraSkip),
		catalog("simkl_plantowatch_movie", "Simkl Plan To Watch", types.ContentMovie, extraSkip),
		catalog("simkl_plantowatch_series", "Simkl Plan To Watch", types.ContentSeries, extraSkip),
		catalog("simkl_plantowatch_anime", "Simkl Plan To Watch", types.ContentAnime, extraSkip),
		catalog("simkl_hold_series", "Simkl On Hold", types.ContentSeries, extraSkip),
		catalog("simkl_hold_anime", "Simkl On Hold", types.ContentAnime, extraSkip),
		catalog("simkl_completed_movie", "Simkl Completed", types.ContentMovie, extraSkip),
		catalog("simkl_completed_series", "Simkl Completed", types.ContentSeries, extraSkip),
		catalog("simkl_completed_anime", "Simkl Completed", types.ContentAnime, extraSkip),
		catalog("simkl_dropped_movie", "Simkl Dropped", types.ContentMovie, extraSkip),
		catalog("simkl_dropped_series", "Simkl Dropped", types.ContentSeries, extraSkip),
		catalog("simkl_dropped_anime", "Simkl Dropped", types.ContentAnime, extraSkip),
	}
	defaults := []string{
		"simkl_watching_series",
		"simkl_watching_anime",
		"simkl_plantowatch_movie",
		"simkl_plantowatch_series",
		"simkl_plantowatch_anime",
	}
	liveSync := []types.LiveSyncType{SimklWatching, SimklPlanToWatch, SimklHold, SimklCompleted, SimklDropped}

	info := types.ReceiverInfo{
		ID:         types.ReceiverSimkl,
		Text:       "Simkl",
		LiveSync:   true,
		FullSync:   true,
		OAuthLogin: true,
	}
	return &Simkl{Base: NewBase(info, catalogs, defaults, liveSync)}
}

// AuthorizeURL builds the Simkl code-grant authorize URL.
func (s *Simkl) AuthorizeURL(clientID, redirectURI string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	return simklAuthorizeEndpoint + "?" + q.Encode()
}
