package receivers

import (
	"net/url"

	"syncribullet/pkg/types"
)

// AniList media list statuses used as live sync categories.
const (
	AniListCurrent   types.LiveSyncType = "CURRENT"
	AniListPlanning  types.LiveSyncType = "PLANNING"
	AniListCompleted types.LiveSyncType = "COMPLETED"
	AniListDropped   types.LiveSyncType = "DROPPED"
	AniListPaused    types.LiveSyncType = "PAUSED"
	AniListRepeating types.LiveSyncType = "REPEATING"
)

// AniList credential keys. The implicit grant returns the token and its
// expiry; the client id is kept so the user can log in again.
const (
	AniListAccessToken = "access_token"
	AniListExpiresIn   = "e"
	AniListClientID    = "client_id"
)

const aniListAuthorizeEndpoint = "https://anilist.co/api/v2/oauth/authorize"

// AniList is the anilist.co receiver.
type AniList struct {
	*Base
}

// NewAniList creates the AniList receiver.
func NewAniList() *AniList {
	catalogs := []types.ManifestCatalogItem{
		catalog("anilist_current_anime", "AniList Watching", types.ContentAnime, extraSkip),
		catalog("anilist_planning_anime", "AniList Planning", types.ContentAnime, extraSkip),
		catalog("anilist_completed_anime", "AniList Completed", types.ContentAnime, extraSkip),
		catalog("anilist_dropped_anime", "AniList Dropped", types.ContentAnime, extraSkip),
		catalog("anilist_paused_anime", "AniList Paused", types.ContentAnime, extraSkip),
		catalog("anilist_repeating_anime", "AniList Rewatching", types.ContentAnime, extraSkip),
	}
	defaults := []string{"anilist_current_anime", "anilist_planning_anime"}
	liveSync := []types.LiveSyncType{
		AniListCurrent,
		AniListPlanning,
		AniListCompleted,
		AniListDropped,
		AniListPaused,
		AniListRepeating,
	}

	info := types.ReceiverInfo{
		ID:         types.ReceiverAniList,
		Text:       "AniList",
		LiveSync:   true,
		OAuthLogin: true,
	}
	return &AniList{Base: NewBase(info, catalogs, defaults, liveSync)}
}

// AuthorizeURL builds the AniList implicit-grant authorize URL. AniList
// takes the redirect URI from the app registration, not from the query.
func (a *AniList) AuthorizeURL(clientID, _ string) string {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("response_type", "token")
	return aniListAuthorizeEndpoint + "?" + q.Encode()
}
