package receivers

import "syncribullet/pkg/types"

// Kitsu library entry statuses.
const (
	KitsuCurrent   types.LiveSyncType = "current"
	KitsuPlanned   types.LiveSyncType = "planned"
	KitsuCompleted types.LiveSyncType = "completed"
	KitsuOnHold    types.LiveSyncType = "on_hold"
	KitsuDropped   types.LiveSyncType = "dropped"
)

// Kitsu credential keys. Kitsu logs in with a password grant so the
// refresh token is stored next to the access token.
const (
	KitsuAccessToken  = "access_token"
	KitsuRefreshToken = "refresh_token"
	KitsuUserID       = "user_id"
)

// Kitsu is the kitsu.app receiver.
type Kitsu struct {
	*Base
}

// NewKitsu creates the Kitsu receiver.
func NewKitsu() *Kitsu {
	catalogs := []types.ManifestCatalogItem{
		catalog("kitsu_current_anime", "Kitsu Watching", types.ContentAnime, extraSkip),
		catalog("kitsu_planned_anime", "Kitsu Want To Watch", types.ContentAnime, extraSkip),
		catalog("kitsu_completed_anime", "Kitsu Completed", types.ContentAnime, extraSkip),
		catalog("kitsu_on_hold_anime", "Kitsu On Hold", types.ContentAnime, extraSkip),
		catalog("kitsu_dropped_anime", "Kitsu Dropped", types.ContentAnime, extraSkip),
	}
	defaults := []string{"kitsu_current_anime", "kitsu_planned_anime"}
	liveSync := []types.LiveSyncType{KitsuCurrent, KitsuPlanned, KitsuCompleted, KitsuOnHold, KitsuDropped}

	info := types.ReceiverInfo{
		ID:       types.ReceiverKitsu,
		Text:     "Kitsu",
		LiveSync: true,
	}
	return &Kitsu{Base: NewBase(info, catalogs, defaults, liveSync)}
}
