// Package receivers provides the tracking services the addon can sync with.
// Each receiver describes its catalogs and live sync categories; Client
// binds a receiver to a config store for the user-config operations.
//
// To add a new receiver:
// 1. Create a new file (e.g., myservice.go)
// 2. Embed Base and fill it with NewBase
// 3. Register it in the registry (see internal/app)
package receivers

import (
	"slices"

	"syncribullet/pkg/interfaces"
	"syncribullet/pkg/types"
)

// Base implements the catalog and live sync lookups shared by every receiver.
type Base struct {
	info     types.ReceiverInfo
	catalogs []types.ManifestCatalogItem
	defaults []string
	liveSync []types.LiveSyncType

	catalogByID map[string]types.ManifestCatalogItem
	liveSyncSet map[types.LiveSyncType]struct{}
}

// NewBase creates a base receiver. Default ids that are not part of
// catalogs are dropped and defaults are kept in static order.
func NewBase(info types.ReceiverInfo, catalogs []types.ManifestCatalogItem, defaults []string, liveSync []types.LiveSyncType) *Base {
	b := &Base{
		info:        info,
		catalogs:    catalogs,
		liveSync:    liveSync,
		catalogByID: make(map[string]types.ManifestCatalogItem, len(catalogs)),
		liveSyncSet: make(map[types.LiveSyncType]struct{}, len(liveSync)),
	}
	for _, c := range catalogs {
		b.catalogByID[c.ID] = c
	}
	for _, l := range liveSync {
		b.liveSyncSet[l] = struct{}{}
	}
	for _, c := range catalogs {
		if slices.Contains(defaults, c.ID) {
			b.defaults = append(b.defaults, c.ID)
		}
	}
	return b
}

// ID returns the receiver identifier.
func (b *Base) ID() types.ReceiverID {
	return b.info.ID
}

// Info returns display information.
func (b *Base) Info() types.ReceiverInfo {
	return b.info
}

// ManifestCatalogItems returns a copy of the static catalog list.
func (b *Base) ManifestCatalogItems() []types.ManifestCatalogItem {
	return slices.Clone(b.catalogs)
}

// DefaultCatalogs returns a copy of the default catalog ids.
func (b *Base) DefaultCatalogs() []string {
	return slices.Clone(b.defaults)
}

// LiveSyncTypes returns a copy of the static live sync list.
func (b *Base) LiveSyncTypes() []types.LiveSyncType {
	return slices.Clone(b.liveSync)
}

// HasCatalog reports whether id is one of the receiver catalogs.
func (b *Base) HasCatalog(id string) bool {
	_, ok := b.catalogByID[id]
	return ok
}

// HasLiveSyncType reports whether t is one of the receiver live sync types.
func (b *Base) HasLiveSyncType(t types.LiveSyncType) bool {
	_, ok := b.liveSyncSet[t]
	return ok
}

// GetManifestCatalogItems returns the catalogs for ids, in the order of ids.
// The order of stored ids is what drives catalog order in the manifest.
func (b *Base) GetManifestCatalogItems(ids []string) []types.ManifestCatalogItem {
	if ids == nil {
		ids = b.defaults
	}
	out := make([]types.ManifestCatalogItem, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		item, ok := b.catalogByID[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	return out
}

// GetLiveSyncTypes returns the live sync types contained in ids, in static order.
func (b *Base) GetLiveSyncTypes(ids []types.LiveSyncType) []types.LiveSyncType {
	if ids == nil {
		return b.LiveSyncTypes()
	}
	out := make([]types.LiveSyncType, 0, len(ids))
	for _, l := range b.liveSync {
		if slices.Contains(ids, l) {
			out = append(out, l)
		}
	}
	return out
}

// catalog is a shorthand used by the receiver definitions.
func catalog(id, name string, t types.ContentType, extra ...types.CatalogExtra) types.ManifestCatalogItem {
	return types.ManifestCatalogItem{ID: id, Name: name, Type: t, Extra: extra}
}

var extraSkip = types.CatalogExtra{Name: "skip"}

// Builtin returns a fresh instance of every bundled receiver, in the order
// they are shown to the user.
func Builtin() []interfaces.Receiver {
	return []interfaces.Receiver{NewSimkl(), NewAniList(), NewKitsu()}
}
