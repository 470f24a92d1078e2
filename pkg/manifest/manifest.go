// Package manifest resolves receiver configs into the catalogs and live
// sync types in effect, and builds the Stremio manifest for a config token.
package manifest

import (
	"slices"

	"syncribullet/pkg/interfaces"
	"syncribullet/pkg/types"
)

// Resolve returns the effective settings of cfg for receiver r. Absent
// catalogs resolve to the defaults in static order, present ones keep the
// order of cfg.Catalogs. Absent live sync resolves to every type.
func Resolve(r interfaces.Receiver, cfg types.UserConfig) types.EffectiveSettings {
	return types.EffectiveSettings{
		Catalogs: r.GetManifestCatalogItems(cfg.Catalogs),
		LiveSync: r.GetLiveSyncTypes(cfg.LiveSync),
	}
}

// Info is the static identity of the addon.
type Info struct {
	ID          string
	Version     string
	Name        string
	Description string
	Logo        string
}

// DefaultInfo describes this addon.
var DefaultInfo = Info{
	ID:          "com.syncribullet",
	Version:     "0.1.0",
	Name:        "SyncriBullet",
	Description: "Sync your Stremio library with Simkl, AniList and Kitsu, and bring their lists in as catalogs.",
}

// Manifest is the Stremio addon manifest.
type Manifest struct {
	ID            string                      `json:"id"`
	Version       string                      `json:"version"`
	Name          string                      `json:"name"`
	Description   string                      `json:"description"`
	Logo          string                      `json:"logo,omitempty"`
	Resources     []string                    `json:"resources"`
	Types         []types.ContentType         `json:"types"`
	Catalogs      []types.ManifestCatalogItem `json:"catalogs"`
	IDPrefixes    []string                    `json:"idPrefixes,omitempty"`
	BehaviorHints BehaviorHints               `json:"behaviorHints"`
}

// BehaviorHints tells Stremio how to present the addon.
type BehaviorHints struct {
	Configurable          bool `json:"configurable"`
	ConfigurationRequired bool `json:"configurationRequired"`
}

// ReceiverList yields receivers in display order.
type ReceiverList interface {
	All() []interfaces.Receiver
}

// Build produces the manifest for a decoded token. Catalogs of every
// configured receiver are concatenated in receiver order; within one
// receiver they follow the user's order.
func Build(list ReceiverList, configs map[types.ReceiverID]types.UserConfig, globals types.GlobalSettings, info Info) Manifest {
	m := Manifest{
		ID:          info.ID,
		Version:     info.Version,
		Name:        info.Name,
		Description: info.Description,
		Logo:        info.Logo,
		Resources:   []string{},
		Types:       []types.ContentType{},
		Catalogs:    []types.ManifestCatalogItem{},
		BehaviorHints: BehaviorHints{
			Configurable:          true,
			ConfigurationRequired: len(configs) == 0 && len(globals.ExternalStreamAddons) == 0,
		},
	}

	for _, r := range list.All() {
		cfg, ok := configs[r.ID()]
		if !ok {
			continue
		}
		m.Catalogs = append(m.Catalogs, Resolve(r, cfg).Catalogs...)
	}

	if len(m.Catalogs) > 0 {
		m.Resources = append(m.Resources, "catalog")
		for _, c := range m.Catalogs {
			if !slices.Contains(m.Types, c.Type) {
				m.Types = append(m.Types, c.Type)
			}
		}
	}

	if len(globals.ExternalStreamAddons) > 0 {
		m.Resources = append(m.Resources, "stream")
		for _, t := range []types.ContentType{types.ContentMovie, types.ContentSeries, types.ContentAnime} {
			if !slices.Contains(m.Types, t) {
				m.Types = append(m.Types, t)
			}
		}
		m.IDPrefixes = []string{"tt", "kitsu:", "anilist:", "mal:", "simkl:"}
	}

	return m
}

// FindCatalog locates the receiver offering catalogID among the
// configured receivers and reports whether the user enabled it.
func FindCatalog(list ReceiverList, configs map[types.ReceiverID]types.UserConfig, catalogID string) (interfaces.Receiver, types.ManifestCatalogItem, bool) {
	for _, r := range list.All() {
		cfg, ok := configs[r.ID()]
		if !ok {
			continue
		}
		for _, item := range Resolve(r, cfg).Catalogs {
			if item.ID == catalogID {
				return r, item, true
			}
		}
	}
	return nil, types.ManifestCatalogItem{}, false
}
