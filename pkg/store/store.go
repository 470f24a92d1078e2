// Package store persists receiver user configs and global settings.
//
// Three backends implement interfaces.ConfigStore and
// interfaces.SettingsStore: Memory for tests and one-shot runs, Bolt for a
// local file and Redis for a shared deployment.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"syncribullet/pkg/config"
	"syncribullet/pkg/interfaces"
	"syncribullet/pkg/logging"
	"syncribullet/pkg/types"
)

// ErrCorrupt wraps stored values that no longer decode.
var ErrCorrupt = errors.New("stored value is corrupt")

// Store is a ConfigStore that also keeps global settings.
type Store interface {
	interfaces.ConfigStore
	interfaces.SettingsStore
}

// Open picks the backend from cfg: Redis when REDIS_URL is set, otherwise
// a bbolt file at STORE_PATH.
func Open(ctx context.Context, cfg *config.Config, log *logging.Logger) (Store, error) {
	if cfg.RedisURL != "" {
		s, err := NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		log.WithComponent("store").Debug("using redis store")
		return s, nil
	}
	s, err := NewBolt(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	log.WithComponent("store").Debug("using bolt store", "path", cfg.StorePath)
	return s, nil
}

func cloneConfig(c types.UserConfig) types.UserConfig {
	return types.UserConfig{
		Credentials: maps.Clone(c.Credentials),
		Catalogs:    slices.Clone(c.Catalogs),
		LiveSync:    slices.Clone(c.LiveSync),
	}
}

func cloneGlobals(g types.GlobalSettings) types.GlobalSettings {
	return types.GlobalSettings{ExternalStreamAddons: slices.Clone(g.ExternalStreamAddons)}
}

func decodeConfig(data []byte) (types.UserConfig, error) {
	var cfg types.UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return types.UserConfig{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return cfg, nil
}

func decodeGlobals(data []byte) (types.GlobalSettings, error) {
	var g types.GlobalSettings
	if err := json.Unmarshal(data, &g); err != nil {
		return types.GlobalSettings{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return g, nil
}
