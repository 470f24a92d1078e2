package receivers

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"unicode/utf8"

	"syncribullet/pkg/interfaces"
	"syncribullet/pkg/logging"
	"syncribullet/pkg/types"
)

var (
	ErrUnknownCatalog    = errors.New("unknown catalog")
	ErrUnknownLiveSync   = errors.New("unknown live sync type")
	ErrInvalidCredential = errors.New("credential is not valid UTF-8")
)

// ChangeNotifier is told when a receiver config was changed. It runs after
// the change is committed and its completion is never awaited.
type ChangeNotifier func(id types.ReceiverID)

// Client binds a receiver to the store holding its user config.
type Client struct {
	interfaces.Receiver

	store  interfaces.ConfigStore
	notify ChangeNotifier
	log    *logging.Logger
}

// NewClient creates a client for receiver r backed by store.
func NewClient(r interfaces.Receiver, store interfaces.ConfigStore, log *logging.Logger) *Client {
	return &Client{
		Receiver: r,
		store:    store,
		log:      log.WithComponent("receiver").With("receiver", string(r.ID())),
	}
}

// WithChangeNotifier sets the function fired after every committed change.
func (c *Client) WithChangeNotifier(fn ChangeNotifier) *Client {
	c.notify = fn
	return c
}

// GetUserConfig returns the stored config, or an empty config and false
// when the receiver has not been set up.
func (c *Client) GetUserConfig(ctx context.Context) (types.UserConfig, bool, error) {
	cfg, ok, err := c.store.Get(ctx, c.ID())
	if err != nil {
		return types.UserConfig{}, false, fmt.Errorf("load %s config: %w", c.ID(), err)
	}
	return cfg, ok, nil
}

// MergeUserConfig replaces every field present in patch and leaves the
// others untouched. The patch is validated before anything is written.
func (c *Client) MergeUserConfig(ctx context.Context, patch types.UserConfigPatch) error {
	if err := c.validate(patch); err != nil {
		return err
	}

	err := c.store.Update(ctx, c.ID(), func(cfg *types.UserConfig) error {
		if patch.Credentials != nil {
			cfg.Credentials = maps.Clone(*patch.Credentials)
		}
		if patch.Catalogs != nil {
			cfg.Catalogs = slices.Clone(*patch.Catalogs)
			if cfg.Catalogs == nil {
				cfg.Catalogs = []string{}
			}
		}
		if patch.LiveSync != nil {
			selected := *patch.LiveSync
			if selected == nil {
				selected = []types.LiveSyncType{}
			}
			cfg.LiveSync = c.GetLiveSyncTypes(selected)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("merge %s config: %w", c.ID(), err)
	}

	c.log.Debug("user config merged",
		"credentials", patch.Credentials != nil,
		"catalogs", patch.Catalogs != nil,
		"live_sync", patch.LiveSync != nil,
	)
	c.changed()
	return nil
}

// RemoveUserConfig deletes all stored config. Removing twice is a no-op.
func (c *Client) RemoveUserConfig(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.ID()); err != nil {
		return fmt.Errorf("remove %s config: %w", c.ID(), err)
	}
	c.log.Debug("user config removed")
	c.changed()
	return nil
}

// EffectiveSettings resolves the stored config against the receiver.
func (c *Client) EffectiveSettings(ctx context.Context) (types.EffectiveSettings, error) {
	cfg, _, err := c.GetUserConfig(ctx)
	if err != nil {
		return types.EffectiveSettings{}, err
	}
	return types.EffectiveSettings{
		Catalogs: c.GetManifestCatalogItems(cfg.Catalogs),
		LiveSync: c.GetLiveSyncTypes(cfg.LiveSync),
	}, nil
}

func (c *Client) validate(patch types.UserConfigPatch) error {
	if patch.Catalogs != nil {
		for _, id := range *patch.Catalogs {
			if !c.HasCatalog(id) {
				return fmt.Errorf("%w %q for %s", ErrUnknownCatalog, id, c.ID())
			}
		}
	}
	if patch.LiveSync != nil {
		for _, t := range *patch.LiveSync {
			if !c.HasLiveSyncType(t) {
				return fmt.Errorf("%w %q for %s", ErrUnknownLiveSync, t, c.ID())
			}
		}
	}
	if patch.Credentials != nil {
		for name, value := range *patch.Credentials {
			if !utf8.ValidString(name) || !utf8.ValidString(value) {
				return fmt.Errorf("%w: %q for %s", ErrInvalidCredential, name, c.ID())
			}
		}
	}
	return nil
}

func (c *Client) changed() {
	if c.notify == nil {
		return
	}
	go c.notify(c.ID())
}
