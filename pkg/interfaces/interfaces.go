// Package interfaces defines the core abstractions of the addon.
// Every receiver and every config store implements these interfaces, so
// new tracking services and storage backends plug in without touching the
// request path.
package interfaces

import (
	"context"
	"net/http"

	"syncribullet/pkg/types"
)

// Receiver is the static capability of a tracking service.
//
// To add a new receiver:
// 1. Create a new file in pkg/receivers/
// 2. Implement this interface (embedding receivers.Base does most of it)
// 3. Register it in the ReceiverRegistry
type Receiver interface {
	// ID returns the unique identifier of the receiver.
	ID() types.ReceiverID

	// Info returns display information.
	Info() types.ReceiverInfo

	// ManifestCatalogItems returns every catalog the receiver offers, in static order.
	ManifestCatalogItems() []types.ManifestCatalogItem

	// DefaultCatalogs returns the ids enabled when the user has not chosen any, in static order.
	DefaultCatalogs() []string

	// LiveSyncTypes returns every live sync category, in static order.
	LiveSyncTypes() []types.LiveSyncType

	// HasCatalog reports whether id names one of the receiver catalogs.
	HasCatalog(id string) bool

	// HasLiveSyncType reports whether t is one of the receiver live sync types.
	HasLiveSyncType(t types.LiveSyncType) bool

	// GetManifestCatalogItems returns the items for ids in the order of ids.
	// A nil ids slice selects the default catalogs.
	GetManifestCatalogItems(ids []string) []types.ManifestCatalogItem

	// GetLiveSyncTypes returns the live sync types contained in ids.
	// A nil ids slice selects every type.
	GetLiveSyncTypes(ids []types.LiveSyncType) []types.LiveSyncType
}

// OAuthReceiver is implemented by receivers that log in through an OAuth
// authorize redirect.
type OAuthReceiver interface {
	Receiver

	// AuthorizeURL builds the provider authorize URL for a user supplied client id.
	AuthorizeURL(clientID, redirectURI string) string
}

// ConfigStore persists receiver user configs.
type ConfigStore interface {
	// Get returns the stored config and whether one exists.
	Get(ctx context.Context, id types.ReceiverID) (types.UserConfig, bool, error)

	// Update runs fn against the current config and stores the result atomically.
	// If fn returns an error nothing is written.
	Update(ctx context.Context, id types.ReceiverID, fn func(*types.UserConfig) error) error

	// Delete removes the config. Deleting a missing config is not an error.
	Delete(ctx context.Context, id types.ReceiverID) error

	// Close releases the underlying resources.
	Close() error
}

// SettingsStore persists the global settings edited alongside receivers.
type SettingsStore interface {
	GetGlobal(ctx context.Context) (types.GlobalSettings, error)
	UpdateGlobal(ctx context.Context, fn func(*types.GlobalSettings) error) error
}

// LibrarySource fetches the items of a catalog from a receiver's remote API.
// The remote API is an external collaborator; the addon only forwards
// what this returns.
type LibrarySource interface {
	Catalog(ctx context.Context, receiver types.ReceiverID, cfg types.UserConfig, item types.ManifestCatalogItem, extra map[string]string) ([]map[string]any, error)
}

// HTTPClient abstracts HTTP operations for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
