// Package types defines core domain types used throughout the application.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ReceiverID identifies a tracking service that can be connected to the addon.
type ReceiverID string

const (
	ReceiverSimkl   ReceiverID = "simkl"
	ReceiverAniList ReceiverID = "anilist"
	ReceiverKitsu   ReceiverID = "kitsu"
)

// ParseReceiverID validates a receiver identifier.
func ParseReceiverID(s string) (ReceiverID, error) {
	switch id := ReceiverID(s); id {
	case ReceiverSimkl, ReceiverAniList, ReceiverKitsu:
		return id, nil
	}
	return "", fmt.Errorf("unknown receiver %q", s)
}

// ContentType is the Stremio item type a catalog serves.
type ContentType string

const (
	ContentMovie  ContentType = "movie"
	ContentSeries ContentType = "series"
	ContentAnime  ContentType = "anime"
)

// CatalogExtra is an optional query parameter a catalog accepts.
type CatalogExtra struct {
	Name       string   `json:"name"`
	IsRequired bool     `json:"isRequired,omitempty"`
	Options    []string `json:"options,omitempty"`
}

// ManifestCatalogItem describes one catalog surfaced by a receiver.
type ManifestCatalogItem struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Type  ContentType    `json:"type"`
	Extra []CatalogExtra `json:"extra,omitempty"`
}

// LiveSyncType is a library status that triggers automatic synchronization.
type LiveSyncType string

// Credentials holds receiver specific authentication material.
// Keys and values are opaque to everything but the receiver itself.
type Credentials map[string]string

// UserConfig is the persisted state of one receiver.
// A nil Catalogs or LiveSync means "use the receiver defaults"; an empty
// non-nil slice means "none selected" and must survive persistence.
type UserConfig struct {
	Credentials Credentials    `json:"credentials,omitempty"`
	Catalogs    []string       `json:"catalogs"`
	LiveSync    []LiveSyncType `json:"liveSync"`
}

// UserConfigPatch is a partial update. Nil fields are left untouched.
type UserConfigPatch struct {
	Credentials *Credentials
	Catalogs    *[]string
	LiveSync    *[]LiveSyncType
}

// EffectiveSettings is the resolved view of a UserConfig against a receiver.
type EffectiveSettings struct {
	Catalogs []ManifestCatalogItem
	LiveSync []LiveSyncType
}

// ExternalAddon is a third-party Stremio addon queried for extra streams.
type ExternalAddon struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// GlobalSettings holds cross-receiver flags carried in the config token.
type GlobalSettings struct {
	ExternalStreamAddons []ExternalAddon `json:"externalStreamAddons,omitempty"`
}

// ReceiverInfo is display information about a receiver.
type ReceiverInfo struct {
	ID         ReceiverID `json:"id"`
	Text       string     `json:"text"`
	LiveSync   bool       `json:"liveSync"`
	FullSync   bool       `json:"fullSync"`
	OAuthLogin bool       `json:"oauthLogin"`
}

// StreamObject is a stream entry returned by an external addon.
// Unknown fields are kept verbatim so the object can be forwarded unchanged.
type StreamObject struct {
	fields map[string]json.RawMessage
}

const externalURLKey = "externalUrl"

// ExternalURL returns the externalUrl field, if present and a string.
func (s StreamObject) ExternalURL() (string, bool) {
	raw, ok := s.fields[externalURLKey]
	if !ok {
		return "", false
	}
	var u string
	if err := json.Unmarshal(raw, &u); err != nil || u == "" {
		return "", false
	}
	return u, true
}

// SetExternalURL replaces the externalUrl field.
func (s *StreamObject) SetExternalURL(u string) {
	if s.fields == nil {
		s.fields = make(map[string]json.RawMessage)
	}
	raw, _ := json.Marshal(u)
	s.fields[externalURLKey] = raw
}

// Field returns a raw field value.
func (s StreamObject) Field(name string) (json.RawMessage, bool) {
	raw, ok := s.fields[name]
	return raw, ok
}

// MarshalJSON implements json.Marshaler.
func (s StreamObject) MarshalJSON() ([]byte, error) {
	if s.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.fields)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StreamObject) UnmarshalJSON(data []byte) error {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return fmt.Errorf("stream object must be a JSON object")
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	s.fields = fields
	return nil
}
