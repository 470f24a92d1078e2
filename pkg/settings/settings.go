// Package settings packs a receiver's UserConfig into a short string that
// can be embedded in the config token, and unpacks it again.
//
// The format is a list of key=value fields joined by '|':
//
//	c=<i>.<i>...   selected catalogs as base-36 indices into the static
//	               catalog list, in user order; absent means defaults and
//	               an empty value means no catalogs
//	l=<i>.<i>...   selected live sync types as indices, ascending; absent
//	               means every type
//	a.<k>=<v>      one credential; names sorted, '%', '|', '=' and '.'
//	               percent-escaped
package settings

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"syncribullet/pkg/interfaces"
	"syncribullet/pkg/types"
)

// ErrMalformedSettings is returned by Decode for strings Encode could not
// have produced, and by Encode for configs naming ids the receiver lacks.
var ErrMalformedSettings = errors.New("malformed receiver settings")

const (
	fieldSep      = "|"
	kvSep         = "="
	listSep       = "."
	catalogsKey   = "c"
	liveSyncKey   = "l"
	credentialKey = "a."
)

var escaper = strings.NewReplacer("%", "%25", "|", "%7C", "=", "%3D", ".", "%2E")

// Encode packs cfg for receiver r. Fields equal to the receiver defaults
// are omitted.
func Encode(r interfaces.Receiver, cfg types.UserConfig) (string, error) {
	var fields []string

	if cfg.Catalogs != nil && !slices.Equal(cfg.Catalogs, r.DefaultCatalogs()) {
		for _, id := range cfg.Catalogs {
			if !r.HasCatalog(id) {
				return "", fmt.Errorf("%w: %s has no catalog %q", ErrMalformedSettings, r.ID(), id)
			}
		}
		index := make(map[string]int)
		for i, item := range r.ManifestCatalogItems() {
			index[item.ID] = i
		}
		parts := make([]string, 0, len(cfg.Catalogs))
		for _, id := range cfg.Catalogs {
			parts = append(parts, strconv.FormatInt(int64(index[id]), 36))
		}
		fields = append(fields, catalogsKey+kvSep+strings.Join(parts, listSep))
	}

	if cfg.LiveSync != nil {
		all := r.LiveSyncTypes()
		for _, t := range cfg.LiveSync {
			if !r.HasLiveSyncType(t) {
				return "", fmt.Errorf("%w: %s has no live sync type %q", ErrMalformedSettings, r.ID(), t)
			}
		}
		selected := r.GetLiveSyncTypes(cfg.LiveSync)
		if !slices.Equal(selected, all) {
			parts := make([]string, 0, len(selected))
			for i, t := range all {
				if slices.Contains(selected, t) {
					parts = append(parts, strconv.FormatInt(int64(i), 36))
				}
			}
			fields = append(fields, liveSyncKey+kvSep+strings.Join(parts, listSep))
		}
	}

	names := make([]string, 0, len(cfg.Credentials))
	for name := range cfg.Credentials {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		// Values travel through JSON, which would replace invalid bytes.
		if !utf8.ValidString(name) || !utf8.ValidString(cfg.Credentials[name]) {
			return "", fmt.Errorf("%w: credential %q is not valid UTF-8", ErrMalformedSettings, name)
		}
		fields = append(fields, credentialKey+escaper.Replace(name)+kvSep+escaper.Replace(cfg.Credentials[name]))
	}

	return strings.Join(fields, fieldSep), nil
}

// Decode is the inverse of Encode. Absent fields decode to the receiver
// defaults, so the result always has non-nil Catalogs and LiveSync.
func Decode(r interfaces.Receiver, s string) (types.UserConfig, error) {
	var (
		cfg         types.UserConfig
		hasCatalogs bool
		hasLiveSync bool
	)

	if s != "" {
		for _, field := range strings.Split(s, fieldSep) {
			key, value, ok := strings.Cut(field, kvSep)
			if !ok {
				return types.UserConfig{}, fmt.Errorf("%w: field %q has no value", ErrMalformedSettings, field)
			}

			switch {
			case key == catalogsKey:
				if hasCatalogs {
					return types.UserConfig{}, fmt.Errorf("%w: duplicate catalogs", ErrMalformedSettings)
				}
				hasCatalogs = true
				items := r.ManifestCatalogItems()
				indices, err := parseIndices(value, len(items))
				if err != nil {
					return types.UserConfig{}, fmt.Errorf("catalogs: %w", err)
				}
				cfg.Catalogs = make([]string, 0, len(indices))
				for _, i := range indices {
					cfg.Catalogs = append(cfg.Catalogs, items[i].ID)
				}

			case key == liveSyncKey:
				if hasLiveSync {
					return types.UserConfig{}, fmt.Errorf("%w: duplicate live sync", ErrMalformedSettings)
				}
				hasLiveSync = true
				all := r.LiveSyncTypes()
				indices, err := parseIndices(value, len(all))
				if err != nil {
					return types.UserConfig{}, fmt.Errorf("live sync: %w", err)
				}
				selected := make([]types.LiveSyncType, 0, len(indices))
				for _, i := range indices {
					selected = append(selected, all[i])
				}
				cfg.LiveSync = r.GetLiveSyncTypes(selected)

			case strings.HasPrefix(key, credentialKey):
				name, err := unescape(strings.TrimPrefix(key, credentialKey))
				if err != nil {
					return types.UserConfig{}, err
				}
				val, err := unescape(value)
				if err != nil {
					return types.UserConfig{}, err
				}
				if cfg.Credentials == nil {
					cfg.Credentials = make(types.Credentials)
				}
				if _, dup := cfg.Credentials[name]; dup {
					return types.UserConfig{}, fmt.Errorf("%w: duplicate credential %q", ErrMalformedSettings, name)
				}
				cfg.Credentials[name] = val

			default:
				return types.UserConfig{}, fmt.Errorf("%w: unknown field %q", ErrMalformedSettings, key)
			}
		}
	}

	if !hasCatalogs {
		cfg.Catalogs = append([]string{}, r.DefaultCatalogs()...)
	}
	if !hasLiveSync {
		cfg.LiveSync = r.GetLiveSyncTypes(nil)
	}
	return cfg, nil
}

func parseIndices(value string, n int) ([]int, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, listSep)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		i, err := strconv.ParseUint(p, 36, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: bad index %q", ErrMalformedSettings, p)
		}
		if int(i) >= n {
			return nil, fmt.Errorf("%w: index %d out of range", ErrMalformedSettings, i)
		}
		out = append(out, int(i))
	}
	return out, nil
}

func unescape(s string) (string, error) {
	if strings.ContainsAny(s, "|=.") {
		return "", fmt.Errorf("%w: unescaped delimiter in %q", ErrMalformedSettings, s)
	}
	out, err := url.PathUnescape(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSettings, err)
	}
	return out, nil
}
