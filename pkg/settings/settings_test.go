package settings

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"syncribullet/pkg/interfaces"
	"syncribullet/pkg/receivers"
	"syncribullet/pkg/types"
)

func TestRoundTrip(t *testing.T) {
	simkl := receivers.NewSimkl()
	kitsu := receivers.NewKitsu()

	tests := []struct {
		name string
		r    interfaces.Receiver
		cfg  types.UserConfig
	}{
		{
			name: "defaults",
			r:    simkl,
			cfg: types.UserConfig{
				Catalogs: simkl.DefaultCatalogs(),
				LiveSync: simkl.LiveSyncTypes(),
			},
		},
		{
			name: "reordered catalogs and partial live sync",
			r:    simkl,
			cfg: types.UserConfig{
				Catalogs: []string{"simkl_dropped_anime", "simkl_watching_series", "simkl_completed_movie"},
				LiveSync: []types.LiveSyncType{"watching", "completed"},
			},
		},
		{
			name: "no catalogs and no live sync",
			r:    kitsu,
			cfg: types.UserConfig{
				Catalogs: []string{},
				LiveSync: []types.LiveSyncType{},
			},
		},
		{
			name: "credentials with delimiters",
			r:    kitsu,
			cfg: types.UserConfig{
				Credentials: types.Credentials{
					"access_token":  "a.b|c=d%e",
					"refresh_token": "",
					"user.id":       "42",
				},
				Catalogs: kitsu.DefaultCatalogs(),
				LiveSync: []types.LiveSyncType{"on_hold"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.r, tt.cfg)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			decoded, err := Decode(tt.r, encoded)
			if err != nil {
				t.Fatalf("Decode(%q) error = %v", encoded, err)
			}
			if !reflect.DeepEqual(decoded, tt.cfg) {
				t.Errorf("round trip mismatch\n got: %+v\nwant: %+v\n enc: %q", decoded, tt.cfg, encoded)
			}
		})
	}
}

func TestEncode_OmitsDefaults(t *testing.T) {
	simkl := receivers.NewSimkl()

	encoded, err := Encode(simkl, types.UserConfig{
		Catalogs: simkl.DefaultCatalogs(),
		LiveSync: simkl.LiveSyncTypes(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if encoded != "" {
		t.Errorf("Encode(defaults) = %q, want empty", encoded)
	}

	encoded, err = Encode(simkl, types.UserConfig{Catalogs: []string{}})
	if err != nil {
		t.Fatal(err)
	}
	if encoded != "c=" {
		t.Errorf("Encode(no catalogs) = %q, want %q", encoded, "c=")
	}
}

func TestDecode_SynthesizesDefaults(t *testing.T) {
	anilist := receivers.NewAniList()

	cfg, err := Decode(anilist, "")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg.Catalogs, anilist.DefaultCatalogs()) {
		t.Errorf("Catalogs = %v, want defaults %v", cfg.Catalogs, anilist.DefaultCatalogs())
	}
	if !reflect.DeepEqual(cfg.LiveSync, anilist.LiveSyncTypes()) {
		t.Errorf("LiveSync = %v, want all %v", cfg.LiveSync, anilist.LiveSyncTypes())
	}
}

func TestEncode_NoRawDelimitersInCredentials(t *testing.T) {
	kitsu := receivers.NewKitsu()
	encoded, err := Encode(kitsu, types.UserConfig{
		Credentials: types.Credentials{"access_token": "x|y=z.w"},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, value, _ := strings.Cut(encoded, "=")
	if strings.ContainsAny(value, "|=.") {
		t.Errorf("credential value %q contains a raw delimiter", value)
	}
}

func TestEncode_UnknownIDs(t *testing.T) {
	simkl := receivers.NewSimkl()

	if _, err := Encode(simkl, types.UserConfig{Catalogs: []string{"nope"}}); !errors.Is(err, ErrMalformedSettings) {
		t.Errorf("unknown catalog error = %v", err)
	}
	if _, err := Encode(simkl, types.UserConfig{LiveSync: []types.LiveSyncType{"nope"}}); !errors.Is(err, ErrMalformedSettings) {
		t.Errorf("unknown live sync error = %v", err)
	}
}

func TestEncode_RejectsInvalidUTF8(t *testing.T) {
	kitsu := receivers.NewKitsu()

	for _, creds := range []types.Credentials{
		{"blob": "\xff\xfe"},
		{"\xff": "v"},
	} {
		if _, err := Encode(kitsu, types.UserConfig{Credentials: creds}); !errors.Is(err, ErrMalformedSettings) {
			t.Errorf("Encode(%q) error = %v, want ErrMalformedSettings", creds, err)
		}
	}

	// Valid multi-byte text survives untouched.
	creds := types.Credentials{"name": "日本語 ✓"}
	encoded, err := Encode(kitsu, types.UserConfig{Credentials: creds})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(kitsu, encoded)
	if err != nil {
		t.Fatal(err)
	}
	if got.Credentials["name"] != creds["name"] {
		t.Errorf("credential = %q, want %q", got.Credentials["name"], creds["name"])
	}
}

func TestDecode_Malformed(t *testing.T) {
	simkl := receivers.NewSimkl()

	for _, in := range []string{
		"x=1",
		"c",
		"c=zz",
		"c=1..2",
		"l=9",
		"c=1|c=2",
		"a.k=%zz",
		"a.k=v|a.k=w",
	} {
		t.Run(in, func(t *testing.T) {
			if _, err := Decode(simkl, in); !errors.Is(err, ErrMalformedSettings) {
				t.Errorf("Decode(%q) error = %v, want ErrMalformedSettings", in, err)
			}
		})
	}
}
