package receivers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"syncribullet/pkg/interfaces"
	"syncribullet/pkg/logging"
	"syncribullet/pkg/store"
	"syncribullet/pkg/types"
)

func catalogIDs(items []types.ManifestCatalogItem) string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return strings.Join(ids, ",")
}

func TestGetManifestCatalogItems(t *testing.T) {
	k := NewKitsu()

	tests := []struct {
		name string
		ids  []string
		want string
	}{
		{"nil selects defaults", nil, "kitsu_current_anime,kitsu_planned_anime"},
		{"empty selects none", []string{}, ""},
		{"user order kept", []string{"kitsu_dropped_anime", "kitsu_current_anime"}, "kitsu_dropped_anime,kitsu_current_anime"},
		{"unknown ids skipped", []string{"nope", "kitsu_completed_anime"}, "kitsu_completed_anime"},
		{"duplicates collapsed", []string{"kitsu_completed_anime", "kitsu_completed_anime"}, "kitsu_completed_anime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := catalogIDs(k.GetManifestCatalogItems(tt.ids)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetLiveSyncTypes(t *testing.T) {
	s := NewSimkl()

	if got := s.GetLiveSyncTypes(nil); len(got) != len(s.LiveSyncTypes()) {
		t.Errorf("nil selection = %v, want every type", got)
	}
	got := s.GetLiveSyncTypes([]types.LiveSyncType{SimklDropped, "bogus", SimklWatching})
	if len(got) != 2 || got[0] != SimklWatching || got[1] != SimklDropped {
		t.Errorf("got %v, want static order [watching dropped]", got)
	}
	if got := s.GetLiveSyncTypes([]types.LiveSyncType{}); got == nil || len(got) != 0 {
		t.Errorf("empty selection = %#v", got)
	}
}

func TestBase_ReturnsCopies(t *testing.T) {
	a := NewAniList()
	items := a.ManifestCatalogItems()
	items[0].ID = "mutated"
	if a.ManifestCatalogItems()[0].ID == "mutated" {
		t.Error("ManifestCatalogItems exposes internal slice")
	}
}

func TestBuiltin(t *testing.T) {
	var ids []string
	for _, r := range Builtin() {
		ids = append(ids, string(r.ID()))
		for _, d := range r.DefaultCatalogs() {
			if len(r.GetManifestCatalogItems([]string{d})) != 1 {
				t.Errorf("%s default %q is not a catalog", r.ID(), d)
			}
		}
	}
	if got := strings.Join(ids, ","); got != "simkl,anilist,kitsu" {
		t.Errorf("builtin order = %s", got)
	}
}

func newClient(r interfaces.Receiver) (*Client, *store.Memory) {
	mem := store.NewMemory()
	return NewClient(r, mem, logging.Discard()), mem
}

func TestClient_MergeUserConfig(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(NewKitsu())

	creds := types.Credentials{KitsuAccessToken: "tok"}
	catalogs := []string{"kitsu_dropped_anime", "kitsu_current_anime"}
	if err := c.MergeUserConfig(ctx, types.UserConfigPatch{Credentials: &creds, Catalogs: &catalogs}); err != nil {
		t.Fatal(err)
	}

	live := []types.LiveSyncType{KitsuCompleted}
	if err := c.MergeUserConfig(ctx, types.UserConfigPatch{LiveSync: &live}); err != nil {
		t.Fatal(err)
	}

	cfg, ok, err := c.GetUserConfig(ctx)
	if err != nil || !ok {
		t.Fatalf("GetUserConfig: ok=%v err=%v", ok, err)
	}
	if cfg.Credentials[KitsuAccessToken] != "tok" {
		t.Errorf("credentials lost: %v", cfg.Credentials)
	}
	if strings.Join(cfg.Catalogs, ",") != "kitsu_dropped_anime,kitsu_current_anime" {
		t.Errorf("catalogs = %v", cfg.Catalogs)
	}
	if len(cfg.LiveSync) != 1 || cfg.LiveSync[0] != KitsuCompleted {
		t.Errorf("live sync = %v", cfg.LiveSync)
	}

	eff, err := c.EffectiveSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := catalogIDs(eff.Catalogs); got != "kitsu_dropped_anime,kitsu_current_anime" {
		t.Errorf("effective catalogs = %s", got)
	}
}

func TestClient_EmptySelectionSurvives(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(NewSimkl())

	none := []string{}
	if err := c.MergeUserConfig(ctx, types.UserConfigPatch{Catalogs: &none}); err != nil {
		t.Fatal(err)
	}
	eff, err := c.EffectiveSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(eff.Catalogs) != 0 {
		t.Errorf("effective catalogs = %v, want none", eff.Catalogs)
	}
}

func TestClient_DefaultsWithoutConfig(t *testing.T) {
	c, _ := newClient(NewAniList())

	_, ok, err := c.GetUserConfig(context.Background())
	if err != nil || ok {
		t.Fatalf("GetUserConfig: ok=%v err=%v", ok, err)
	}
	eff, err := c.EffectiveSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := catalogIDs(eff.Catalogs); got != "anilist_current_anime,anilist_planning_anime" {
		t.Errorf("catalogs = %s", got)
	}
	if len(eff.LiveSync) != 6 {
		t.Errorf("live sync = %v, want all", eff.LiveSync)
	}
}

func TestClient_ValidationIsAtomic(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(NewKitsu())

	creds := types.Credentials{KitsuAccessToken: "tok"}
	bad := []string{"kitsu_current_anime", "simkl_watching_series"}
	err := c.MergeUserConfig(ctx, types.UserConfigPatch{Credentials: &creds, Catalogs: &bad})
	if !errors.Is(err, ErrUnknownCatalog) {
		t.Fatalf("err = %v, want ErrUnknownCatalog", err)
	}

	badLive := []types.LiveSyncType{"watching"}
	if err := c.MergeUserConfig(ctx, types.UserConfigPatch{LiveSync: &badLive}); !errors.Is(err, ErrUnknownLiveSync) {
		t.Fatalf("err = %v, want ErrUnknownLiveSync", err)
	}

	badCreds := types.Credentials{KitsuAccessToken: "\xff\xfe"}
	if err := c.MergeUserConfig(ctx, types.UserConfigPatch{Credentials: &badCreds}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}

	if _, ok, _ := c.GetUserConfig(ctx); ok {
		t.Error("rejected patch wrote a config")
	}
}

func TestBase_Lookups(t *testing.T) {
	kitsu := NewKitsu()

	if !kitsu.HasCatalog("kitsu_current_anime") || kitsu.HasCatalog("simkl_watching_series") {
		t.Error("HasCatalog mismatch")
	}
	if !kitsu.HasLiveSyncType(KitsuCompleted) || kitsu.HasLiveSyncType("watching") {
		t.Error("HasLiveSyncType mismatch")
	}
}

func TestClient_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(NewSimkl())

	creds := types.Credentials{SimklAccessToken: "x"}
	if err := c.MergeUserConfig(ctx, types.UserConfigPatch{Credentials: &creds}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := c.RemoveUserConfig(ctx); err != nil {
			t.Fatalf("remove #%d: %v", i+1, err)
		}
	}
	if _, ok, _ := c.GetUserConfig(ctx); ok {
		t.Error("config still present after remove")
	}
}

func TestClient_NotifierFiresAfterCommit(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	type event struct {
		id        types.ReceiverID
		committed bool
	}
	events := make(chan event, 1)
	c := NewClient(NewKitsu(), mem, logging.Discard()).WithChangeNotifier(func(id types.ReceiverID) {
		_, ok, _ := mem.Get(context.Background(), id)
		events <- event{id: id, committed: ok}
	})

	creds := types.Credentials{KitsuAccessToken: "tok"}
	if err := c.MergeUserConfig(ctx, types.UserConfigPatch{Credentials: &creds}); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.id != types.ReceiverKitsu || !ev.committed {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("notifier not called")
	}
}

func TestRedirectURI(t *testing.T) {
	tests := []struct {
		scheme string
		host   string
		want   string
	}{
		{"http", "localhost:7000", "http://localhost:7000/oauth/simkl/"},
		{"http", "127.0.0.1:7000", "http://127.0.0.1:7000/oauth/simkl/"},
		{"", "myaddon", "https://myaddon.baby-beamup.club/oauth/simkl/"},
	}
	for _, tt := range tests {
		if got := RedirectURI(tt.scheme, tt.host, NewSimkl()); got != tt.want {
			t.Errorf("RedirectURI(%q, %q) = %q, want %q", tt.scheme, tt.host, got, tt.want)
		}
	}
}

func TestAuthorizeURL(t *testing.T) {
	got, err := AuthorizeURL(NewSimkl(), "cid", "http", "localhost:7000")
	if err != nil {
		t.Fatal(err)
	}
	want := "https://simkl.com/oauth/authorize?client_id=cid&redirect_uri=http%3A%2F%2Flocalhost%3A7000%2Foauth%2Fsimkl%2F&response_type=code"
	if got != want {
		t.Errorf("simkl = %s\nwant    %s", got, want)
	}

	got, err = AuthorizeURL(NewAniList(), "42", "http", "localhost:7000")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://anilist.co/api/v2/oauth/authorize?client_id=42&response_type=token" {
		t.Errorf("anilist = %s", got)
	}

	if _, err := AuthorizeURL(NewKitsu(), "x", "http", "localhost"); !errors.Is(err, ErrNoOAuth) {
		t.Errorf("kitsu err = %v, want ErrNoOAuth", err)
	}
	if _, err := AuthorizeURL(NewSimkl(), " ", "http", "localhost"); err == nil {
		t.Error("blank client id accepted")
	}
}
