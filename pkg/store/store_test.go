package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/redis/go-redis/v9"

	"syncribullet/pkg/config"
	"syncribullet/pkg/logging"
	"syncribullet/pkg/types"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	bolt, err := NewBolt(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewBolt() error = %v", err)
	}
	t.Cleanup(func() { bolt.Close() })

	stores := map[string]Store{
		"memory": NewMemory(),
		"bolt":   bolt,
	}

	// Redis runs only against a disposable server; the test namespace is
	// wiped before use.
	if url := os.Getenv("SYNCRIBULLET_TEST_REDIS_URL"); url != "" {
		r, err := NewRedis(context.Background(), url)
		if err != nil {
			t.Fatalf("NewRedis() error = %v", err)
		}
		r.prefix = "syncribullet-test:" + t.Name() + ":"
		r.client.Del(context.Background(), r.receiversKey(), r.globalKey())
		t.Cleanup(func() {
			r.client.Del(context.Background(), r.receiversKey(), r.globalKey())
			r.Close()
		})
		stores["redis"] = r
	}
	return stores
}

func TestStore_UpdateGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Get(ctx, types.ReceiverSimkl); err != nil || ok {
				t.Fatalf("Get() on empty store = %v, %v", ok, err)
			}

			err := s.Update(ctx, types.ReceiverSimkl, func(cfg *types.UserConfig) error {
				cfg.Credentials = types.Credentials{"access_token": "t"}
				cfg.Catalogs = []string{}
				return nil
			})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}

			got, ok, err := s.Get(ctx, types.ReceiverSimkl)
			if err != nil || !ok {
				t.Fatalf("Get() = %v, %v", ok, err)
			}
			want := types.UserConfig{
				Credentials: types.Credentials{"access_token": "t"},
				Catalogs:    []string{},
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Get() = %+v, want %+v", got, want)
			}
			if got.Catalogs == nil {
				t.Error("empty catalog selection decoded as nil (defaults)")
			}
		})
	}
}

func TestStore_UpdateErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.Update(ctx, types.ReceiverKitsu, func(cfg *types.UserConfig) error {
				cfg.Catalogs = []string{"kitsu_current_anime"}
				return nil
			})

			err := s.Update(ctx, types.ReceiverKitsu, func(cfg *types.UserConfig) error {
				cfg.Catalogs = []string{"changed"}
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("Update() error = %v, want boom", err)
			}

			got, _, _ := s.Get(ctx, types.ReceiverKitsu)
			if !reflect.DeepEqual(got.Catalogs, []string{"kitsu_current_anime"}) {
				t.Errorf("Catalogs = %v, failed update leaked", got.Catalogs)
			}
		})
	}
}

func TestStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.Update(ctx, types.ReceiverAniList, func(cfg *types.UserConfig) error {
				cfg.LiveSync = []types.LiveSyncType{"CURRENT"}
				return nil
			})

			for i := 0; i < 2; i++ {
				if err := s.Delete(ctx, types.ReceiverAniList); err != nil {
					t.Fatalf("Delete() #%d error = %v", i+1, err)
				}
				if _, ok, _ := s.Get(ctx, types.ReceiverAniList); ok {
					t.Fatalf("config still present after Delete() #%d", i+1)
				}
			}
		})
	}
}

func TestStore_Globals(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			g, err := s.GetGlobal(ctx)
			if err != nil || len(g.ExternalStreamAddons) != 0 {
				t.Fatalf("GetGlobal() on empty store = %+v, %v", g, err)
			}

			err = s.UpdateGlobal(ctx, func(g *types.GlobalSettings) error {
				g.ExternalStreamAddons = append(g.ExternalStreamAddons, types.ExternalAddon{URL: "https://a.example/manifest.json"})
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}

			g, err = s.GetGlobal(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(g.ExternalStreamAddons) != 1 || g.ExternalStreamAddons[0].URL != "https://a.example/manifest.json" {
				t.Errorf("GetGlobal() = %+v", g)
			}
		})
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Update(ctx, types.ReceiverSimkl, func(cfg *types.UserConfig) error {
		cfg.Catalogs = []string{"a"}
		return nil
	})

	got, _, _ := m.Get(ctx, types.ReceiverSimkl)
	got.Catalogs[0] = "mutated"

	again, _, _ := m.Get(ctx, types.ReceiverSimkl)
	if again.Catalogs[0] != "a" {
		t.Error("Get() exposed internal state")
	}
}

func TestRedis_KeyNamespace(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	r := NewRedisWithClient(client, "")
	if got := r.receiversKey(); got != "syncribullet:receivers:v1" {
		t.Errorf("receiversKey() = %q", got)
	}
	if got := NewRedisWithClient(client, "x:").globalKey(); got != "x:global:v1" {
		t.Errorf("globalKey() = %q", got)
	}
}

func TestOpen_Bolt(t *testing.T) {
	cfg := &config.Config{StorePath: filepath.Join(t.TempDir(), "open.db")}
	s, err := Open(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*Bolt); !ok {
		t.Errorf("Open() = %T, want *Bolt", s)
	}
}
