package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"syncribullet/pkg/types"
)

const (
	bucketReceivers = "receivers"
	bucketSettings  = "settings"
	keyGlobal       = "global"
)

// Bolt stores configs in a bbolt file. Each receiver config is one JSON
// value keyed by receiver id.
type Bolt struct {
	db *bbolt.DB
}

// NewBolt opens (or creates) the database at path.
func NewBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketReceivers)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketSettings)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init store buckets: %w", err)
	}

	return &Bolt{db: db}, nil
}

func (b *Bolt) Get(_ context.Context, id types.ReceiverID) (types.UserConfig, bool, error) {
	var (
		cfg   types.UserConfig
		found bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketReceivers)).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		var err error
		cfg, err = decodeConfig(data)
		return err
	})
	if err != nil {
		return types.UserConfig{}, false, err
	}
	return cfg, found, nil
}

// Update runs fn inside a single write transaction; returning an error
// from fn rolls it back.
func (b *Bolt) Update(_ context.Context, id types.ReceiverID, fn func(*types.UserConfig) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketReceivers))

		var cfg types.UserConfig
		if data := bucket.Get([]byte(id)); data != nil {
			var err error
			if cfg, err = decodeConfig(data); err != nil {
				return err
			}
		}
		if err := fn(&cfg); err != nil {
			return err
		}

		data, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), data)
	})
}

func (b *Bolt) Delete(_ context.Context, id types.ReceiverID) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketReceivers)).Delete([]byte(id))
	})
}

func (b *Bolt) GetGlobal(_ context.Context) (types.GlobalSettings, error) {
	var g types.GlobalSettings
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketSettings)).Get([]byte(keyGlobal))
		if data == nil {
			return nil
		}
		var err error
		g, err = decodeGlobals(data)
		return err
	})
	return g, err
}

func (b *Bolt) UpdateGlobal(_ context.Context, fn func(*types.GlobalSettings) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketSettings))

		var g types.GlobalSettings
		if data := bucket.Get([]byte(keyGlobal)); data != nil {
			var err error
			if g, err = decodeGlobals(data); err != nil {
				return err
			}
		}
		if err := fn(&g); err != nil {
			return err
		}

		data, err := json.Marshal(g)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(keyGlobal), data)
	})
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
