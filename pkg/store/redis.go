package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"syncribullet/pkg/types"
)

const (
	defaultRedisPrefix = "syncribullet:"
	redisReceiversKey  = "receivers:v1"
	redisGlobalKey     = "global:v1"
	maxTxRetries       = 5
)

// ErrConflict is returned when a Redis update kept losing optimistic
// transaction races.
var ErrConflict = errors.New("concurrent update conflict")

// Redis keeps receiver configs in one hash (field = receiver id) and the
// global settings in a plain key. Updates use WATCH/MULTI.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis connects to the server at rawURL and pings it.
func NewRedis(ctx context.Context, rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisWithClient(client, defaultRedisPrefix), nil
}

// NewRedisWithClient wraps an existing client. Keys are namespaced by prefix.
func NewRedisWithClient(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) receiversKey() string { return r.prefix + redisReceiversKey }
func (r *Redis) globalKey() string    { return r.prefix + redisGlobalKey }

func (r *Redis) Get(ctx context.Context, id types.ReceiverID) (types.UserConfig, bool, error) {
	data, err := r.client.HGet(ctx, r.receiversKey(), string(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.UserConfig{}, false, nil
	}
	if err != nil {
		return types.UserConfig{}, false, err
	}
	cfg, err := decodeConfig(data)
	if err != nil {
		return types.UserConfig{}, false, err
	}
	return cfg, true, nil
}

func (r *Redis) Update(ctx context.Context, id types.ReceiverID, fn func(*types.UserConfig) error) error {
	key := r.receiversKey()
	return r.watch(ctx, key, func(tx *redis.Tx) error {
		var cfg types.UserConfig
		data, err := tx.HGet(ctx, key, string(id)).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if cfg, err = decodeConfig(data); err != nil {
				return err
			}
		}

		if err := fn(&cfg); err != nil {
			return err
		}
		encoded, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, string(id), encoded)
			return nil
		})
		return err
	})
}

func (r *Redis) Delete(ctx context.Context, id types.ReceiverID) error {
	return r.client.HDel(ctx, r.receiversKey(), string(id)).Err()
}

func (r *Redis) GetGlobal(ctx context.Context) (types.GlobalSettings, error) {
	data, err := r.client.Get(ctx, r.globalKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.GlobalSettings{}, nil
	}
	if err != nil {
		return types.GlobalSettings{}, err
	}
	return decodeGlobals(data)
}

func (r *Redis) UpdateGlobal(ctx context.Context, fn func(*types.GlobalSettings) error) error {
	key := r.globalKey()
	return r.watch(ctx, key, func(tx *redis.Tx) error {
		var g types.GlobalSettings
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if g, err = decodeGlobals(data); err != nil {
				return err
			}
		}

		if err := fn(&g); err != nil {
			return err
		}
		encoded, err := json.Marshal(g)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		return err
	})
}

func (r *Redis) watch(ctx context.Context, key string, fn func(*redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (r *Redis) Close() error {
	return r.client.Close()
}
