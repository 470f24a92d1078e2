// Package main is the configuration CLI of SyncriBullet.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"syncribullet/internal/cli"
	"syncribullet/pkg/config"
	"syncribullet/pkg/logging"
	"syncribullet/pkg/receivers"
	"syncribullet/pkg/registry"
	"syncribullet/pkg/store"
	"syncribullet/pkg/token"
)

func main() {
	cfg := config.Load()

	storePath := flag.String("store", cfg.StorePath, "bbolt file holding receiver settings")
	redisURL := flag.String("redis", cfg.RedisURL, "Redis URL; overrides -store when set")
	baseURL := flag.String("base-url", cfg.BaseURL, "public URL of the addon server")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, cli.Usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg.StorePath = *storePath
	cfg.RedisURL = *redisURL
	cfg.BaseURL = *baseURL

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logging.New(level, false, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, log, flag.Args()))
}

func run(ctx context.Context, cfg *config.Config, log *logging.Logger, args []string) int {
	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer st.Close()

	reg := registry.NewReceiverRegistry()
	for _, r := range receivers.Builtin() {
		reg.Register(r)
	}

	key := cfg.EncryptionKey
	if cfg.EncryptionKeyIsFallback {
		key = token.InsecureDevKey
	}
	codec, err := token.NewCodec(key, reg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	err = cli.New(cfg, st, reg, codec, log, os.Stdout).Run(ctx, args)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, cli.ErrUsage):
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, cli.Usage)
		return 2
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
}
