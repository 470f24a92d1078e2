// Package app provides the main application setup and dependency injection.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"syncribullet/pkg/appctx"
	"syncribullet/pkg/config"
	"syncribullet/pkg/handlers/api"
	"syncribullet/pkg/httpclient"
	"syncribullet/pkg/logging"
	"syncribullet/pkg/metrics"
	"syncribullet/pkg/receivers"
	"syncribullet/pkg/registry"
	"syncribullet/pkg/server"
	"syncribullet/pkg/services"
	"syncribullet/pkg/stremio"
	"syncribullet/pkg/telemetry"
	"syncribullet/pkg/token"
)

const serviceName = "syncribullet"

// App is the main application container.
type App struct {
	Ctx    *appctx.Context
	Server *server.Server

	shutdownTracing func(context.Context) error
}

// New creates and initializes the application.
func New() (*App, error) {
	cfg := config.Load()

	log := logging.New(cfg.LogLevel, cfg.LogJSON, nil)
	log.Info("initializing SyncriBullet", "port", cfg.Port, "log_level", cfg.LogLevel)

	shutdownTracing, err := telemetry.Init(context.Background(), serviceName, cfg.OTLPEndpoint, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	reg := registry.NewReceiverRegistry()
	registerReceivers(reg, log)

	key := cfg.EncryptionKey
	if cfg.EncryptionKeyIsFallback {
		log.Warn("PRIVATE_ENCRYPTION_KEY is not set, config tokens use the public development key")
		key = token.InsecureDevKey
	}
	codec, err := token.NewCodec(key, reg)
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	ctx := appctx.New(cfg, log, reg).WithTokens(codec)

	httpClient := httpclient.New(cfg, log)

	ctx.WithAggregator(services.NewStreamAggregator(httpClient, services.AggregatorOptions{
		Timeout:    cfg.AddonTimeout,
		WarningURL: cfg.WarningURL,
	}, log))

	srv := server.New(cfg, log)

	api.NewHandlers(ctx).RegisterRoutes(srv.Router())
	stremio.NewHandlers(ctx).RegisterRoutes(srv.Router())

	return &App{
		Ctx:             ctx,
		Server:          srv,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Run starts the application.
func (a *App) Run() error {
	a.Ctx.Log.Info("starting SyncriBullet server", "port", a.Ctx.Config.Port)
	return a.Server.Start()
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() {
	a.Ctx.Log.Info("shutting down application")

	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(context.Background()); err != nil {
			a.Ctx.Log.Warn("tracing shutdown failed", "error", err)
		}
	}
}

// registerReceivers registers all bundled receivers.
// Add new receivers to receivers.Builtin.
func registerReceivers(reg *registry.ReceiverRegistry, log *logging.Logger) {
	for _, r := range receivers.Builtin() {
		reg.Register(r)
	}
	log.Info("registered receivers", "ids", reg.IDs())
}
