// Package appctx provides the application context that holds all runtime dependencies.
package appctx

import (
	"github.com/prometheus/client_golang/prometheus"

	"syncribullet/pkg/config"
	"syncribullet/pkg/interfaces"
	"syncribullet/pkg/logging"
	"syncribullet/pkg/registry"
	"syncribullet/pkg/services"
	"syncribullet/pkg/token"
)

// Context holds all application runtime dependencies.
// Pass this single struct to components instead of individual parameters.
type Context struct {
	Config     *config.Config
	Log        *logging.Logger
	Receivers  *registry.ReceiverRegistry
	Tokens     *token.Codec
	Aggregator *services.StreamAggregator
	Library    interfaces.LibrarySource
	Metrics    prometheus.Gatherer
}

// New creates a new application context.
func New(cfg *config.Config, log *logging.Logger, receivers *registry.ReceiverRegistry) *Context {
	return &Context{
		Config:    cfg,
		Log:       log,
		Receivers: receivers,
		Metrics:   prometheus.DefaultGatherer,
	}
}

// WithTokens sets the config token codec.
func (c *Context) WithTokens(codec *token.Codec) *Context {
	c.Tokens = codec
	return c
}

// WithAggregator sets the stream aggregator.
func (c *Context) WithAggregator(a *services.StreamAggregator) *Context {
	c.Aggregator = a
	return c
}

// WithLibrary sets the catalog source. Without one, catalogs answer empty.
func (c *Context) WithLibrary(l interfaces.LibrarySource) *Context {
	c.Library = l
	return c
}

// WithMetrics sets the gatherer served on /metrics.
func (c *Context) WithMetrics(g prometheus.Gatherer) *Context {
	c.Metrics = g
	return c
}
