// Package services holds the request-scoped business logic of the addon.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"syncribullet/pkg/interfaces"
	"syncribullet/pkg/logging"
	"syncribullet/pkg/metrics"
	"syncribullet/pkg/types"
	"syncribullet/pkg/urlutil"
)

const (
	// CacheMaxAge and StaleRevalidate are the cache hints, in seconds,
	// returned to Stremio with aggregated streams.
	CacheMaxAge     = 60 * 60
	StaleRevalidate = 60 * 60

	maxAddonBody = 5 << 20
)

var tracer = otel.Tracer("syncribullet/services")

// StreamRequest is one inbound stream lookup.
type StreamRequest struct {
	// Token is the config token exactly as it appeared in the request path.
	Token string
	// ResourcePath is the catch-all path after /stream/, e.g. "movie/tt1.json".
	ResourcePath string
	// Origin is scheme://host of this addon as seen by the client.
	Origin string
	Addons []types.ExternalAddon
}

// StreamResponse is the body of the stream endpoint.
type StreamResponse struct {
	Streams         []types.StreamObject `json:"streams"`
	CacheMaxAge     int                  `json:"cacheMaxAge,omitempty"`
	StaleRevalidate int                  `json:"staleRevalidate,omitempty"`
}

// AddonFetchError describes why one external addon contributed nothing.
type AddonFetchError struct {
	Addon string
	Err   error
}

func (e *AddonFetchError) Error() string {
	return fmt.Sprintf("addon %s: %v", e.Addon, e.Err)
}

func (e *AddonFetchError) Unwrap() error { return e.Err }

// ErrAddonStatus is wrapped by AddonFetchError for non-2xx responses.
var ErrAddonStatus = errors.New("unexpected addon status")

// AggregatorOptions tunes the fan-out.
type AggregatorOptions struct {
	Timeout    time.Duration
	WarningURL string
}

// StreamAggregator queries every configured external addon concurrently
// and merges their streams in addon order. Every fetch starts at once; the
// number of addons is bounded by the config token length.
type StreamAggregator struct {
	client interfaces.HTTPClient
	opts   AggregatorOptions
	log    *logging.Logger
}

// NewStreamAggregator creates an aggregator using client for outbound calls.
func NewStreamAggregator(client interfaces.HTTPClient, opts AggregatorOptions, log *logging.Logger) *StreamAggregator {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &StreamAggregator{
		client: client,
		opts:   opts,
		log:    log.WithComponent("aggregator"),
	}
}

// Aggregate fetches streams from every addon in req. Failing addons are
// logged and skipped; the result never carries an error.
func (a *StreamAggregator) Aggregate(ctx context.Context, req StreamRequest) StreamResponse {
	if len(req.Addons) == 0 {
		return StreamResponse{Streams: []types.StreamObject{}}
	}

	slots := make([][]types.StreamObject, len(req.Addons))

	var g errgroup.Group
	for i, addon := range req.Addons {
		g.Go(func() error {
			streams, err := a.fetch(ctx, addon, req.ResourcePath)
			if err != nil {
				a.log.WithError(err).Warn("skipping addon", "addon", urlutil.Host(addon.URL))
				return nil
			}
			for j := range streams {
				if link, ok := streams[j].ExternalURL(); ok {
					streams[j].SetExternalURL(WarningRedirectURL(a.opts.WarningURL, req.Origin, req.Token, req.ResourcePath, link))
				}
			}
			slots[i] = streams
			return nil
		})
	}
	_ = g.Wait()

	out := []types.StreamObject{}
	for _, streams := range slots {
		out = append(out, streams...)
	}
	return StreamResponse{
		Streams:         out,
		CacheMaxAge:     CacheMaxAge,
		StaleRevalidate: StaleRevalidate,
	}
}

func (a *StreamAggregator) fetch(ctx context.Context, addon types.ExternalAddon, resourcePath string) (streams []types.StreamObject, err error) {
	host := urlutil.Host(addon.URL)
	target := urlutil.StreamResourceURL(addon.URL, resourcePath)

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "addon.streams")
	span.SetAttributes(attribute.String("addon.host", host))
	start := time.Now()

	defer func() {
		metrics.AddonRequestDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
		metrics.AddonRequestsTotal.WithLabelValues(host, fetchResult(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "addon fetch failed")
			err = &AddonFetchError{Addon: host, Err: err}
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w %d", ErrAddonStatus, resp.StatusCode)
	}

	var body struct {
		Streams []types.StreamObject `json:"streams"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAddonBody)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode streams: %w", err)
	}
	return body.Streams, nil
}

func fetchResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrAddonStatus):
		return "status"
	default:
		return "error"
	}
}

// WarningRedirectURL wraps an external link so Stremio shows its warning
// interstitial first. The fragment carries a link back to this addon's
// subtitles route, which redirects to link using only the token.
func WarningRedirectURL(warningURL, origin, token, resourcePath, link string) string {
	inner := origin + "/" + urlutil.EncodeURIComponent(token) +
		"/subtitles/" + urlutil.TrimJSONSuffix(resourcePath) +
		"/r.json?r=" + urlutil.EncodeURIComponent(link)
	return warningURL + "#" + urlutil.EncodeURIComponent(inner)
}
