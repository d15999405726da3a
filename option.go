package oidcmetadata

import (
	"net/http"
	"net/url"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/auth0/go-oidc-metadata/cache"
	"github.com/auth0/go-oidc-metadata/fetch"
	"github.com/auth0/go-oidc-metadata/internal/oidc"
)

// Option configures the Service.
// Returns error for validation failures.
type Option func(*config) error

// config holds the settings New builds a Service from.
type config struct {
	defaultURI     string
	defaultTTL     time.Duration
	sweepInterval  time.Duration
	httpClient     *http.Client
	getter         fetch.Getter
	discoveryStore cache.Store[*DiscoveryDocument]
	keySetStore    cache.Store[jwk.Set]
	now            func() time.Time
	logger         Logger
	metrics        Metrics
	tracer         Tracer
	singleFlight   bool
}

// WithDefaultURI sets the discovery document URI used when a call passes an
// empty URI.
//
// Example:
//
//	svc, err := oidcmetadata.New(
//	    oidcmetadata.WithDefaultURI("https://idp.example/.well-known/openid-configuration"),
//	)
func WithDefaultURI(uri string) Option {
	return func(c *config) error {
		if uri == "" {
			return ErrDefaultURIEmpty
		}
		c.defaultURI = uri
		return nil
	}
}

// WithIssuer sets the default URI to the issuer's well-known discovery
// document, <issuer>/.well-known/openid-configuration.
func WithIssuer(issuerURL *url.URL) Option {
	return func(c *config) error {
		if issuerURL == nil {
			return ErrIssuerURLNil
		}
		c.defaultURI = oidc.WellKnownURL(*issuerURL)
		return nil
	}
}

// WithDefaultTTL sets how long fetched documents stay valid when a call
// passes no TTL. Zero restores the default.
//
// Default: DefaultTTL (1 hour)
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *config) error {
		if ttl < 0 {
			return ErrNegativeTTL
		}
		if ttl == 0 {
			ttl = DefaultTTL
		}
		c.defaultTTL = ttl
		return nil
	}
}

// WithSweepInterval sets how often expired entries are evicted in the
// background. Zero restores the default.
//
// Default: DefaultSweepInterval (5 minutes)
func WithSweepInterval(interval time.Duration) Option {
	return func(c *config) error {
		if interval < 0 {
			return ErrNegativeSweep
		}
		if interval == 0 {
			interval = DefaultSweepInterval
		}
		c.sweepInterval = interval
		return nil
	}
}

// WithHTTPClient sets the HTTP client used to fetch documents.
// Ignored when WithGetter is also given.
//
// Default: a client with a 30s timeout
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) error {
		if client == nil {
			return ErrHTTPClientNil
		}
		c.httpClient = client
		return nil
	}
}

// WithGetter replaces the HTTP fetch capability altogether, for example to
// add retries or to serve documents from somewhere other than the network.
func WithGetter(g fetch.Getter) Option {
	return func(c *config) error {
		if g == nil {
			return ErrGetterNil
		}
		c.getter = g
		return nil
	}
}

// WithDiscoveryStore sets the store discovery documents are cached in.
//
// Example, sharing documents between replicas through Redis:
//
//	store, _ := cache.NewRedisStore[*oidcmetadata.DiscoveryDocument](
//	    rdb, cache.JSONCodec[*oidcmetadata.DiscoveryDocument]{},
//	    cache.WithKeyPrefix("oidc-discovery:"),
//	)
//	svc, _ := oidcmetadata.New(oidcmetadata.WithDiscoveryStore(store))
//
// Default: an in-memory store
func WithDiscoveryStore(store cache.Store[*DiscoveryDocument]) Option {
	return func(c *config) error {
		if store == nil {
			return ErrStoreNil
		}
		c.discoveryStore = store
		return nil
	}
}

// WithKeySetStore sets the store key sets are cached in.
// Use cache.KeySetCodec with a RedisStore.
//
// Default: an in-memory store
func WithKeySetStore(store cache.Store[jwk.Set]) Option {
	return func(c *config) error {
		if store == nil {
			return ErrStoreNil
		}
		c.keySetStore = store
		return nil
	}
}

// WithClock sets the time source for expiry decisions. It is also handed
// to the default stores. Custom stores keep their own clock.
//
// Default: time.Now
func WithClock(now func() time.Time) Option {
	return func(c *config) error {
		if now == nil {
			return ErrClockNil
		}
		c.now = now
		return nil
	}
}

// WithLogger sets the logger.
//
// Default: no logging
func WithLogger(l Logger) Option {
	return func(c *config) error {
		if l == nil {
			return ErrLoggerNil
		}
		c.logger = l
		return nil
	}
}

// WithMetrics sets the metrics sink.
//
// Default: NoopMetrics
func WithMetrics(m Metrics) Option {
	return func(c *config) error {
		if m == nil {
			return ErrMetricsNil
		}
		c.metrics = m
		return nil
	}
}

// WithTracer sets the tracer wrapping each network fetch in a span.
//
// Default: NoopTracer
func WithTracer(t Tracer) Option {
	return func(c *config) error {
		if t == nil {
			return ErrTracerNil
		}
		c.tracer = t
		return nil
	}
}

// WithSingleFlight sets whether concurrent misses on the same URI share one
// fetch. When disabled every caller that misses issues its own request and
// the last write wins.
//
// Default: true
func WithSingleFlight(enabled bool) Option {
	return func(c *config) error {
		c.singleFlight = enabled
		return nil
	}
}
