package oidcmetadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"golang.org/x/sync/singleflight"

	"github.com/auth0/go-oidc-metadata/cache"
	"github.com/auth0/go-oidc-metadata/fetch"
	"github.com/auth0/go-oidc-metadata/internal/oidc"
	"github.com/auth0/go-oidc-metadata/internal/sweeper"
)

const (
	// DefaultTTL is how long documents stay valid unless told otherwise.
	DefaultTTL = time.Hour

	// DefaultSweepInterval is how often expired entries are evicted.
	DefaultSweepInterval = sweeper.DefaultInterval

	// UserAgent is sent with every request made by the default fetcher.
	UserAgent = "go-oidc-metadata"
)

// Document kinds, used as the "document" label on logs, metrics and spans.
const (
	DocumentDiscovery = "discovery"
	DocumentKeys      = "keys"
)

// Service caches an identity provider's discovery document and key set.
//
// Both caches are addressed by the discovery URI. Entries are served while
// valid, fetched again once expired, and evicted by a background sweep
// started by New and halted by Stop.
//
// A Service is safe for concurrent use.
type Service struct {
	defaultURI string
	defaultTTL time.Duration

	getter    fetch.Getter
	discovery cache.Store[*DiscoveryDocument]
	keys      cache.Store[jwk.Set]
	now       func() time.Time

	logger  Logger
	metrics Metrics
	tracer  Tracer

	singleFlight bool
	group        singleflight.Group

	sweeper  *sweeper.Sweeper
	stopOnce sync.Once
}

// Stats is a point-in-time count of cached entries, expired or not.
type Stats struct {
	DiscoveryEntries int
	KeySetEntries    int
}

// New builds a Service and starts its background sweep.
// Call Stop when the Service is no longer needed.
//
// Optional options:
//   - WithDefaultURI / WithIssuer: URI used when a call passes ""
//   - WithDefaultTTL: TTL used when a call passes 0 (default: 1 hour)
//   - WithSweepInterval: background eviction period (default: 5 minutes)
//   - WithHTTPClient / WithGetter: how documents are fetched
//   - WithDiscoveryStore / WithKeySetStore: where documents are cached
//   - WithLogger, WithMetrics, WithTracer: observability
//   - WithSingleFlight: share one fetch between concurrent misses (default: true)
//
// Example:
//
//	svc, err := oidcmetadata.New(
//	    oidcmetadata.WithIssuer(issuerURL),
//	    oidcmetadata.WithDefaultTTL(15*time.Minute),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Stop()
//
//	keys, err := svc.GetKeys(ctx, "", 0)
func New(opts ...Option) (*Service, error) {
	cfg := &config{
		defaultTTL:    DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		logger:        nopLogger{},
		metrics:       &NoopMetrics{},
		tracer:        &NoopTracer{},
		singleFlight:  true,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if cfg.getter == nil {
		client := cfg.httpClient
		if client == nil {
			client = &http.Client{Timeout: fetch.DefaultTimeout}
		}
		f, err := fetch.New(fetch.WithHTTPClient(client), fetch.WithUserAgent(UserAgent))
		if err != nil {
			return nil, err
		}
		cfg.getter = f
	}
	if cfg.discoveryStore == nil {
		cfg.discoveryStore = cache.NewMemoryStore[*DiscoveryDocument](cache.WithClock(cfg.now))
	}
	if cfg.keySetStore == nil {
		cfg.keySetStore = cache.NewMemoryStore[jwk.Set](cache.WithClock(cfg.now))
	}
	if err := checkPrefixes(cfg.discoveryStore, cfg.keySetStore); err != nil {
		return nil, err
	}

	s := &Service{
		defaultURI:   cfg.defaultURI,
		defaultTTL:   cfg.defaultTTL,
		getter:       cfg.getter,
		discovery:    cfg.discoveryStore,
		keys:         cfg.keySetStore,
		now:          cfg.now,
		logger:       cfg.logger,
		metrics:      cfg.metrics,
		tracer:       cfg.tracer,
		singleFlight: cfg.singleFlight,
	}

	s.sweeper = sweeper.New(cfg.sweepInterval,
		sweeper.WithClock(cfg.now),
		sweeper.WithLogger(cfg.logger),
		sweeper.WithOnSweep(s.recordSweep),
		sweeper.WithTarget(DocumentDiscovery, sweeper.TargetFunc(func(ctx context.Context, now time.Time) (int, error) {
			return cache.Sweep(ctx, s.discovery, now)
		})),
		sweeper.WithTarget(DocumentKeys, sweeper.TargetFunc(func(ctx context.Context, now time.Time) (int, error) {
			return cache.Sweep(ctx, s.keys, now)
		})),
	)
	s.sweeper.Start()
	s.logger.Infof("metadata service started, sweeping every %s", cfg.sweepInterval)

	return s, nil
}

// GetDiscovery returns the discovery document at uri.
//
// An empty uri means the default URI; a ttl <= 0 means the default TTL.
// A valid cached document is returned without network I/O. Otherwise the
// document is fetched, cached for ttl and returned. Fetch failures are
// returned as *fetch.TransportError, *fetch.RemoteFetchError or
// *fetch.DecodeError and leave the cache untouched.
func (s *Service) GetDiscovery(ctx context.Context, uri string, ttl time.Duration) (*DiscoveryDocument, error) {
	uri, ttl, err := s.resolve(uri, ttl)
	if err != nil {
		return nil, err
	}

	return getOrFetch(ctx, s, DocumentDiscovery, s.discovery, uri, ttl, func(ctx context.Context) (*DiscoveryDocument, error) {
		return fetchDocument(ctx, s, DocumentDiscovery, uri, decodeDiscovery)
	})
}

// GetKeys returns the key set advertised by the discovery document at uri.
//
// The key set is cached under uri, the discovery URI, not under the
// jwks_uri it was fetched from. On a miss the discovery document is resolved
// first through GetDiscovery, so a cold call makes two requests.
//
// Errors from either request are returned unchanged, so their URI tells
// which document failed. A caller whose ctx ends while waiting on a shared
// fetch gets a *fetch.TransportError carrying uri, the discovery URI, since
// the waiter cannot tell which of the two requests is in flight.
func (s *Service) GetKeys(ctx context.Context, uri string, ttl time.Duration) (jwk.Set, error) {
	uri, ttl, err := s.resolve(uri, ttl)
	if err != nil {
		return nil, err
	}

	return getOrFetch(ctx, s, DocumentKeys, s.keys, uri, ttl, func(ctx context.Context) (jwk.Set, error) {
		doc, err := s.GetDiscovery(ctx, uri, ttl)
		if err != nil {
			return nil, err
		}
		if doc.JWKSURI == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingJWKSURI, uri)
		}

		jwksURI, err := oidc.ResolveJWKSURI(uri, doc.JWKSURI)
		if err != nil {
			return nil, fmt.Errorf("could not resolve jwks_uri from %s: %w", uri, err)
		}

		return fetchDocument(ctx, s, DocumentKeys, jwksURI, fetch.KeySet)
	})
}

// Stop halts the background sweep. Cached entries stay readable and calls
// keep working, but expired entries are no longer evicted. Stop is
// idempotent and safe to call from any goroutine.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.sweeper.Stop()
		s.logger.Infof("metadata service stopped")
	})
}

// Sweep evicts expired entries from both caches now, independently of the
// background schedule, and returns how many were removed.
func (s *Service) Sweep(ctx context.Context) int {
	return s.sweeper.RunOnce(ctx)
}

// Stats counts the entries currently held by each cache.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	discoveryKeys, err := s.discovery.Keys(ctx)
	if err != nil {
		return Stats{}, err
	}
	keySetKeys, err := s.keys.Keys(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{DiscoveryEntries: len(discoveryKeys), KeySetEntries: len(keySetKeys)}, nil
}

// prefixed is implemented by stores keyed under a shared namespace, such as
// cache.RedisStore.
type prefixed interface {
	Prefix() string
}

func checkPrefixes(discovery, keys any) error {
	d, ok := discovery.(prefixed)
	if !ok {
		return nil
	}
	k, ok := keys.(prefixed)
	if !ok {
		return nil
	}
	a, b := d.Prefix(), k.Prefix()
	if strings.HasPrefix(a, b) || strings.HasPrefix(b, a) {
		return fmt.Errorf("%w: %q and %q", ErrStorePrefixOverlap, a, b)
	}
	return nil
}

func (s *Service) resolve(uri string, ttl time.Duration) (string, time.Duration, error) {
	if uri == "" {
		uri = s.defaultURI
	}
	if uri == "" {
		return "", 0, ErrNoURI
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return uri, ttl, nil
}

// recordSweep is the sweeper hook feeding eviction metrics.
func (s *Service) recordSweep(document string, removed int, _ error) {
	tags := map[string]string{"document": document}
	if removed > 0 {
		s.metrics.AddCounter(MetricEvictions, float64(removed), tags)
	}

	list := s.discovery.Keys
	if document == DocumentKeys {
		list = s.keys.Keys
	}
	if keys, err := list(context.Background()); err == nil {
		s.metrics.SetGauge(MetricCacheEntries, float64(len(keys)), tags)
	}
}

// getOrFetch serves key from store while valid and otherwise runs load,
// caching its result for ttl.
func getOrFetch[T any](
	ctx context.Context,
	s *Service,
	document string,
	store cache.Store[T],
	key string,
	ttl time.Duration,
	load func(context.Context) (T, error),
) (T, error) {
	tags := map[string]string{"document": document}

	if v, ok := lookup(ctx, s, document, store, key); ok {
		s.metrics.IncCounter(MetricCacheHits, tags)
		return v, nil
	}
	s.metrics.IncCounter(MetricCacheMisses, tags)
	s.logger.Debugf("%s cache miss for %s", document, key)

	fill := func(ctx context.Context) (T, error) {
		// Another flight may have filled the entry since the first lookup.
		if v, ok := lookup(ctx, s, document, store, key); ok {
			return v, nil
		}

		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		if err := store.Put(ctx, key, v, ttl); err != nil {
			s.logger.Errorf("failed to cache %s document for %s: %v", document, key, err)
		}
		return v, nil
	}

	if !s.singleFlight {
		return fill(ctx)
	}

	// Waiters may give up early; the shared fetch always runs to completion.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(document+" "+key, func() (any, error) {
		return fill(flightCtx)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, &fetch.TransportError{URI: key, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// lookup returns the cached value for key if it is still valid. Store read
// errors are logged and treated as a miss.
func lookup[T any](ctx context.Context, s *Service, document string, store cache.Store[T], key string) (T, bool) {
	var zero T

	e, ok, err := store.Get(ctx, key)
	if err != nil {
		s.logger.Errorf("failed to read %s cache for %s: %v", document, key, err)
		return zero, false
	}
	if !ok || !e.Valid(s.now()) {
		return zero, false
	}
	return e.Value, true
}

// fetchDocument fetches and decodes one document inside a span.
func fetchDocument[T any](ctx context.Context, s *Service, document, uri string, decode fetch.Decoder[T]) (T, error) {
	ctx, span := s.tracer.StartSpan(ctx, "oidcmetadata.fetch")
	defer span.Finish()
	span.SetTag("document", document)
	span.SetTag("http.url", uri)

	start := time.Now()
	v, err := fetch.FetchJSON(ctx, s.getter, uri, decode)
	s.metrics.ObserveHistogram(MetricFetchDuration, time.Since(start).Seconds(), map[string]string{"document": document})

	if err != nil {
		span.RecordError(err)
		s.metrics.IncCounter(MetricFetchErrors, map[string]string{"document": document, "reason": errorReason(err)})
		s.logger.Warnf("failed to fetch %s document: %v", document, err)
		return v, err
	}

	s.logger.Debugf("fetched %s document from %s", document, uri)
	return v, nil
}

// errorReason maps a fetch error to a low-cardinality label value.
func errorReason(err error) string {
	var (
		remoteErr    *fetch.RemoteFetchError
		transportErr *fetch.TransportError
		decodeErr    *fetch.DecodeError
	)
	switch {
	case errors.As(err, &remoteErr):
		return "status"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &decodeErr):
		return "decode"
	default:
		return "other"
	}
}
