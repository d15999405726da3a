/*
Package oidcmetadata caches an OpenID Connect identity provider's discovery
document and JSON Web Key Set on the client side.

A Service fetches documents on demand, keeps them for a time-to-live, serves
them from cache while they are valid and fetches them again once they have
expired. A background sweep evicts expired entries so the caches do not grow
without bound.

# Quick Start

	issuerURL, _ := url.Parse("https://your-domain.auth0.com/")

	svc, err := oidcmetadata.New(
	    oidcmetadata.WithIssuer(issuerURL),
	)
	if err != nil {
	    log.Fatal(err)
	}
	defer svc.Stop()

	doc, err := svc.GetDiscovery(ctx, "", 0) // default URI, default TTL
	if err != nil {
	    log.Fatal(err)
	}

	keys, err := svc.GetKeys(ctx, "", 0)
	if err != nil {
	    log.Fatal(err)
	}
	key, found := keys.LookupKeyID(kid)

# Caching

Both caches are keyed by the discovery document URI. The key set advertised
by a document is cached under that same URI, not under its jwks_uri, so
GetKeys on a miss always resolves the discovery document first.

An entry is valid up to and including its expiry instant. Expired entries are
never returned; they are replaced on the next successful fetch or removed by
the sweep, whichever comes first. A failed fetch leaves the cache untouched.

Concurrent misses on the same URI share a single request unless
WithSingleFlight(false) is given.

# Errors

Fetch failures are returned as one of three types from the fetch package:

  - *fetch.TransportError: the request could not be completed
  - *fetch.RemoteFetchError: the server answered with a status other than 200
  - *fetch.DecodeError: the body could not be decoded

Match them with errors.As:

	var remoteErr *fetch.RemoteFetchError
	if errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusNotFound {
	    // wrong issuer
	}

# Shared Caches

Replicas can share cached documents through Redis:

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	discoveryStore, _ := cache.NewRedisStore[*oidcmetadata.DiscoveryDocument](
	    rdb, cache.JSONCodec[*oidcmetadata.DiscoveryDocument]{},
	    cache.WithKeyPrefix("oidc-discovery:"),
	)
	keyStore, _ := cache.NewRedisStore[jwk.Set](
	    rdb, cache.KeySetCodec{},
	    cache.WithKeyPrefix("oidc-keys:"),
	)

	svc, err := oidcmetadata.New(
	    oidcmetadata.WithIssuer(issuerURL),
	    oidcmetadata.WithDiscoveryStore(discoveryStore),
	    oidcmetadata.WithKeySetStore(keyStore),
	)

# Observability

WithLogger accepts any Logger; NewZapLogger, NewZerologLogger and
NewLogrusLogger adapt the common logging libraries. WithMetrics reports cache
hits, misses, fetch latency, fetch errors and evictions, for example to
Prometheus through NewPrometheusMetrics. WithTracer wraps each network fetch
in a span, for example with NewOpenTelemetryTracer.
*/
package oidcmetadata
