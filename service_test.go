package oidcmetadata

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/auth0/go-oidc-metadata/cache"
	"github.com/auth0/go-oidc-metadata/fetch"
)

const (
	discoveryPath = "/.well-known/openid-configuration"
	keysPath      = "/keys"
)

// fakeIdP serves a discovery document and a key set and counts requests.
type fakeIdP struct {
	server *httptest.Server
	keys   jwk.Set

	mu              sync.Mutex
	hits            map[string]int
	discoveryStatus int
	keysStatus      int
	jwksURI         string
	discoveryBody   string
	keysBody        string
	gate            chan struct{}
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()

	keys, err := generateKeySet("kid")
	require.NoError(t, err)

	idp := &fakeIdP{
		keys:            keys,
		hits:            make(map[string]int),
		discoveryStatus: http.StatusOK,
		keysStatus:      http.StatusOK,
	}
	idp.server = httptest.NewServer(http.HandlerFunc(idp.serveHTTP))
	idp.jwksURI = idp.server.URL + keysPath
	t.Cleanup(idp.server.Close)

	return idp
}

func (idp *fakeIdP) serveHTTP(w http.ResponseWriter, r *http.Request) {
	idp.mu.Lock()
	idp.hits[r.URL.Path]++
	gate := idp.gate
	discoveryStatus, keysStatus := idp.discoveryStatus, idp.keysStatus
	body, keysBody := idp.discoveryBody, idp.keysBody
	if body == "" {
		body = fmt.Sprintf(`{"issuer":%q,"jwks_uri":%q,"custom_claim":"x"}`, idp.server.URL+"/", idp.jwksURI)
	}
	idp.mu.Unlock()

	if gate != nil {
		<-gate
	}

	switch r.URL.Path {
	case discoveryPath:
		w.WriteHeader(discoveryStatus)
		_, _ = w.Write([]byte(body))
	case keysPath:
		data := []byte(keysBody)
		if keysBody == "" {
			data, _ = json.Marshal(idp.keys)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(keysStatus)
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

func (idp *fakeIdP) discoveryURI() string { return idp.server.URL + discoveryPath }

func (idp *fakeIdP) requests(path string) int {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	return idp.hits[path]
}

func (idp *fakeIdP) set(fn func(idp *fakeIdP)) {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	fn(idp)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T, opts ...Option) (*Service, *testClock) {
	t.Helper()

	clock := newTestClock()
	svc, err := New(append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(svc.Stop)

	return svc, clock
}

func generateKeySet(kid string) (jwk.Set, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	key, err := jwk.Import(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, fmt.Errorf("failed to set key ID: %w", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, fmt.Errorf("failed to add key to set: %w", err)
	}
	return set, nil
}

func Test_GetDiscovery(t *testing.T) {
	ctx := context.Background()

	t.Run("it fetches the document once and serves it from cache while valid", func(t *testing.T) {
		idp := newFakeIdP(t)
		svc, clock := newTestService(t)

		first, err := svc.GetDiscovery(ctx, idp.discoveryURI(), 10*time.Second)
		require.NoError(t, err)

		want := &DiscoveryDocument{
			Issuer:  idp.server.URL + "/",
			JWKSURI: idp.jwksURI,
			Extra:   map[string]json.RawMessage{"custom_claim": json.RawMessage(`"x"`)},
		}
		if diff := cmp.Diff(want, first); diff != "" {
			t.Errorf("discovery document mismatch (-want +got):\n%s", diff)
		}

		clock.Advance(10 * time.Second)
		second, err := svc.GetDiscovery(ctx, idp.discoveryURI(), 10*time.Second)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, idp.requests(discoveryPath))
	})

	t.Run("it fetches again once the entry has expired", func(t *testing.T) {
		idp := newFakeIdP(t)
		svc, clock := newTestService(t)

		first, err := svc.GetDiscovery(ctx, idp.discoveryURI(), 10*time.Second)
		require.NoError(t, err)

		clock.Advance(11 * time.Second)
		second, err := svc.GetDiscovery(ctx, idp.discoveryURI(), 10*time.Second)
		require.NoError(t, err)

		assert.NotSame(t, first, second)
		assert.Equal(t, 2, idp.requests(discoveryPath))

		entry, ok, err := svc.discovery.Get(ctx, idp.discoveryURI())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, second, entry.Value)
		assert.Equal(t, clock.Now().Add(10*time.Second), entry.ExpiresAt)
	})

	t.Run("it uses the default URI and TTL when none are given", func(t *testing.T) {
		idp := newFakeIdP(t)
		svc, clock := newTestService(t, WithDefaultURI(idp.discoveryURI()))

		_, err := svc.GetDiscovery(ctx, "", 0)
		require.NoError(t, err)

		entry, ok, err := svc.discovery.Get(ctx, idp.discoveryURI())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, clock.Now().Add(DefaultTTL), entry.ExpiresAt)
	})

	t.Run("it derives the default URI from the issuer", func(t *testing.T) {
		idp := newFakeIdP(t)
		issuer, err := url.Parse(idp.server.URL + "/")
		require.NoError(t, err)

		svc, _ := newTestService(t, WithIssuer(issuer))

		doc, err := svc.GetDiscovery(ctx, "", 0)
		require.NoError(t, err)
		assert.Equal(t, idp.jwksURI, doc.JWKSURI)
	})

	t.Run("it returns ErrNoURI without a URI or default", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.GetDiscovery(ctx, "", 0)
		assert.ErrorIs(t, err, ErrNoURI)
	})

	t.Run("a non-200 status is a RemoteFetchError and nothing is cached", func(t *testing.T) {
		idp := newFakeIdP(t)
		idp.set(func(idp *fakeIdP) { idp.discoveryStatus = http.StatusInternalServerError })
		svc, _ := newTestService(t)

		_, err := svc.GetDiscovery(ctx, idp.discoveryURI(), 0)

		var remoteErr *fetch.RemoteFetchError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, http.StatusInternalServerError, remoteErr.StatusCode)
		assert.Equal(t, idp.discoveryURI(), remoteErr.URI)

		_, ok, err := svc.discovery.Get(ctx, idp.discoveryURI())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("a failed refresh leaves the expired entry in place and the next call retries", func(t *testing.T) {
		idp := newFakeIdP(t)
		svc, clock := newTestService(t)

		doc, err := svc.GetDiscovery(ctx, idp.discoveryURI(), time.Minute)
		require.NoError(t, err)
		before, ok, err := svc.discovery.Get(ctx, idp.discoveryURI())
		require.NoError(t, err)
		require.True(t, ok)

		clock.Advance(2 * time.Minute)
		idp.set(func(idp *fakeIdP) { idp.discoveryStatus = http.StatusServiceUnavailable })

		_, err = svc.GetDiscovery(ctx, idp.discoveryURI(), time.Minute)
		var remoteErr *fetch.RemoteFetchError
		require.ErrorAs(t, err, &remoteErr)

		after, ok, err := svc.discovery.Get(ctx, idp.discoveryURI())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, doc, after.Value)
		assert.Equal(t, before.ExpiresAt, after.ExpiresAt)

		idp.set(func(idp *fakeIdP) { idp.discoveryStatus = http.StatusOK })
		_, err = svc.GetDiscovery(ctx, idp.discoveryURI(), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 3, idp.requests(discoveryPath))
	})

	t.Run("an undecodable body is a DecodeError", func(t *testing.T) {
		for name, body := range map[string]string{
			"not json": "<html>oops</html>",
			"null":     "null",
			"array":    `["issuer"]`,
		} {
			t.Run(name, func(t *testing.T) {
				idp := newFakeIdP(t)
				idp.set(func(idp *fakeIdP) { idp.discoveryBody = body })
				svc, _ := newTestService(t)

				_, err := svc.GetDiscovery(ctx, idp.discoveryURI(), 0)

				var decodeErr *fetch.DecodeError
				require.ErrorAs(t, err, &decodeErr)
				assert.Equal(t, idp.discoveryURI(), decodeErr.URI)
			})
		}
	})

	t.Run("an unreachable host is a TransportError", func(t *testing.T) {
		idp := newFakeIdP(t)
		uri := idp.discoveryURI()
		idp.server.Close()

		svc, _ := newTestService(t)

		_, err := svc.GetDiscovery(ctx, uri, 0)

		var transportErr *fetch.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, uri, transportErr.URI)
	})

	t.Run("different URIs are cached independently", func(t *testing.T) {
		a, b := newFakeIdP(t), newFakeIdP(t)
		svc, _ := newTestService(t)

		docA, err := svc.GetDiscovery(ctx, a.discoveryURI(), 0)
		require.NoError(t, err)
		docB, err := svc.GetDiscovery(ctx, b.discoveryURI(), 0)
		require.NoError(t, err)

		assert.NotEqual(t, docA.JWKSURI, docB.JWKSURI)
		assert.Equal(t, 1, a.requests(discoveryPath))
		assert.Equal(t, 1, b.requests(discoveryPath))
	})
}

func Test_GetKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("it resolves the discovery document then fetches the key set", func(t *testing.T) {
		idp := newFakeIdP(t)
		svc, _ := newTestService(t)

		set, err := svc.GetKeys(ctx, idp.discoveryURI(), 0)
		require.NoError(t, err)

		_, found := set.LookupKeyID("kid")
		assert.True(t, found)

		assert.Equal(t, 1, idp.requests(discoveryPath))
		assert.Equal(t, 1, idp.requests(keysPath))
	})

	t.Run("the key set is cached under the discovery URI", func(t *testing.T) {
		idp := newFakeIdP(t)
		svc, _ := newTestService(t)

		_, err := svc.GetKeys(ctx, idp.discoveryURI(), 0)
		require.NoError(t, err)

		_, ok, err := svc.keys.Get(ctx, idp.discoveryURI())
		require.NoError(t, err)
		assert.True(t, ok)

		_, ok, err = svc.keys.Get(ctx, idp.jwksURI)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = svc.GetKeys(ctx, idp.discoveryURI(), 0)
		require.NoError(t, err)
		assert.Equal(t, 1, idp.requests(keysPath))
	})

	t.Run("an expired key set is refetched without refetching a valid discovery document", func(t *testing.T) {
		idp := newFakeIdP(t)
		svc, clock := newTestService(t)

		_, err := svc.GetDiscovery(ctx, idp.discoveryURI(), time.Hour)
		require.NoError(t, err)
		_, err = svc.GetKeys(ctx, idp.discoveryURI(), 10*time.Second)
		require.NoError(t, err)

		clock.Advance(11 * time.Second)
		_, err = svc.GetKeys(ctx, idp.discoveryURI(), 10*time.Second)
		require.NoError(t, err)

		assert.Equal(t, 1, idp.requests(discoveryPath))
		assert.Equal(t, 2, idp.requests(keysPath))
	})

	t.Run("a key set failure does not disturb the cached discovery document", func(t *testing.T) {
		idp := newFakeIdP(t)
		svc, _ := newTestService(t)

		doc, err := svc.GetDiscovery(ctx, idp.discoveryURI(), 0)
		require.NoError(t, err)

		idp.set(func(idp *fakeIdP) { idp.keysStatus = http.StatusBadGateway })
		_, err = svc.GetKeys(ctx, idp.discoveryURI(), 0)

		var remoteErr *fetch.RemoteFetchError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, http.StatusBadGateway, remoteErr.StatusCode)
		assert.Equal(t, idp.jwksURI, remoteErr.URI)

		cached, err := svc.GetDiscovery(ctx, idp.discoveryURI(), 0)
		require.NoError(t, err)
		assert.Same(t, doc, cached)
		assert.Equal(t, 1, idp.requests(discoveryPath))

		_, ok, err := svc.keys.Get(ctx, idp.discoveryURI())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("a failed discovery refresh leaves both expired entries in place", func(t *testing.T) {
		idp := newFakeIdP(t)
		svc, clock := newTestService(t)

		set, err := svc.GetKeys(ctx, idp.discoveryURI(), time.Minute)
		require.NoError(t, err)
		discoveryBefore, ok, err := svc.discovery.Get(ctx, idp.discoveryURI())
		require.NoError(t, err)
		require.True(t, ok)
		keysBefore, ok, err := svc.keys.Get(ctx, idp.discoveryURI())
		require.NoError(t, err)
		require.True(t, ok)

		clock.Advance(2 * time.Minute)
		idp.set(func(idp *fakeIdP) { idp.discoveryStatus = http.StatusBadGateway })

		_, err = svc.GetKeys(ctx, idp.discoveryURI(), time.Minute)
		var remoteErr *fetch.RemoteFetchError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, idp.discoveryURI(), remoteErr.URI)
		assert.Equal(t, 1, idp.requests(keysPath))

		discoveryAfter, ok, err := svc.discovery.Get(ctx, idp.discoveryURI())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, discoveryBefore.Value, discoveryAfter.Value)
		assert.Equal(t, discoveryBefore.ExpiresAt, discoveryAfter.ExpiresAt)

		keysAfter, ok, err := svc.keys.Get(ctx, idp.discoveryURI())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, set, keysAfter.Value)
		assert.Equal(t, keysBefore.ExpiresAt, keysAfter.ExpiresAt)
	})

	t.Run("a discovery failure is returned as is and nothing is cached", func(t *testing.T) {
		idp := newFakeIdP(t)
		idp.set(func(idp *fakeIdP) { idp.discoveryStatus = http.StatusNotFound })
		svc, _ := newTestService(t)

		_, err := svc.GetKeys(ctx, idp.discoveryURI(), 0)

		var remoteErr *fetch.RemoteFetchError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, idp.discoveryURI(), remoteErr.URI)
		assert.Equal(t, 0, idp.requests(keysPath))

		stats, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{}, stats)
	})

	t.Run("a document without jwks_uri is rejected", func(t *testing.T) {
		idp := newFakeIdP(t)
		idp.set(func(idp *fakeIdP) { idp.discoveryBody = `{"issuer":"https://idp.example/"}` })
		svc, _ := newTestService(t)

		_, err := svc.GetKeys(ctx, idp.discoveryURI(), 0)
		assert.ErrorIs(t, err, ErrMissingJWKSURI)
		assert.Equal(t, 0, idp.requests(keysPath))
	})

	t.Run("a relative jwks_uri is resolved against the discovery URI", func(t *testing.T) {
		idp := newFakeIdP(t)
		idp.set(func(idp *fakeIdP) { idp.jwksURI = keysPath })
		svc, _ := newTestService(t)

		set, err := svc.GetKeys(ctx, idp.discoveryURI(), 0)
		require.NoError(t, err)
		assert.Equal(t, 1, set.Len())
		assert.Equal(t, 1, idp.requests(keysPath))
	})

	t.Run("an invalid key set is a DecodeError", func(t *testing.T) {
		idp := newFakeIdP(t)
		idp.set(func(idp *fakeIdP) { idp.keysBody = "not a key set" })
		svc, _ := newTestService(t)

		_, err := svc.GetKeys(ctx, idp.discoveryURI(), 0)

		var decodeErr *fetch.DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, idp.jwksURI, decodeErr.URI)
	})
}

func Test_SingleFlight(t *testing.T) {
	ctx := context.Background()

	t.Run("concurrent misses share one fetch per document", func(t *testing.T) {
		idp := newFakeIdP(t)
		svc, _ := newTestService(t)

		var wg sync.WaitGroup
		errs := make(chan error, 50)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.GetKeys(ctx, idp.discoveryURI(), 0)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		assert.Equal(t, 1, idp.requests(discoveryPath))
		assert.Equal(t, 1, idp.requests(keysPath))
	})

	t.Run("a cancelled caller returns early and the shared fetch still fills the cache", func(t *testing.T) {
		idp := newFakeIdP(t)
		gate := make(chan struct{})
		idp.set(func(idp *fakeIdP) { idp.gate = gate })
		svc, _ := newTestService(t)

		cancelCtx, cancel := context.WithCancel(ctx)
		result := make(chan error, 1)
		go func() {
			_, err := svc.GetDiscovery(cancelCtx, idp.discoveryURI(), 0)
			result <- err
		}()

		require.Eventually(t, func() bool { return idp.requests(discoveryPath) == 1 }, time.Second, time.Millisecond)
		cancel()

		err := <-result
		var transportErr *fetch.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.ErrorIs(t, err, context.Canceled)

		close(gate)
		_, err = svc.GetDiscovery(ctx, idp.discoveryURI(), 0)
		require.NoError(t, err)
		assert.Equal(t, 1, idp.requests(discoveryPath))
	})

	t.Run("a cancelled GetKeys caller reports the discovery URI", func(t *testing.T) {
		idp := newFakeIdP(t)
		gate := make(chan struct{})
		idp.set(func(idp *fakeIdP) { idp.gate = gate })
		svc, _ := newTestService(t)

		cancelCtx, cancel := context.WithCancel(ctx)
		result := make(chan error, 1)
		go func() {
			_, err := svc.GetKeys(cancelCtx, idp.discoveryURI(), 0)
			result <- err
		}()

		require.Eventually(t, func() bool { return idp.requests(discoveryPath) == 1 }, time.Second, time.Millisecond)
		cancel()

		err := <-result
		var transportErr *fetch.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, idp.discoveryURI(), transportErr.URI)
		assert.ErrorIs(t, err, context.Canceled)

		close(gate)
		_, err = svc.GetKeys(ctx, idp.discoveryURI(), 0)
		require.NoError(t, err)
		assert.Equal(t, 1, idp.requests(keysPath))
	})

	t.Run("without single flight every miss fetches", func(t *testing.T) {
		idp := newFakeIdP(t)
		gate := make(chan struct{})
		idp.set(func(idp *fakeIdP) { idp.gate = gate })
		svc, _ := newTestService(t, WithSingleFlight(false))

		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = svc.GetDiscovery(ctx, idp.discoveryURI(), 0)
			}()
		}

		require.Eventually(t, func() bool { return idp.requests(discoveryPath) == 3 }, time.Second, time.Millisecond)
		close(gate)
		wg.Wait()
	})
}

func Test_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("Sweep evicts expired entries from both caches", func(t *testing.T) {
		idp := newFakeIdP(t)
		svc, clock := newTestService(t)

		_, err := svc.GetKeys(ctx, idp.discoveryURI(), time.Minute)
		require.NoError(t, err)

		stats, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{DiscoveryEntries: 1, KeySetEntries: 1}, stats)

		assert.Equal(t, 0, svc.Sweep(ctx))

		clock.Advance(2 * time.Minute)
		assert.Equal(t, 2, svc.Sweep(ctx))

		stats, err = svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{}, stats)
	})

	t.Run("the background sweep evicts expired entries", func(t *testing.T) {
		idp := newFakeIdP(t)
		svc, clock := newTestService(t, WithSweepInterval(10*time.Millisecond))

		_, err := svc.GetKeys(ctx, idp.discoveryURI(), time.Minute)
		require.NoError(t, err)
		clock.Advance(time.Hour)

		assert.Eventually(t, func() bool {
			stats, err := svc.Stats(ctx)
			return err == nil && stats == Stats{}
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("the background sweep keeps valid entries", func(t *testing.T) {
		idp := newFakeIdP(t)
		svc, _ := newTestService(t, WithSweepInterval(time.Millisecond))

		_, err := svc.GetDiscovery(ctx, idp.discoveryURI(), time.Minute)
		require.NoError(t, err)

		time.Sleep(20 * time.Millisecond)
		stats, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.DiscoveryEntries)
	})
}

func Test_Stop(t *testing.T) {
	ctx := context.Background()

	t.Run("Stop is idempotent", func(t *testing.T) {
		svc, _ := newTestService(t)

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				svc.Stop()
			}()
		}
		wg.Wait()
		svc.Stop()
	})

	t.Run("start and stop are logged once at info", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)
		svc, _ := newTestService(t,
			WithSweepInterval(time.Minute),
			WithLogger(NewZapLogger(zap.New(core).Sugar())),
		)

		svc.Stop()
		svc.Stop()

		infoLogs := recorded.FilterLevelExact(zapcore.InfoLevel)
		assert.Equal(t, 1, infoLogs.FilterMessage("metadata service started, sweeping every 1m0s").Len())
		assert.Equal(t, 1, infoLogs.FilterMessage("metadata service stopped").Len())
	})

	t.Run("the service keeps serving after Stop but no longer sweeps", func(t *testing.T) {
		idp := newFakeIdP(t)
		svc, clock := newTestService(t, WithSweepInterval(time.Millisecond))
		svc.Stop()

		_, err := svc.GetDiscovery(ctx, idp.discoveryURI(), time.Minute)
		require.NoError(t, err)

		clock.Advance(time.Hour)
		time.Sleep(20 * time.Millisecond)

		stats, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.DiscoveryEntries)
	})
}

// failingStore fails every call.
type failingStore[T any] struct{ err error }

func (s failingStore[T]) Get(context.Context, string) (cache.Entry[T], bool, error) {
	return cache.Entry[T]{}, false, s.err
}
func (s failingStore[T]) Put(context.Context, string, T, time.Duration) error { return s.err }
func (s failingStore[T]) RemoveIfExpired(context.Context, string, time.Time) (bool, error) {
	return false, s.err
}
func (s failingStore[T]) Keys(context.Context) ([]string, error) { return nil, s.err }

func Test_StoreFailures(t *testing.T) {
	ctx := context.Background()
	idp := newFakeIdP(t)

	core, recorded := observer.New(zapcore.DebugLevel)
	svc, _ := newTestService(t,
		WithDiscoveryStore(failingStore[*DiscoveryDocument]{err: errors.New("store down")}),
		WithLogger(NewZapLogger(zap.New(core).Sugar())),
	)

	doc, err := svc.GetDiscovery(ctx, idp.discoveryURI(), 0)
	require.NoError(t, err, "the fetched document is returned even when it cannot be cached")
	assert.Equal(t, idp.jwksURI, doc.JWKSURI)

	_, err = svc.GetDiscovery(ctx, idp.discoveryURI(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, idp.requests(discoveryPath))

	errorLogs := recorded.FilterLevelExact(zapcore.ErrorLevel)
	assert.NotZero(t, errorLogs.FilterMessage(fmt.Sprintf("failed to read discovery cache for %s: store down", idp.discoveryURI())).Len())
	assert.NotZero(t, errorLogs.FilterMessage(fmt.Sprintf("failed to cache discovery document for %s: store down", idp.discoveryURI())).Len())

	_, err = svc.Stats(ctx)
	assert.EqualError(t, err, "store down")
}

func Test_Observability(t *testing.T) {
	ctx := context.Background()
	idp := newFakeIdP(t)

	reg := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(reg)
	core, recorded := observer.New(zapcore.DebugLevel)

	svc, clock := newTestService(t,
		WithMetrics(metrics),
		WithLogger(NewZapLogger(zap.New(core).Sugar())),
	)

	_, err := svc.GetKeys(ctx, idp.discoveryURI(), time.Minute)
	require.NoError(t, err)
	_, err = svc.GetKeys(ctx, idp.discoveryURI(), time.Minute)
	require.NoError(t, err)

	discoveryTags := map[string]string{"document": DocumentDiscovery}
	keysTags := map[string]string{"document": DocumentKeys}

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.counters[MetricCacheHits].With(keysTags)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.counters[MetricCacheMisses].With(keysTags)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.counters[MetricCacheMisses].With(discoveryTags)))

	clock.Advance(2 * time.Minute)
	idp.set(func(idp *fakeIdP) { idp.discoveryStatus = http.StatusInternalServerError })
	_, err = svc.GetDiscovery(ctx, idp.discoveryURI(), 0)
	require.Error(t, err)

	errTags := map[string]string{"document": DocumentDiscovery, "reason": "status"}
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.counters[MetricFetchErrors].With(errTags)))
	assert.Equal(t, 1, recorded.FilterLevelExact(zapcore.WarnLevel).Len())

	assert.Equal(t, 2, svc.Sweep(ctx))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.counters[MetricEvictions].With(discoveryTags)))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.gauges[MetricCacheEntries].With(keysTags)))

	assert.Equal(t, 2, testutil.CollectAndCount(metrics.histograms[MetricFetchDuration]))
}

func Test_errorReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&fetch.RemoteFetchError{StatusCode: 500}, "status"},
		{&fetch.TransportError{Err: context.DeadlineExceeded}, "transport"},
		{fmt.Errorf("wrapped: %w", &fetch.DecodeError{Err: errors.New("bad")}), "decode"},
		{ErrMissingJWKSURI, "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorReason(tt.err), tt.err.Error())
	}
}
