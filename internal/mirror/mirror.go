// Package mirror holds the framework-agnostic parts of the metadata mirror
// handlers: what to serve, and how a failed lookup maps to an HTTP response.
package mirror

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	oidcmetadata "github.com/auth0/go-oidc-metadata"
	"github.com/auth0/go-oidc-metadata/fetch"
)

// Paths the mirror handlers are conventionally mounted at.
const (
	DiscoveryPath = "/.well-known/openid-configuration"
	KeysPath      = "/.well-known/jwks.json"
)

// Source is what a mirror serves from; *oidcmetadata.Service implements it.
type Source interface {
	GetDiscovery(ctx context.Context, uri string, ttl time.Duration) (*oidcmetadata.DiscoveryDocument, error)
	GetKeys(ctx context.Context, uri string, ttl time.Duration) (jwk.Set, error)
}

// Config is the lookup shared by both mirror endpoints.
type Config struct {
	// URI is the upstream discovery URI; empty means the Source's default.
	URI string
	// TTL is passed through to the Source; zero means its default.
	TTL time.Duration
	// JWKSURL, when set, replaces jwks_uri in served discovery documents so
	// that clients fetch keys from the mirror too.
	JWKSURL string
}

// Discovery returns the document to serve.
func (c Config) Discovery(ctx context.Context, src Source) (*oidcmetadata.DiscoveryDocument, error) {
	doc, err := src.GetDiscovery(ctx, c.URI, c.TTL)
	if err != nil {
		return nil, err
	}
	if c.JWKSURL == "" {
		return doc, nil
	}

	// The cached document is shared; never modify it in place.
	rewritten := *doc
	rewritten.JWKSURI = c.JWKSURL
	return &rewritten, nil
}

// Keys returns the key set to serve.
func (c Config) Keys(ctx context.Context, src Source) (jwk.Set, error) {
	return src.GetKeys(ctx, c.URI, c.TTL)
}

// ErrorResponse is the JSON body written when a lookup fails.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusCode maps a lookup error to the status the mirror answers with.
//
//   - upstream unreachable or too slow: 504
//   - upstream answered badly (status, body, missing jwks_uri): 502
//   - anything else: 500
func StatusCode(err error) int {
	var (
		transportErr *fetch.TransportError
		remoteErr    *fetch.RemoteFetchError
		decodeErr    *fetch.DecodeError
	)
	switch {
	case errors.As(err, &transportErr):
		return http.StatusGatewayTimeout
	case errors.As(err, &remoteErr), errors.As(err, &decodeErr), errors.Is(err, oidcmetadata.ErrMissingJWKSURI):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Failure returns the status and body for a failed lookup.
func Failure(err error) (int, ErrorResponse) {
	status := StatusCode(err)
	return status, ErrorResponse{
		Error:   errorCode(status),
		Message: err.Error(),
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusGatewayTimeout:
		return "upstream_unavailable"
	case http.StatusBadGateway:
		return "upstream_error"
	default:
		return "internal_error"
	}
}
