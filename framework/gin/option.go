package metadatagin

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Option configures the handlers.
type Option func(*handlerConfig)

// WithURI sets the upstream discovery URI. Default: the Source's default.
func WithURI(uri string) Option {
	return func(config *handlerConfig) {
		config.URI = uri
	}
}

// WithTTL sets the TTL passed to the Source. Default: the Source's default.
func WithTTL(ttl time.Duration) Option {
	return func(config *handlerConfig) {
		config.TTL = ttl
	}
}

// WithJWKSURL rewrites jwks_uri in served discovery documents, typically to
// the mirror's own KeysPath.
func WithJWKSURL(url string) Option {
	return func(config *handlerConfig) {
		config.JWKSURL = url
	}
}

// WithErrorHandler sets a custom error handler for failed lookups.
func WithErrorHandler(handler func(*gin.Context, error)) Option {
	return func(config *handlerConfig) {
		if handler != nil {
			config.errorHandler = handler
		}
	}
}
