package metadataecho

import (
	"time"

	"github.com/labstack/echo/v4"
)

// Option is a function that configures the handlers
type Option func(*echoHandlerConfig)

// WithURI sets the upstream discovery URI
func WithURI(uri string) Option {
	return func(config *echoHandlerConfig) {
		config.URI = uri
	}
}

// WithTTL sets the TTL passed to the Source
func WithTTL(ttl time.Duration) Option {
	return func(config *echoHandlerConfig) {
		config.TTL = ttl
	}
}

// WithJWKSURL rewrites jwks_uri in served discovery documents
func WithJWKSURL(url string) Option {
	return func(config *echoHandlerConfig) {
		config.JWKSURL = url
	}
}

// WithErrorHandler sets a custom error handler. Returning a non-nil error
// hands it to Echo's HTTPErrorHandler.
func WithErrorHandler(handler func(echo.Context, error) error) Option {
	return func(config *echoHandlerConfig) {
		if handler != nil {
			config.errorHandler = handler
		}
	}
}
