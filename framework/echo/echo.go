// Package metadataecho serves cached OIDC metadata from an Echo server.
package metadataecho

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/auth0/go-oidc-metadata/internal/mirror"
)

// Source is what the handlers serve from; *oidcmetadata.Service implements it.
type Source = mirror.Source

// Paths Register mounts the handlers at.
const (
	DiscoveryPath = mirror.DiscoveryPath
	KeysPath      = mirror.KeysPath
)

// echoHandlerConfig holds all configuration for the handlers
type echoHandlerConfig struct {
	mirror.Config
	errorHandler func(echo.Context, error) error
}

// Routes is the part of *echo.Echo and *echo.Group Register needs.
type Routes interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// Register mounts DiscoveryHandler and KeysHandler at their well-known paths.
func Register(r Routes, src Source, opts ...Option) {
	r.GET(DiscoveryPath, DiscoveryHandler(src, opts...))
	r.GET(KeysPath, KeysHandler(src, opts...))
}

// DiscoveryHandler serves the cached discovery document.
func DiscoveryHandler(src Source, opts ...Option) echo.HandlerFunc {
	config := newConfig(opts)

	return func(c echo.Context) error {
		doc, err := config.Discovery(c.Request().Context(), src)
		if err != nil {
			return config.errorHandler(c, err)
		}
		return c.JSON(http.StatusOK, doc)
	}
}

// KeysHandler serves the cached key set.
func KeysHandler(src Source, opts ...Option) echo.HandlerFunc {
	config := newConfig(opts)

	return func(c echo.Context) error {
		set, err := config.Keys(c.Request().Context(), src)
		if err != nil {
			return config.errorHandler(c, err)
		}
		return c.JSON(http.StatusOK, set)
	}
}

func newConfig(opts []Option) *echoHandlerConfig {
	config := &echoHandlerConfig{errorHandler: defaultEchoErrorHandler}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

func defaultEchoErrorHandler(c echo.Context, err error) error {
	status, body := mirror.Failure(err)
	return c.JSON(status, body)
}
