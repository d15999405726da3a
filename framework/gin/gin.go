// Package metadatagin serves cached OIDC metadata from a Gin router, so a
// service can act as a local mirror of its identity provider.
package metadatagin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/auth0/go-oidc-metadata/internal/mirror"
)

// Source is what the handlers serve from; *oidcmetadata.Service implements it.
type Source = mirror.Source

// Paths Register mounts the handlers at.
const (
	DiscoveryPath = mirror.DiscoveryPath
	KeysPath      = mirror.KeysPath
)

type handlerConfig struct {
	mirror.Config
	errorHandler func(*gin.Context, error)
}

// Register mounts DiscoveryHandler and KeysHandler at their well-known paths.
func Register(r gin.IRoutes, src Source, opts ...Option) {
	r.GET(DiscoveryPath, DiscoveryHandler(src, opts...))
	r.GET(KeysPath, KeysHandler(src, opts...))
}

// DiscoveryHandler serves the cached discovery document.
func DiscoveryHandler(src Source, opts ...Option) gin.HandlerFunc {
	config := newConfig(opts)

	return func(c *gin.Context) {
		doc, err := config.Discovery(c.Request.Context(), src)
		if err != nil {
			config.errorHandler(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// KeysHandler serves the cached key set.
func KeysHandler(src Source, opts ...Option) gin.HandlerFunc {
	config := newConfig(opts)

	return func(c *gin.Context) {
		set, err := config.Keys(c.Request.Context(), src)
		if err != nil {
			config.errorHandler(c, err)
			return
		}
		c.JSON(http.StatusOK, set)
	}
}

func newConfig(opts []Option) *handlerConfig {
	config := &handlerConfig{errorHandler: defaultErrorHandler}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

func defaultErrorHandler(c *gin.Context, err error) {
	status, body := mirror.Failure(err)
	c.AbortWithStatusJSON(status, body)
}
