package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	oidcmetadata "github.com/auth0/go-oidc-metadata"
	metadatagin "github.com/auth0/go-oidc-metadata/framework/gin"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(rt *runtimeState) *cobra.Command {
	var (
		listen        string
		jwksURL       string
		sweepInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cached documents as a local mirror with Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			svc, cleanup, err := rt.newService(
				oidcmetadata.WithSweepInterval(sweepInterval),
				oidcmetadata.WithMetrics(oidcmetadata.NewPrometheusMetrics(reg)),
				oidcmetadata.WithTracer(oidcmetadata.NewOpenTelemetryTracer(otel.Tracer("oidcmeta"))),
			)
			if err != nil {
				return err
			}
			defer cleanup()

			// Warm the cache; the mirror still starts if the provider is down.
			if _, err := svc.GetKeys(ctx, "", 0); err != nil {
				rt.logger.Warn("initial fetch failed", zap.Error(err))
			}

			var ginOpts []metadatagin.Option
			if jwksURL != "" {
				ginOpts = append(ginOpts, metadatagin.WithJWKSURL(jwksURL))
			}

			server := &http.Server{
				Addr:              listen,
				Handler:           newRouter(svc, reg, ginOpts...),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return runServer(ctx, server, rt.logger)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8080", "Address to listen on")
	cmd.Flags().StringVar(&jwksURL, "jwks-url", "", "Rewrite jwks_uri in the served discovery document to this URL")
	cmd.Flags().DurationVar(&sweepInterval, "sweep-interval", oidcmetadata.DefaultSweepInterval, "How often expired entries are evicted")

	return cmd
}

// newRouter mounts the mirror handlers, /metrics and /healthz.
func newRouter(src metadatagin.Source, gatherer prometheus.Gatherer, opts ...metadatagin.Option) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	metadatagin.Register(router, src, opts...)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return router
}

func runServer(ctx context.Context, server *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metadata mirror", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
