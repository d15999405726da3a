package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	oidcmetadata "github.com/auth0/go-oidc-metadata"
	"github.com/auth0/go-oidc-metadata/cache"
)

type runtimeState struct {
	issuer    string
	uri       string
	ttl       time.Duration
	timeout   time.Duration
	redisAddr string
	output    string
	debug     bool

	writer io.Writer
	logger *zap.Logger
}

func newRootCommand(w io.Writer) *cobra.Command {
	rt := &runtimeState{writer: w}

	root := &cobra.Command{
		Use:          "oidcmeta",
		Short:        "Fetch and cache OpenID Connect provider metadata",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = cmd.OutOrStdout()
			}
			if rt.issuer == "" {
				rt.issuer = os.Getenv("OIDCMETA_ISSUER")
			}
			if rt.uri == "" {
				rt.uri = os.Getenv("OIDCMETA_URI")
			}
			if rt.redisAddr == "" {
				rt.redisAddr = os.Getenv("OIDCMETA_REDIS_ADDR")
			}
			if !rt.debug {
				rt.debug = strings.EqualFold(os.Getenv("OIDCMETA_DEBUG"), "true")
			}

			logger, err := setupLogger(rt.debug)
			if err != nil {
				return err
			}
			rt.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rt.issuer, "issuer", "", "Issuer URL; the discovery URI is derived from it")
	flags.StringVar(&rt.uri, "uri", "", "Discovery document URI (overrides --issuer)")
	flags.DurationVar(&rt.ttl, "ttl", oidcmetadata.DefaultTTL, "How long fetched documents stay valid")
	flags.DurationVar(&rt.timeout, "timeout", 30*time.Second, "HTTP request timeout")
	flags.StringVar(&rt.redisAddr, "redis-addr", "", "Share cached documents through Redis at this address")
	flags.StringVarP(&rt.output, "output", "o", "json", "Output format: json, yaml")
	flags.BoolVar(&rt.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newDiscoveryCommand(rt),
		newKeysCommand(rt),
		newServeCommand(rt),
	)

	return root
}

func setupLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return logger, nil
}

// newService builds a Service from the global flags. The returned cleanup
// stops it and closes any Redis client.
func (rt *runtimeState) newService(extra ...oidcmetadata.Option) (*oidcmetadata.Service, func(), error) {
	opts := []oidcmetadata.Option{
		oidcmetadata.WithHTTPClient(&http.Client{Timeout: rt.timeout}),
		oidcmetadata.WithDefaultTTL(rt.ttl),
		oidcmetadata.WithLogger(oidcmetadata.NewZapLogger(rt.logger.Sugar())),
	}

	switch {
	case rt.uri != "":
		opts = append(opts, oidcmetadata.WithDefaultURI(rt.uri))
	case rt.issuer != "":
		issuerURL, err := url.Parse(rt.issuer)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid issuer URL: %w", err)
		}
		opts = append(opts, oidcmetadata.WithIssuer(issuerURL))
	}

	closeRedis := func() {}
	if rt.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: rt.redisAddr})
		closeRedis = func() { _ = rdb.Close() }

		discoveryStore, err := cache.NewRedisStore[*oidcmetadata.DiscoveryDocument](
			rdb, cache.JSONCodec[*oidcmetadata.DiscoveryDocument]{}, cache.WithKeyPrefix("oidcmeta:discovery:"),
		)
		if err != nil {
			closeRedis()
			return nil, nil, err
		}
		keySetStore, err := cache.NewRedisStore[jwk.Set](
			rdb, cache.KeySetCodec{}, cache.WithKeyPrefix("oidcmeta:keys:"),
		)
		if err != nil {
			closeRedis()
			return nil, nil, err
		}
		opts = append(opts,
			oidcmetadata.WithDiscoveryStore(discoveryStore),
			oidcmetadata.WithKeySetStore(keySetStore),
		)
	}

	svc, err := oidcmetadata.New(append(opts, extra...)...)
	if err != nil {
		closeRedis()
		return nil, nil, err
	}

	return svc, func() {
		svc.Stop()
		closeRedis()
	}, nil
}

// print writes v in the selected output format.
func (rt *runtimeState) print(v any) error {
	switch rt.output {
	case "", "json":
		encoder := json.NewEncoder(rt.writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case "yaml":
		// Round trip through JSON so the output keeps the JSON member names.
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return fmt.Errorf("failed to marshal to YAML: %w", err)
		}
		_, err = rt.writer.Write(out)
		return err
	default:
		return fmt.Errorf("unsupported output format %q", rt.output)
	}
}
