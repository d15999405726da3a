package cache

import "time"

// Option configures a store.
type Option func(*config)

type config struct {
	now       func() time.Time
	keyPrefix string
	grace     time.Duration
}

const (
	defaultKeyPrefix = "oidc-metadata:"
	defaultGrace     = 10 * time.Minute
)

func newConfig(opts []Option) *config {
	cfg := &config{
		now:       time.Now,
		keyPrefix: defaultKeyPrefix,
		grace:     defaultGrace,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithClock sets the time source used to compute expiry on Put.
// A nil clock is ignored.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithKeyPrefix sets the prefix RedisStore puts in front of every key.
// The discovery and key set stores need prefixes where neither is a
// prefix of the other; oidcmetadata.New rejects overlapping ones.
//
// Default: "oidc-metadata:"
func WithKeyPrefix(prefix string) Option {
	return func(c *config) {
		c.keyPrefix = prefix
	}
}

// WithGrace sets how long past its expiry RedisStore lets Redis keep an
// entry before Redis drops it on its own. Negative values are ignored.
//
// Default: 10 minutes
func WithGrace(grace time.Duration) Option {
	return func(c *config) {
		if grace >= 0 {
			c.grace = grace
		}
	}
}
