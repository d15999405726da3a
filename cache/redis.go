package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store shared between processes through Redis.
//
// Each entry is written as a JSON envelope holding the encoded value and its
// expiry. Redis is also told to drop the key a grace period after the
// expiry, so abandoned entries disappear even if no process sweeps them.
//
// Keys are listed with SCAN, which only sees the node it is sent to; use a
// single-node or failover client. Stores sharing a Redis database need
// prefixes where neither is a prefix of the other.
type RedisStore[T any] struct {
	client redis.UniversalClient
	codec  Codec[T]
	prefix string
	grace  time.Duration
	now    func() time.Time
}

type envelope struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt int64           `json:"expires_at"`
}

// NewRedisStore builds a RedisStore on top of client.
//
// Optional options:
//   - WithKeyPrefix: prefix for every Redis key (default: "oidc-metadata:")
//   - WithGrace: extra lifetime given to Redis-side expiry (default: 10 minutes)
//   - WithClock: time source used to compute expiry (default: time.Now)
func NewRedisStore[T any](client redis.UniversalClient, codec Codec[T], opts ...Option) (*RedisStore[T], error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if codec == nil {
		return nil, errors.New("codec cannot be nil")
	}

	cfg := newConfig(opts)
	return &RedisStore[T]{
		client: client,
		codec:  codec,
		prefix: cfg.keyPrefix,
		grace:  cfg.grace,
		now:    cfg.now,
	}, nil
}

// Prefix returns the prefix put in front of every Redis key.
func (s *RedisStore[T]) Prefix() string {
	return s.prefix
}

// Get implements Store.
func (s *RedisStore[T]) Get(ctx context.Context, key string) (Entry[T], bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry[T]{}, false, nil
	}
	if err != nil {
		return Entry[T]{}, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	e, err := s.decode(data)
	if err != nil {
		return Entry[T]{}, false, fmt.Errorf("could not decode cached %q: %w", key, err)
	}
	return e, true, nil
}

// Put implements Store.
func (s *RedisStore[T]) Put(ctx context.Context, key string, value T, ttl time.Duration) error {
	expiresAt := s.now().Add(ttl)

	data, err := s.encode(value, expiresAt)
	if err != nil {
		return fmt.Errorf("could not encode %q: %w", key, err)
	}

	expiration := ttl + s.grace
	if expiration < time.Second {
		expiration = time.Second
	}

	if err := s.client.Set(ctx, s.prefix+key, data, expiration).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// RemoveIfExpired implements Store.
//
// The check and the delete run under WATCH, so an entry rewritten by a
// concurrent Put is left alone. Entries that no longer decode are removed.
func (s *RedisStore[T]) RemoveIfExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	redisKey := s.prefix + key

	var removed bool
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		if env, err := decodeEnvelope(data); err == nil && !time.Unix(0, env.ExpiresAt).Before(now) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, redisKey)
			return nil
		})
		if err == nil {
			removed = true
		}
		return err
	}, redisKey)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis evict %q: %w", key, err)
	}
	return removed, nil
}

// Keys implements Store.
func (s *RedisStore[T]) Keys(ctx context.Context) ([]string, error) {
	var keys []string

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

func (s *RedisStore[T]) encode(value T, expiresAt time.Time) ([]byte, error) {
	raw, err := s.codec.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Value: raw, ExpiresAt: expiresAt.UnixNano()})
}

func (s *RedisStore[T]) decode(data []byte) (Entry[T], error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return Entry[T]{}, err
	}
	v, err := s.codec.Unmarshal(env.Value)
	if err != nil {
		return Entry[T]{}, err
	}
	return Entry[T]{Value: v, ExpiresAt: time.Unix(0, env.ExpiresAt)}, nil
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, err
	}
	if len(env.Value) == 0 || env.ExpiresAt == 0 {
		return env, errors.New("incomplete cache envelope")
	}
	return env, nil
}
