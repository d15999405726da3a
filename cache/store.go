package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Entry is a cached value with its expiry.
type Entry[T any] struct {
	Value     T
	ExpiresAt time.Time
}

// Valid reports whether the entry has not expired at now.
// An entry expiring exactly at now is still valid.
func (e Entry[T]) Valid(now time.Time) bool {
	return !e.ExpiresAt.Before(now)
}

// Store is a keyed cache of expiring values.
//
// Implementations must be safe for concurrent use, and a reader must never
// observe a value without its matching expiry.
type Store[T any] interface {
	// Get returns the entry for key, whether or not it has expired.
	// The boolean is false when no entry exists.
	Get(ctx context.Context, key string) (Entry[T], bool, error)

	// Put stores value under key with an expiry of now + ttl,
	// replacing any existing entry.
	Put(ctx context.Context, key string, value T, ttl time.Duration) error

	// RemoveIfExpired removes the entry for key only if it expired before
	// now. It reports whether an entry was removed and is a no-op for
	// missing or still valid entries.
	RemoveIfExpired(ctx context.Context, key string, now time.Time) (bool, error)

	// Keys returns a snapshot of the keys currently stored.
	Keys(ctx context.Context) ([]string, error)
}

// Sweep removes every entry of store that expired before now and returns
// how many were removed. It stops early when ctx is done. A failure on one
// key does not stop the scan; all failures are returned joined.
func Sweep[T any](ctx context.Context, store Store[T], now time.Time) (int, error) {
	keys, err := store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not list cache keys: %w", err)
	}

	var (
		removed int
		errs    []error
	)
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		ok, err := store.RemoveIfExpired(ctx, key, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("could not evict %q: %w", key, err))
			continue
		}
		if ok {
			removed++
		}
	}

	return removed, errors.Join(errs...)
}
