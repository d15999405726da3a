/*
Package cache holds expiring values keyed by string.

Two implementations of Store are provided:

	MemoryStore: a map guarded by a single RWMutex, for one process
	RedisStore:  entries shared by every process pointing at the same Redis

Validity is decided by the reader: Get returns expired entries too, and
Entry.Valid tells whether an entry may still be served. Expired entries are
removed by Sweep, which the oidcmetadata service runs periodically.

	store := cache.NewMemoryStore[string]()
	_ = store.Put(ctx, "k", "v", time.Minute)

	if e, ok, _ := store.Get(ctx, "k"); ok && e.Valid(time.Now()) {
	    fmt.Println(e.Value)
	}

	removed, err := cache.Sweep(ctx, store, time.Now())
*/
package cache
