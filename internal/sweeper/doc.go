// Package sweeper runs a periodic background eviction pass over one or more
// caches, with an explicit start/stop lifecycle.
package sweeper
