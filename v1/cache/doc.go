// Package cache provides a fixed-capacity, exact LRU cache safe for
// concurrent use.
//
// LRU keeps an index from key to arena slot and a recency list threaded
// through the arena by slot number, so lookups, promotions, insertions and
// evictions are O(1). One mutex guards both structures; Get takes it
// exclusively because a hit reorders the list.
//
// Values that stay resident are returned as copies made by a Cloner while the
// lock is held. A panic inside a critical section poisons the cache: every
// later call fails with errors.ErrPoisoned. Resilient discards and rebuilds a
// poisoned cache, and InMemoryCache adds context checks, tracing and latency
// metrics on top of a string keyed LRU.
package cache
