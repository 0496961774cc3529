package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	lruerrors "github.com/mirkobrombin/go-lru/v1/errors"
	"github.com/mirkobrombin/go-lru/v1/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// LRU is a fixed-capacity, exact least-recently-used cache safe for
// concurrent use.
//
// A single mutex guards the key index and the recency list together. Get
// reorders the recency list, so reads take the same exclusive lock as writes.
// Values handed back while they stay resident are duplicated with the
// configured Cloner before the lock is released.
type LRU[K comparable, V any] struct {
	capacity int

	mu       sync.Mutex
	index    map[K]int
	list     recency[K, V]
	poisoned bool
	reported int64

	clone   Cloner[V]
	onEvict func(K, V)
	logger  *slog.Logger

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	hitCounter      prometheus.Counter
	missCounter     prometheus.Counter
	evictionCounter prometheus.Counter
	sizeGauge       prometheus.Gauge
}

// Cloner duplicates a value so that the copy can outlive the cache lock.
type Cloner[V any] func(V) (V, error)

// Option configures an LRU.
type Option[K comparable, V any] func(*LRU[K, V])

// WithCloner sets the function used to duplicate values returned by Get,
// PeekMRU and PeekLRU. The default is a plain Go value copy, which is enough
// for values without shared references.
func WithCloner[K comparable, V any](fn Cloner[V]) Option[K, V] {
	return func(c *LRU[K, V]) {
		if fn != nil {
			c.clone = fn
		}
	}
}

// WithOnEvict registers a callback for entries evicted to make room for a new
// key. It runs after the cache lock has been released.
func WithOnEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *LRU[K, V]) {
		c.onEvict = fn
	}
}

// WithLogger sets the logger used to report poisoning. Defaults to slog.Default.
func WithLogger[K comparable, V any](l *slog.Logger) Option[K, V] {
	return func(c *LRU[K, V]) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection using the provided registerer.
// Caches sharing a registerer share the collectors.
func WithMetrics[K comparable, V any](reg prometheus.Registerer) Option[K, V] {
	return func(c *LRU[K, V]) {
		c.hitCounter = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lru_cache_hits_total",
			Help: "Total number of cache hits",
		}))
		c.missCounter = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lru_cache_misses_total",
			Help: "Total number of cache misses",
		}))
		c.evictionCounter = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lru_cache_evictions_total",
			Help: "Total number of capacity evictions",
		}))
		c.sizeGauge = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lru_cache_entries",
			Help: "Number of entries currently held",
		}))
	}
}

// register returns the collector already registered under the same
// descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func copyValue[V any](v V) (V, error) { return v, nil }

// New returns an empty LRU holding at most capacity entries.
// It fails with errors.ErrInvalidCapacity when capacity is not positive.
func New[K comparable, V any](capacity int, opts ...Option[K, V]) (*LRU[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", lruerrors.ErrInvalidCapacity, capacity)
	}
	c := &LRU[K, V]{
		capacity: capacity,
		index:    make(map[K]int, min(capacity, maxPrealloc)),
		list:     newRecency[K, V](capacity),
		clone:    copyValue[V],
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MustNew is like New but panics on an invalid capacity.
func MustNew[K comparable, V any](capacity int, opts ...Option[K, V]) *LRU[K, V] {
	c, err := New[K, V](capacity, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// acquire takes the lock. It fails without holding the lock when the cache
// has been poisoned.
func (c *LRU[K, V]) acquire() error {
	c.mu.Lock()
	if c.poisoned {
		c.mu.Unlock()
		return lruerrors.ErrPoisoned
	}
	return nil
}

// release must be deferred right after a successful acquire. A panic inside
// the critical section poisons the cache before the lock is dropped and is
// then propagated to the caller.
func (c *LRU[K, V]) release() {
	if r := recover(); r != nil {
		c.poisoned = true
		c.mu.Unlock()
		metrics.PoisonedGauge.Inc()
		c.logger.Error("lru: operation aborted, cache poisoned", "panic", r)
		panic(r)
	}
	c.mu.Unlock()
}

func (c *LRU[K, V]) dup(v V) (V, error) {
	out, err := c.clone(v)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("%w: %v", lruerrors.ErrClone, err)
	}
	return out, nil
}

// Get returns a copy of the value stored for key and marks key as the most
// recently used entry. A miss leaves the cache untouched.
func (c *LRU[K, V]) Get(key K) (V, bool, error) {
	v, ok, err := c.get(key)
	if err != nil {
		return v, false, err
	}
	if ok {
		c.hits.Add(1)
		if c.hitCounter != nil {
			c.hitCounter.Inc()
		}
	} else {
		c.misses.Add(1)
		if c.missCounter != nil {
			c.missCounter.Inc()
		}
	}
	return v, ok, nil
}

func (c *LRU[K, V]) get(key K) (v V, ok bool, err error) {
	if err = c.acquire(); err != nil {
		return v, false, err
	}
	defer c.release()
	i, found := c.index[key]
	if !found {
		return v, false, nil
	}
	c.list.moveToFront(i)
	v, err = c.dup(c.list.nodes[i].value)
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

// PeekMRU returns a copy of the most recently used value without changing
// the recency order.
func (c *LRU[K, V]) PeekMRU() (V, bool, error) {
	return c.peek(func() int { return c.list.head })
}

// GetMRU is an alias of PeekMRU.
func (c *LRU[K, V]) GetMRU() (V, bool, error) { return c.PeekMRU() }

// PeekLRU returns a copy of the least recently used value, the next eviction
// candidate, without changing the recency order.
func (c *LRU[K, V]) PeekLRU() (V, bool, error) {
	return c.peek(func() int { return c.list.tail })
}

func (c *LRU[K, V]) peek(slot func() int) (v V, ok bool, err error) {
	if err = c.acquire(); err != nil {
		return v, false, err
	}
	defer c.release()
	i := slot()
	if i == nilSlot {
		return v, false, nil
	}
	v, err = c.dup(c.list.nodes[i].value)
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

// Put stores value under key and makes key the most recently used entry.
//
// When key is already present its value is replaced and the previous value
// is returned with true; the entry count does not change. Otherwise, if the
// cache is full, exactly one entry is evicted first: the least recently used.
func (c *LRU[K, V]) Put(key K, value V) (V, bool, error) {
	prev, replaced, ev, err := c.put(key, value)
	if err != nil {
		return prev, false, err
	}
	if ev.ok {
		c.evictions.Add(1)
		if c.evictionCounter != nil {
			c.evictionCounter.Inc()
		}
		if c.onEvict != nil {
			c.onEvict(ev.key, ev.value)
		}
	}
	return prev, replaced, nil
}

type eviction[K comparable, V any] struct {
	key   K
	value V
	ok    bool
}

func (c *LRU[K, V]) put(key K, value V) (prev V, replaced bool, ev eviction[K, V], err error) {
	if err = c.acquire(); err != nil {
		return prev, false, ev, err
	}
	defer c.release()
	if i, found := c.index[key]; found {
		n := &c.list.nodes[i]
		prev, n.value = n.value, value
		c.list.moveToFront(i)
		return prev, true, ev, nil
	}
	if c.list.len >= c.capacity {
		ev = c.removeSlot(c.list.tail)
	}
	i := c.list.alloc(key, value)
	c.list.pushFront(i)
	c.index[key] = i
	if !ev.ok {
		c.addSize(1)
	}
	return prev, false, ev, nil
}

// removeSlot unlinks slot i, drops it from the index and frees it.
func (c *LRU[K, V]) removeSlot(i int) eviction[K, V] {
	n := c.list.nodes[i]
	c.list.unlink(i)
	delete(c.index, n.key)
	c.list.release(i)
	return eviction[K, V]{key: n.key, value: n.value, ok: true}
}

// PopMRU removes the most recently used entry and returns its value.
func (c *LRU[K, V]) PopMRU() (V, bool, error) {
	return c.pop(func() int { return c.list.head })
}

// PopLRU removes the least recently used entry and returns its value.
func (c *LRU[K, V]) PopLRU() (V, bool, error) {
	return c.pop(func() int { return c.list.tail })
}

func (c *LRU[K, V]) pop(slot func() int) (V, bool, error) {
	removed, err := c.popSlot(slot)
	if err != nil {
		return removed.value, false, err
	}
	return removed.value, removed.ok, nil
}

// popSlot hands the removed value over without cloning: the cache keeps no
// reference to it afterwards.
func (c *LRU[K, V]) popSlot(slot func() int) (ev eviction[K, V], err error) {
	if err = c.acquire(); err != nil {
		return ev, err
	}
	defer c.release()
	i := slot()
	if i == nilSlot {
		return ev, nil
	}
	c.addSize(-1)
	return c.removeSlot(i), nil
}

// addSize moves the entries gauge by delta and must be called with the lock
// held. Caches registered on the same registerer share the gauge, so it
// tracks their total and is never set.
func (c *LRU[K, V]) addSize(delta int64) {
	if c.sizeGauge != nil {
		c.reported += delta
		c.sizeGauge.Add(float64(delta))
	}
}

// discard withdraws everything this cache added to the entries gauge.
func (c *LRU[K, V]) discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sizeGauge != nil {
		c.sizeGauge.Sub(float64(c.reported))
		c.reported = 0
	}
}

// Contains reports whether key is present without promoting it.
// It fails with errors.ErrPoisoned once the cache has been poisoned.
func (c *LRU[K, V]) Contains(key K) (bool, error) {
	if err := c.acquire(); err != nil {
		return false, err
	}
	defer c.release()
	_, ok := c.index[key]
	return ok, nil
}

// Keys returns the resident keys ordered from most to least recently used.
// It fails with errors.ErrPoisoned once the cache has been poisoned.
func (c *LRU[K, V]) Keys() ([]K, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()
	return c.list.keys(), nil
}

// Len returns the number of entries currently held. On a poisoned cache it
// reports the count left by the aborted operation; check Poisoned first.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.len
}

// Cap returns the fixed capacity.
func (c *LRU[K, V]) Cap() int { return c.capacity }

// Poisoned reports whether an aborted operation invalidated the cache.
func (c *LRU[K, V]) Poisoned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poisoned
}

// Stats reports basic metrics about cache usage.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
	Poisoned  bool
}

// Stats returns current counters for the cache. Size is only meaningful when
// Poisoned is false.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	size, poisoned := c.list.len, c.poisoned
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      size,
		Poisoned:  poisoned,
	}
}
