package cache

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	lruerrors "github.com/mirkobrombin/go-lru/v1/errors"
	"github.com/mirkobrombin/go-lru/v1/metrics"
)

// Resilient wraps an LRU and replaces it with a fresh, empty one once it has
// been poisoned. The call that observes the poisoned cache is reported as a
// miss and the event is logged instead of being returned.
//
// Entries held by the discarded cache are lost.
type Resilient[K comparable, V any] struct {
	capacity int
	opts     []Option[K, V]

	mu         sync.RWMutex
	inner      *LRU[K, V]
	recoveries atomic.Uint64
}

// NewResilient creates a Resilient cache. Options are reapplied to every
// replacement.
func NewResilient[K comparable, V any](capacity int, opts ...Option[K, V]) (*Resilient[K, V], error) {
	inner, err := New[K, V](capacity, opts...)
	if err != nil {
		return nil, err
	}
	return &Resilient[K, V]{capacity: capacity, opts: opts, inner: inner}, nil
}

func (r *Resilient[K, V]) current() *LRU[K, V] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inner
}

// replace swaps out poisoned unless another caller already did.
func (r *Resilient[K, V]) replace(poisoned *LRU[K, V]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inner != poisoned {
		return
	}
	// capacity was validated by NewResilient.
	r.inner = MustNew[K, V](r.capacity, r.opts...)
	poisoned.discard()
	r.recoveries.Add(1)
	metrics.PoisonedGauge.Dec()
	slog.Warn("lru: poisoned cache replaced (resiliency active)", "capacity", r.capacity, "discarded", poisoned.Len())
}

func (r *Resilient[K, V]) do(fn func(*LRU[K, V]) (V, bool, error)) (V, bool, error) {
	c := r.current()
	v, ok, err := fn(c)
	if errors.Is(err, lruerrors.ErrPoisoned) {
		r.replace(c)
		var zero V
		return zero, false, nil
	}
	return v, ok, err
}

// Get implements LRU.Get.
func (r *Resilient[K, V]) Get(key K) (V, bool, error) {
	return r.do(func(c *LRU[K, V]) (V, bool, error) { return c.Get(key) })
}

// Put implements LRU.Put. A put that hits a poisoned cache is retried once
// on the replacement so the value is not dropped.
func (r *Resilient[K, V]) Put(key K, value V) (V, bool, error) {
	c := r.current()
	prev, ok, err := c.Put(key, value)
	if errors.Is(err, lruerrors.ErrPoisoned) {
		r.replace(c)
		return r.current().Put(key, value)
	}
	return prev, ok, err
}

// PeekMRU implements LRU.PeekMRU.
func (r *Resilient[K, V]) PeekMRU() (V, bool, error) {
	return r.do((*LRU[K, V]).PeekMRU)
}

// PeekLRU implements LRU.PeekLRU.
func (r *Resilient[K, V]) PeekLRU() (V, bool, error) {
	return r.do((*LRU[K, V]).PeekLRU)
}

// PopMRU implements LRU.PopMRU.
func (r *Resilient[K, V]) PopMRU() (V, bool, error) {
	return r.do((*LRU[K, V]).PopMRU)
}

// PopLRU implements LRU.PopLRU.
func (r *Resilient[K, V]) PopLRU() (V, bool, error) {
	return r.do((*LRU[K, V]).PopLRU)
}

// Len returns the number of entries held by the current cache.
func (r *Resilient[K, V]) Len() int { return r.current().Len() }

// Recoveries returns how many poisoned caches have been replaced.
func (r *Resilient[K, V]) Recoveries() uint64 { return r.recoveries.Load() }
