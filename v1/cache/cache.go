package cache

import (
	"context"
	"time"

	"github.com/mirkobrombin/go-lru/v1/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-lru/v1/cache")

// Cache defines the context-aware operations of a string keyed LRU cache.
//
// T represents the type of values stored in the cache. Every method returns
// the value, whether one was found, and an error when the context is done or
// the underlying cache cannot serve the call.
type Cache[T any] interface {
	// Get retrieves the value for key and marks it as most recently used.
	Get(ctx context.Context, key string) (T, bool, error)
	// Put stores value for key and returns the value it replaced, if any.
	Put(ctx context.Context, key string, value T) (T, bool, error)
	// PeekMRU returns the most recently used value without reordering.
	PeekMRU(ctx context.Context) (T, bool, error)
	// PeekLRU returns the least recently used value without reordering.
	PeekLRU(ctx context.Context) (T, bool, error)
	// PopMRU removes and returns the most recently used value.
	PopMRU(ctx context.Context) (T, bool, error)
	// PopLRU removes and returns the least recently used value.
	PopLRU(ctx context.Context) (T, bool, error)
}

// InMemoryCache adapts an LRU to the Cache interface, adding context checks,
// optional tracing and a latency histogram.
type InMemoryCache[T any] struct {
	lru *LRU[string, T]

	coreOpts     []Option[string, T]
	latencyHist  prometheus.Histogram
	traceEnabled bool
}

// InMemoryOption configures an InMemoryCache.
type InMemoryOption[T any] func(*InMemoryCache[T])

// WithLRUOptions forwards options to the underlying LRU.
func WithLRUOptions[T any](opts ...Option[string, T]) InMemoryOption[T] {
	return func(c *InMemoryCache[T]) {
		c.coreOpts = append(c.coreOpts, opts...)
	}
}

// WithLatency records operation latency on a histogram registered on reg.
func WithLatency[T any](reg prometheus.Registerer) InMemoryOption[T] {
	return func(c *InMemoryCache[T]) {
		c.latencyHist = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lru_cache_latency_seconds",
			Help:    "Latency of cache operations",
			Buckets: prometheus.DefBuckets,
		}))
	}
}

// WithTracing enables OpenTelemetry tracing for cache operations.
func WithTracing[T any]() InMemoryOption[T] {
	return func(c *InMemoryCache[T]) {
		c.traceEnabled = true
	}
}

// NewInMemory returns a new InMemoryCache holding at most capacity entries.
func NewInMemory[T any](capacity int, opts ...InMemoryOption[T]) (*InMemoryCache[T], error) {
	c := &InMemoryCache[T]{}
	for _, opt := range opts {
		opt(c)
	}
	lru, err := New[string, T](capacity, c.coreOpts...)
	if err != nil {
		return nil, err
	}
	c.lru = lru
	return c, nil
}

// instrument starts a span and a latency timer when enabled. The returned
// function must be called with the operation outcome.
func (c *InMemoryCache[T]) instrument(ctx context.Context, op string) (context.Context, func(found bool, err error)) {
	if !c.traceEnabled && c.latencyHist == nil {
		return ctx, func(bool, error) {}
	}
	var span trace.Span
	if c.traceEnabled {
		ctx, span = tracer.Start(ctx, op)
	}
	start := time.Now()
	return ctx, func(found bool, err error) {
		latency := time.Since(start)
		if c.latencyHist != nil {
			c.latencyHist.Observe(latency.Seconds())
		}
		if span == nil {
			return
		}
		result := "miss"
		if found {
			result = "hit"
		}
		span.SetAttributes(
			attribute.String("lru.cache.result", result),
			attribute.Int64("lru.cache.latency_us", latency.Microseconds()),
		)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

// call runs fn unless ctx is already done. Operations rejected by the
// context are not counted.
func (c *InMemoryCache[T]) call(ctx context.Context, op string, counter prometheus.Counter, fn func() (T, bool, error)) (T, bool, error) {
	ctx, done := c.instrument(ctx, op)
	select {
	case <-ctx.Done():
		var zero T
		done(false, ctx.Err())
		return zero, false, ctx.Err()
	default:
	}
	if counter != nil {
		counter.Inc()
	}
	v, ok, err := fn()
	done(ok, err)
	return v, ok, err
}

// Get implements Cache.Get.
func (c *InMemoryCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	return c.call(ctx, "Cache.Get", metrics.GetCounter, func() (T, bool, error) { return c.lru.Get(key) })
}

// Put implements Cache.Put.
func (c *InMemoryCache[T]) Put(ctx context.Context, key string, value T) (T, bool, error) {
	return c.call(ctx, "Cache.Put", metrics.PutCounter, func() (T, bool, error) { return c.lru.Put(key, value) })
}

// PeekMRU implements Cache.PeekMRU.
func (c *InMemoryCache[T]) PeekMRU(ctx context.Context) (T, bool, error) {
	return c.call(ctx, "Cache.PeekMRU", nil, c.lru.PeekMRU)
}

// PeekLRU implements Cache.PeekLRU.
func (c *InMemoryCache[T]) PeekLRU(ctx context.Context) (T, bool, error) {
	return c.call(ctx, "Cache.PeekLRU", nil, c.lru.PeekLRU)
}

// PopMRU implements Cache.PopMRU.
func (c *InMemoryCache[T]) PopMRU(ctx context.Context) (T, bool, error) {
	return c.call(ctx, "Cache.PopMRU", metrics.PopCounter, c.lru.PopMRU)
}

// PopLRU implements Cache.PopLRU.
func (c *InMemoryCache[T]) PopLRU(ctx context.Context) (T, bool, error) {
	return c.call(ctx, "Cache.PopLRU", metrics.PopCounter, c.lru.PopLRU)
}

// Len returns the number of entries held.
func (c *InMemoryCache[T]) Len() int { return c.lru.Len() }

// Metrics returns current metrics for the cache.
func (c *InMemoryCache[T]) Metrics() Stats {
	return c.lru.Stats()
}

var _ Cache[int] = (*InMemoryCache[int])(nil)
