package cache

import (
	"context"
	"errors"
	"testing"

	lruerrors "github.com/mirkobrombin/go-lru/v1/errors"
	"github.com/mirkobrombin/go-lru/v1/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newInMemory[T any](t *testing.T, capacity int, opts ...InMemoryOption[T]) (*InMemoryCache[T], context.Context) {
	t.Helper()
	c, err := NewInMemory[T](capacity, opts...)
	if err != nil {
		t.Fatalf("NewInMemory: %v", err)
	}
	return c, context.Background()
}

func TestInMemoryCache(t *testing.T) {
	c, ctx := newInMemory[int](t, 2)

	c.Put(ctx, "banana", 1)
	c.Put(ctx, "pear", 2)
	c.Put(ctx, "apple", 3)

	if _, ok, err := c.Get(ctx, "banana"); ok || err != nil {
		t.Fatalf("expected banana evicted, ok %v err %v", ok, err)
	}
	if v, ok, err := c.Get(ctx, "pear"); !ok || err != nil || v != 2 {
		t.Fatalf("pear: %d ok %v err %v", v, ok, err)
	}
	if v, _, _ := c.PeekMRU(ctx); v != 2 {
		t.Fatalf("pear should be MRU, got %d", v)
	}
	if v, _, _ := c.PeekLRU(ctx); v != 3 {
		t.Fatalf("apple should be LRU, got %d", v)
	}
	if v, ok, _ := c.PopLRU(ctx); !ok || v != 3 {
		t.Fatalf("PopLRU: %d ok %v", v, ok)
	}
	if v, ok, _ := c.PopMRU(ctx); !ok || v != 2 {
		t.Fatalf("PopMRU: %d ok %v", v, ok)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}

	m := c.Metrics()
	if m.Hits != 1 || m.Misses != 1 || m.Evictions != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestInMemoryCacheInvalidCapacity(t *testing.T) {
	if _, err := NewInMemory[string](0); !errors.Is(err, lruerrors.ErrInvalidCapacity) {
		t.Fatalf("expected ErrInvalidCapacity, got %v", err)
	}
}

func TestInMemoryCacheContext(t *testing.T) {
	c, _ := newInMemory[string](t, 4)

	ctxPut, cancelPut := context.WithCancel(context.Background())
	cancelPut()
	if _, _, err := c.Put(ctxPut, "a", "b"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled error, got %v", err)
	}
	if _, ok, err := c.Get(context.Background(), "a"); ok || err != nil {
		t.Fatalf("item should not be stored when context is canceled")
	}

	if _, _, err := c.Put(context.Background(), "foo", "bar"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctxGet, cancelGet := context.WithCancel(context.Background())
	cancelGet()
	if v, ok, err := c.Get(ctxGet, "foo"); !errors.Is(err, context.Canceled) || ok || v != "" {
		t.Fatalf("expected canceled context to prevent retrieval")
	}

	ctxPop, cancelPop := context.WithCancel(context.Background())
	cancelPop()
	if _, _, err := c.PopMRU(ctxPop); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled error, got %v", err)
	}
	if v, ok, err := c.Get(context.Background(), "foo"); err != nil || !ok || v != "bar" {
		t.Fatalf("item should remain after canceled pop")
	}
}

func TestInMemoryCacheTracing(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	c, ctx := newInMemory[string](t, 2, WithTracing[string]())
	c.Put(ctx, "k", "v")
	c.Get(ctx, "k")

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "Cache.Put" || spans[1].Name() != "Cache.Get" {
		t.Fatalf("unexpected span names %q, %q", spans[0].Name(), spans[1].Name())
	}
	var result string
	for _, kv := range spans[1].Attributes() {
		if kv.Key == "lru.cache.result" {
			result = kv.Value.AsString()
		}
	}
	if result != "hit" {
		t.Fatalf("expected hit attribute, got %q", result)
	}
}

func TestInMemoryCacheLatencyAndCoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, ctx := newInMemory[int](t, 1,
		WithLatency[int](reg),
		WithLRUOptions[int](WithMetrics[string, int](reg)),
	)
	c.Put(ctx, "a", 1)
	c.Put(ctx, "b", 2)
	c.Get(ctx, "a")

	if n, err := testutil.GatherAndCount(reg, "lru_cache_latency_seconds"); err != nil || n != 1 {
		t.Fatalf("expected latency histogram, got %d series (err %v)", n, err)
	}
	if got := testutil.ToFloat64(c.lru.evictionCounter); got != 1 {
		t.Fatalf("expected one eviction, got %v", got)
	}
}

func TestInMemoryCacheSkipsCanceledCallsInCoreCounters(t *testing.T) {
	c, ctx := newInMemory[string](t, 2)
	canceled, cancel := context.WithCancel(ctx)
	cancel()

	gets := testutil.ToFloat64(metrics.GetCounter)
	puts := testutil.ToFloat64(metrics.PutCounter)
	pops := testutil.ToFloat64(metrics.PopCounter)

	c.Put(canceled, "a", "1")
	c.Get(canceled, "a")
	c.PopMRU(canceled)
	c.PopLRU(canceled)
	if testutil.ToFloat64(metrics.GetCounter) != gets ||
		testutil.ToFloat64(metrics.PutCounter) != puts ||
		testutil.ToFloat64(metrics.PopCounter) != pops {
		t.Fatal("canceled calls must not be counted")
	}

	c.Put(ctx, "a", "1")
	c.Get(ctx, "a")
	c.PopLRU(ctx)
	if got := testutil.ToFloat64(metrics.GetCounter) - gets; got != 1 {
		t.Fatalf("expected one get, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.PutCounter) - puts; got != 1 {
		t.Fatalf("expected one put, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.PopCounter) - pops; got != 1 {
		t.Fatalf("expected one pop, got %v", got)
	}
}
