package bench

import (
	"context"
	"errors"

	"github.com/dgraph-io/ristretto"
	"github.com/mirkobrombin/go-lru/v1/cache"
	redis "github.com/redis/go-redis/v9"
)

// Target is a key/value store driven by Run.
type Target interface {
	Name() string
	// Get reports whether key was found.
	Get(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key, value string) error
	Close() error
}

// Peeker is implemented by targets that can read their most recently used
// entry without reordering.
type Peeker interface {
	PeekMRU(ctx context.Context) (bool, error)
}

// Flusher is implemented by targets that apply writes asynchronously. Run
// flushes after prefilling so the measured phase starts from a settled state.
type Flusher interface {
	Flush()
}

// LRUTarget drives a cache.LRU.
type LRUTarget struct {
	c *cache.LRU[string, string]
}

// NewLRUTarget returns a target backed by a new LRU of the given capacity.
func NewLRUTarget(capacity int, opts ...cache.Option[string, string]) (*LRUTarget, error) {
	c, err := cache.New[string, string](capacity, opts...)
	if err != nil {
		return nil, err
	}
	return &LRUTarget{c: c}, nil
}

func (t *LRUTarget) Name() string { return "lru" }

func (t *LRUTarget) Get(_ context.Context, key string) (bool, error) {
	_, ok, err := t.c.Get(key)
	return ok, err
}

func (t *LRUTarget) Put(_ context.Context, key, value string) error {
	_, _, err := t.c.Put(key, value)
	return err
}

func (t *LRUTarget) PeekMRU(context.Context) (bool, error) {
	_, ok, err := t.c.PeekMRU()
	return ok, err
}

// Cache exposes the driven cache for inspection after a run.
func (t *LRUTarget) Cache() *cache.LRU[string, string] { return t.c }

func (t *LRUTarget) Close() error { return nil }

// RistrettoTarget drives a dgraph-io/ristretto cache bounded to capacity
// entries. Its TinyLFU admission makes eviction approximate.
type RistrettoTarget struct {
	c *ristretto.Cache
}

// NewRistrettoTarget returns a ristretto target where every entry costs 1.
func NewRistrettoTarget(capacity int) (*RistrettoTarget, error) {
	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(capacity) * 10,
		MaxCost:     int64(capacity),
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoTarget{c: rc}, nil
}

func (t *RistrettoTarget) Name() string { return "ristretto" }

func (t *RistrettoTarget) Get(_ context.Context, key string) (bool, error) {
	_, ok := t.c.Get(key)
	return ok, nil
}

func (t *RistrettoTarget) Put(_ context.Context, key, value string) error {
	t.c.Set(key, value, 1)
	return nil
}

func (t *RistrettoTarget) Flush() { t.c.Wait() }

func (t *RistrettoTarget) Close() error {
	t.c.Close()
	return nil
}

// RedisTarget drives a Redis server. Capacity is whatever the server's
// maxmemory policy enforces.
type RedisTarget struct {
	client *redis.Client
	prefix string
}

// NewRedisTarget returns a target storing keys under prefix on client.
// Close closes the client.
func NewRedisTarget(client *redis.Client, prefix string) *RedisTarget {
	return &RedisTarget{client: client, prefix: prefix}
}

func (t *RedisTarget) Name() string { return "redis" }

func (t *RedisTarget) Get(ctx context.Context, key string) (bool, error) {
	err := t.client.Get(ctx, t.prefix+key).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *RedisTarget) Put(ctx context.Context, key, value string) error {
	return t.client.Set(ctx, t.prefix+key, value, 0).Err()
}

func (t *RedisTarget) Close() error { return t.client.Close() }

var (
	_ Target  = (*LRUTarget)(nil)
	_ Peeker  = (*LRUTarget)(nil)
	_ Target  = (*RistrettoTarget)(nil)
	_ Flusher = (*RistrettoTarget)(nil)
	_ Target  = (*RedisTarget)(nil)
)
