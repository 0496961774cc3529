// Package bench drives cache targets with synthetic workloads and reports
// throughput, latency and hit ratio.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mirkobrombin/go-lru/v1/dataset"
	"golang.org/x/sync/errgroup"
)

// Distribution selects how keys are drawn from the key space.
type Distribution int

const (
	// Uniform draws every key with the same probability.
	Uniform Distribution = iota
	// Zipf favours low key indices, approximating a hot set.
	Zipf
)

// ParseDistribution maps "uniform" and "zipf" to a Distribution.
func ParseDistribution(s string) (Distribution, error) {
	switch s {
	case "uniform", "":
		return Uniform, nil
	case "zipf":
		return Zipf, nil
	}
	return Uniform, fmt.Errorf("bench: unknown distribution %q", s)
}

func (d Distribution) String() string {
	if d == Zipf {
		return "zipf"
	}
	return "uniform"
}

var (
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("bench: invalid config")
	// ErrNoPeek is returned when the workload has peeks but the target is not a Peeker.
	ErrNoPeek = errors.New("bench: target cannot peek")
)

// Config describes a workload. Prefill item keys are written before
// measuring. Operations not covered by ReadRatio and WriteRatio are MRU peeks.
type Config struct {
	Threads      int
	OpsPerThread int
	Prefill      int
	KeySpace     int
	ReadRatio    float64
	WriteRatio   float64
	Distribution Distribution
	Seed         int64
}

// DefaultConfig mirrors a pre-filled cache of 1000 entries read and written
// by 8 goroutines.
func DefaultConfig() Config {
	return Config{
		Threads:      8,
		OpsPerThread: 1000,
		Prefill:      1000,
		KeySpace:     2000,
		ReadRatio:    0.8,
		WriteRatio:   0.2,
		Distribution: Uniform,
		Seed:         1,
	}
}

// Validate checks the workload parameters.
func (c Config) Validate() error {
	switch {
	case c.Threads <= 0:
		return fmt.Errorf("%w: threads must be positive", ErrInvalidConfig)
	case c.OpsPerThread < 0 || c.Prefill < 0:
		return fmt.Errorf("%w: negative operation count", ErrInvalidConfig)
	case c.KeySpace <= 0:
		return fmt.Errorf("%w: key space must be positive", ErrInvalidConfig)
	case c.ReadRatio < 0 || c.WriteRatio < 0 || c.ReadRatio+c.WriteRatio > 1:
		return fmt.Errorf("%w: ratios must be in [0,1] and sum to at most 1", ErrInvalidConfig)
	}
	return nil
}

func (c Config) peekRatio() float64 { return 1 - c.ReadRatio - c.WriteRatio }

func (c Config) keyPicker(r *rand.Rand) func() int {
	if c.Distribution == Zipf && c.KeySpace > 1 {
		z := rand.NewZipf(r, 1.1, 1, uint64(c.KeySpace-1))
		return func() int { return int(z.Uint64()) }
	}
	return func() int { return r.Intn(c.KeySpace) }
}

// Result summarizes a run.
type Result struct {
	RunID      string
	Target     string
	Threads    int
	Ops        uint64
	Hits       uint64
	Misses     uint64
	Errors     uint64
	Elapsed    time.Duration
	Throughput float64
	AvgLatency time.Duration
	P99Latency time.Duration
}

// HitRatio returns hits over reads, or 0 without reads.
func (r Result) HitRatio() float64 {
	if r.Hits+r.Misses == 0 {
		return 0
	}
	return float64(r.Hits) / float64(r.Hits+r.Misses)
}

// Run prefills t, then starts cfg.Threads workers together and measures every
// operation. Target errors are counted, not returned; Run fails only on an
// invalid config, a failed prefill or a done context.
func Run(ctx context.Context, t Target, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	peeker, canPeek := t.(Peeker)
	if cfg.peekRatio() > 1e-9 && !canPeek {
		return Result{}, fmt.Errorf("%w: %s", ErrNoPeek, t.Name())
	}

	for i := 0; i < cfg.Prefill; i++ {
		if err := t.Put(ctx, dataset.ItemKey(i), dataset.ItemValue(uint32(i))); err != nil {
			return Result{}, fmt.Errorf("bench: prefill %s: %w", t.Name(), err)
		}
	}
	if f, ok := t.(Flusher); ok {
		f.Flush()
	}

	var hits, misses, errs atomic.Uint64
	latencies := make([][]time.Duration, cfg.Threads)
	start := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < cfg.Threads; w++ {
		g.Go(func() error {
			r := rand.New(rand.NewSource(cfg.Seed + int64(w)))
			pick := cfg.keyPicker(r)
			lat := make([]time.Duration, 0, cfg.OpsPerThread)
			<-start
			for i := 0; i < cfg.OpsPerThread; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				key := dataset.ItemKey(pick())
				p := r.Float64()
				began := time.Now()
				var err error
				switch {
				case p < cfg.ReadRatio:
					var ok bool
					if ok, err = t.Get(gctx, key); err == nil {
						if ok {
							hits.Add(1)
						} else {
							misses.Add(1)
						}
					}
				case p < cfg.ReadRatio+cfg.WriteRatio || !canPeek:
					err = t.Put(gctx, key, dataset.ItemValue(uint32(i)))
				default:
					_, err = peeker.PeekMRU(gctx)
				}
				lat = append(lat, time.Since(began))
				if err != nil {
					errs.Add(1)
				}
			}
			latencies[w] = lat
			return nil
		})
	}

	began := time.Now()
	close(start)
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	elapsed := time.Since(began)

	res := Result{
		RunID:   uuid.NewString(),
		Target:  t.Name(),
		Threads: cfg.Threads,
		Hits:    hits.Load(),
		Misses:  misses.Load(),
		Errors:  errs.Load(),
		Elapsed: elapsed,
	}
	res.Ops, res.AvgLatency, res.P99Latency = summarize(latencies)
	if elapsed > 0 {
		res.Throughput = float64(res.Ops) / elapsed.Seconds()
	}
	slog.Debug("bench: run finished", "run", res.RunID, "target", res.Target, "ops", res.Ops, "elapsed", elapsed)
	return res, nil
}

// summarize returns the operation count, mean and 99th percentile latency.
func summarize(perWorker [][]time.Duration) (uint64, time.Duration, time.Duration) {
	var all []time.Duration
	for _, l := range perWorker {
		all = append(all, l...)
	}
	if len(all) == 0 {
		return 0, 0, 0
	}
	var total time.Duration
	for _, l := range all {
		total += l
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	p99Idx := int(float64(len(all)) * 0.99)
	if p99Idx >= len(all) {
		p99Idx = len(all) - 1
	}
	return uint64(len(all)), total / time.Duration(len(all)), all[p99Idx]
}

// MeasureHitRatio prefills t with capacity items and then performs reads
// over a key space of size keys. A read targets a resident key with
// probability hitFraction and a never-written key otherwise.
func MeasureHitRatio(ctx context.Context, t Target, capacity, reads, keys int, hitFraction float64, seed int64) (float64, error) {
	if capacity <= 0 || keys <= capacity || reads <= 0 {
		return 0, fmt.Errorf("%w: need 0 < capacity < keys and reads > 0", ErrInvalidConfig)
	}
	for i := 0; i < capacity; i++ {
		if err := t.Put(ctx, dataset.ItemKey(i), dataset.ItemValue(uint32(i))); err != nil {
			return 0, err
		}
	}
	if f, ok := t.(Flusher); ok {
		f.Flush()
	}
	r := rand.New(rand.NewSource(seed))
	var hits int
	for i := 0; i < reads; i++ {
		lo, hi := 0, capacity
		if r.Float64() >= hitFraction {
			lo, hi = capacity, keys
		}
		ok, err := t.Get(ctx, dataset.ItemKey(lo+r.Intn(hi-lo)))
		if err != nil {
			return 0, err
		}
		if ok {
			hits++
		}
	}
	return float64(hits) / float64(reads), nil
}
