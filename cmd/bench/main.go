package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/mirkobrombin/go-lru/v1/bench"
	redis "github.com/redis/go-redis/v9"
)

var (
	threads   = flag.Int("c", 8, "Concurrent goroutines")
	ops       = flag.Int("n", 1000, "Operations per goroutine")
	capacity  = flag.Int("cap", 1000, "Cache capacity, also the prefill size")
	keys      = flag.Int("keys", 2000, "Key space size")
	readPct   = flag.Float64("read", 0.8, "Fraction of Get operations")
	writePct  = flag.Float64("write", 0.2, "Fraction of Put operations; the rest are MRU peeks")
	dist      = flag.String("dist", "uniform", "Key distribution: uniform, zipf")
	seed      = flag.Int64("seed", 1, "Random seed")
	target    = flag.String("target", "all", "Targets: lru, ristretto, redis")
	redisAddr = flag.String("redis-addr", "localhost:6379", "Redis Address")
)

func main() {
	flag.Parse()

	d, err := bench.ParseDistribution(*dist)
	if err != nil {
		log.Fatal(err)
	}
	cfg := bench.Config{
		Threads:      *threads,
		OpsPerThread: *ops,
		Prefill:      *capacity,
		KeySpace:     *keys,
		ReadRatio:    *readPct,
		WriteRatio:   *writePct,
		Distribution: d,
		Seed:         *seed,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	targets := strings.Split(*target, ",")
	if *target == "all" {
		targets = []string{"lru", "ristretto", "redis"}
	}

	fmt.Printf("| %-10s | %-12s | %-12s | %-12s | %-9s | %-36s |\n", "System", "Ops/sec", "Avg Latency", "P99 Latency", "Hit Ratio", "Run")
	fmt.Println("|:---|:---|:---|:---|:---|:---|")

	for _, t := range targets {
		runBenchmark(strings.TrimSpace(t), cfg)
	}
}

func newTarget(name string) (bench.Target, error) {
	switch name {
	case "lru":
		return bench.NewLRUTarget(*capacity)
	case "ristretto":
		return bench.NewRistrettoTarget(*capacity)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: *redisAddr})
		return bench.NewRedisTarget(client, "lru-bench:"), nil
	}
	return nil, fmt.Errorf("unknown target %q", name)
}

func runBenchmark(name string, cfg bench.Config) {
	t, err := newTarget(name)
	if err != nil {
		log.Printf("%s: %v", name, err)
		return
	}
	defer t.Close()

	// Only the LRU can serve MRU peeks; other systems get the peek share as writes.
	if _, ok := t.(bench.Peeker); !ok {
		cfg.WriteRatio = 1 - cfg.ReadRatio
	}

	res, err := bench.Run(context.Background(), t, cfg)
	if err != nil {
		fmt.Printf("| %-10s | %-12s | %-12s | %-12s | %-9s | %-36s |\n", name, "ERROR", "-", "-", "-", err)
		return
	}
	if res.Errors == res.Ops {
		// Most likely no server behind the target.
		fmt.Printf("| %-10s | %-12s | %-12s | %-12s | %-9s | %-36s |\n", name, "FAIL", "-", "-", "-", res.RunID)
		return
	}
	fmt.Printf("| %-10s | %-12.0f | %-12s | %-12s | %-9.3f | %-36s |\n",
		name, res.Throughput, res.AvgLatency, res.P99Latency, res.HitRatio(), res.RunID)
}
