package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/mirkobrombin/go-lru/v1/cache"
	"github.com/mirkobrombin/go-lru/v1/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	traceOps    = flag.Bool("trace", false, "Print OpenTelemetry spans to stdout")
	metricsAddr = flag.String("metrics-addr", "", "Serve /metrics on this address after the demo, e.g. :2112")
)

func main() {
	flag.Parse()
	ctx := context.Background()

	var opts []cache.InMemoryOption[int]
	if *traceOps {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			log.Fatal(err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		defer func() { _ = tp.Shutdown(ctx) }()
		otel.SetTracerProvider(tp)
		opts = append(opts, cache.WithTracing[int]())
	}

	reg := metrics.NewRegistry()
	metrics.RegisterCoreMetrics(reg)
	opts = append(opts,
		cache.WithLatency[int](reg),
		cache.WithLRUOptions[int](cache.WithMetrics[string, int](reg)),
	)

	c, err := cache.NewInMemory[int](2, opts...)
	if err != nil {
		log.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.Put(ctx, "banana", 1)
		c.Put(ctx, "pear", 2)
	}()
	go func() {
		defer wg.Done()
		c.Put(ctx, "apple", 3)
	}()
	wg.Wait()

	for _, k := range []string{"banana", "apple", "pear"} {
		v, ok, err := c.Get(ctx, k)
		switch {
		case err != nil:
			fmt.Printf("%-7s error: %v\n", k+":", err)
		case !ok:
			fmt.Printf("%-7s evicted\n", k+":")
		default:
			fmt.Printf("%-7s %d\n", k+":", v)
		}
	}

	if *metricsAddr != "" {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		log.Printf("serving metrics on %s/metrics", *metricsAddr)
		log.Fatal(http.ListenAndServe(*metricsAddr, nil))
	}
}
