package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof"
	"runtime"
	"sync"
	"time"

	"github.com/mirkobrombin/go-lru/v1/cache"
	"github.com/mirkobrombin/go-lru/v1/dataset"
)

var (
	allocMB  = flag.Int("alloc-mb", 1024, "Target memory held by the cache in MB")
	duration = flag.Duration("duration", time.Minute, "Duration of the churn phase")
	procs    = flag.Int("procs", 8, "Number of concurrent goroutines")
)

// LargeObject simulates a heavy payload
type LargeObject struct {
	Data [1024]byte // 1KB
}

func main() {
	flag.Parse()

	go func() {
		log.Println("Starting pprof on :6060")
		log.Println(http.ListenAndServe("localhost:6060", nil))
	}()

	targetBytes := uint64(*allocMB) * 1024 * 1024
	approxEntrySize := uint64(1100)
	capacity := int(targetBytes / approxEntrySize)

	log.Printf("Targeting %d MB (~%d entries)", *allocMB, capacity)

	c, err := cache.NewResilient[string, LargeObject](capacity)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	log.Println("Phase 1: Filling Cache...")
	fillStart := time.Now()
	var wg sync.WaitGroup
	chunkSize := capacity / *procs

	for p := 0; p < *procs; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			start := id * chunkSize
			for i := start; i < start+chunkSize; i++ {
				if _, _, err := c.Put(dataset.ItemKey(i), LargeObject{}); err != nil {
					log.Printf("Put error: %v", err)
				}
				if i%100000 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}
	wg.Wait()
	log.Printf("Filled %d entries in %v. Current Memory:", c.Len(), time.Since(fillStart))
	printMemStats()

	log.Printf("Phase 2: Churning (%v)...", *duration)

	// Keys beyond capacity force evictions; pops keep the free list busy.
	keySpace := capacity * 2
	for p := 0; p < *procs; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				key := dataset.ItemKey(r.Intn(keySpace))
				switch f := r.Float32(); {
				case f < 0.2:
					c.Put(key, LargeObject{})
				case f < 0.22:
					c.PopLRU()
				default:
					c.Get(key)
				}
			}
		}(p)
	}

	monitorTicker := time.NewTicker(5 * time.Second)
	defer monitorTicker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-monitorTicker.C:
				printMemStats()
			}
		}
	}()

	wg.Wait()
	log.Printf("Stress Test Completed. Entries: %d, recoveries: %d", c.Len(), c.Recoveries())
}

func printMemStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Printf("Alloc = %v MiB", m.Alloc/1024/1024)
	fmt.Printf("\tTotalAlloc = %v MiB", m.TotalAlloc/1024/1024)
	fmt.Printf("\tSys = %v MiB", m.Sys/1024/1024)
	fmt.Printf("\tNumGC = %v\n", m.NumGC)
}
