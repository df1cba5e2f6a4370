package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"filehash/internal/adapter/cache"
	"filehash/internal/adapter/registry"
	"filehash/internal/adapter/resolver"
	"filehash/internal/domain"
)

func main() {
	chunks := flag.Int("chunks", 2000, "Number of chunks in the synthetic graph")
	fanout := flag.Int("fanout", 4, "Maximum static imports per chunk")
	queries := flag.Int("q", 20000, "Number of preload queries")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	if *chunks < 2 || *fanout < 1 || *queries < 1 {
		fmt.Println("Usage: go run cmd/benchmark/main.go -chunks 2000 -fanout 4 -q 20000")
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(*seed))
	bundle := syntheticBundle(rng, *chunks, *fanout)

	start := time.Now()
	reg := registry.New("assets")
	if _, err := reg.RegisterBundle(bundle); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering bundle: %v\n", err)
		os.Exit(1)
	}
	reg.Freeze()
	registerTime := time.Since(start)

	direct := resolver.New(reg, "")
	cached := cache.NewCachedResolver(direct, cache.NewPreloadCache(*chunks))

	files := make([]string, len(bundle.Entries))
	for i, e := range bundle.Entries {
		files[i] = e.FileName
	}
	order := make([]string, *queries)
	for i := range order {
		order[i] = files[rng.Intn(len(files))]
	}

	fmt.Println("PRELOAD RESOLUTION BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks:   %d (fanout <= %d)\n", *chunks, *fanout)
	fmt.Printf("Queries:  %d\n", *queries)
	fmt.Printf("Register: %s\n", registerTime)
	fmt.Println(strings.Repeat("-", 70))

	totalDeps := 0
	start = time.Now()
	for _, f := range order {
		totalDeps += len(direct.ResolvePreloads(f, nil))
	}
	directTime := time.Since(start)

	start = time.Now()
	for _, f := range order {
		cached.ResolvePreloads(f, nil)
	}
	cachedTime := time.Since(start)

	fmt.Printf("Uncached: %s (%s/query)\n", directTime, directTime/time.Duration(*queries))
	fmt.Printf("Cached:   %s (%s/query)\n", cachedTime, cachedTime/time.Duration(*queries))
	fmt.Printf("Average preload list: %.1f tokens\n", float64(totalDeps)/float64(*queries))
	fmt.Println(strings.Repeat("=", 70))
	if cachedTime > 0 {
		fmt.Printf("Speedup: %.1fx\n", float64(directTime)/float64(cachedTime))
	}
}

// syntheticBundle builds a layered graph with occasional back edges, so
// cycles are exercised too.
func syntheticBundle(rng *rand.Rand, n, fanout int) domain.Bundle {
	name := func(i int) string { return fmt.Sprintf("c%d", i) }
	file := func(i int) string { return fmt.Sprintf("assets/c%d-%08x.js", i, uint32(i)*2654435761) }

	var b domain.Bundle
	for i := 0; i < n; i++ {
		entry := domain.BundleEntry{
			Kind:     domain.KindChunk,
			Name:     name(i),
			FileName: file(i),
			IsEntry:  i < n/100+1,
		}
		for k := rng.Intn(fanout + 1); k > 0; k-- {
			target := i + 1 + rng.Intn(n)
			if rng.Intn(20) == 0 {
				target = rng.Intn(i + 1)
			}
			if target < n {
				entry.Imports = append(entry.Imports, file(target))
			}
		}
		if rng.Intn(5) == 0 {
			entry.ImportedCSS = []string{fmt.Sprintf("assets/c%d-%08x.css", i, i)}
		}
		b.Entries = append(b.Entries, entry)
	}
	return b
}
