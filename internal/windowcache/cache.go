// Package windowcache prefetches every traffic window one (location,
// destination) pass can need and freezes the result for shared, read-only
// use by all evaluation tasks of that pass.
package windowcache

import (
	"GuardBench/internal/netkey"
	"GuardBench/internal/store"
	"context"
	"fmt"
	"net/netip"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Key identifies one traffic window.
type Key struct {
	Start  int
	Length int
}

// Cache maps window keys to sorted per-network traffic entries. After Build
// returns, the cache is immutable; tasks borrow entry slices without copying.
type Cache struct {
	windows map[Key][]netkey.Entry
}

// Build issues one fetch per valid (start, length) combination, all
// concurrently. No explicit cap is applied: the store's own connection pool
// provides the backpressure, which lets tens of thousands of small aggregate
// queries overlap their latency.
func Build(ctx context.Context, st store.Store, location string, dst netip.Prefix, lengths []int, totalIntervals int) (*Cache, error) {
	windows := make(map[Key][]netkey.Entry)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for start := 1; start <= totalIntervals; start++ {
		for _, length := range lengths {
			if start+length-1 > totalIntervals {
				continue
			}
			key := Key{Start: start, Length: length}
			g.Go(func() error {
				entries, err := st.TrafficInterval(ctx, key.Start, key.Length, location, dst)
				if err != nil {
					return err
				}
				mu.Lock()
				windows[key] = entries
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build window cache for %s %s: %w", location, dst, err)
	}
	return &Cache{windows: windows}, nil
}

// Get returns the frozen entries for one window. A miss means the grid
// enumerated a combination the prefetch did not cover, which is an internal
// invariant violation, never a soft failure.
func (c *Cache) Get(start, length int) ([]netkey.Entry, error) {
	entries, ok := c.windows[Key{Start: start, Length: length}]
	if !ok {
		return nil, fmt.Errorf("missing data in window cache for (%d, %d)", start, length)
	}
	return entries, nil
}

// Len returns the number of cached windows.
func (c *Cache) Len() int {
	return len(c.windows)
}
