package store

import (
	"GuardBench/internal/model"
	"context"
	"net/netip"
	"sync"

	"github.com/charmbracelet/log"
)

// warnKey deduplicates missing-allowlist warnings. Thousands of nearly
// identical lookups share one (location, destination, window start) triple,
// so warning per triple keeps operator output readable.
type warnKey struct {
	location    string
	dstNetwork  netip.Prefix
	windowStart int
}

// AllowlistFetcher looks up the approved source networks for one exact
// parameter combination. A missing allowlist is an expected condition (some
// parameter regions have no qualifying resolvers) and yields an empty list
// plus a once-per-triple warning. The warn set lives for one orchestrator
// run and is torn down with the fetcher.
type AllowlistFetcher struct {
	store Store

	mu     sync.Mutex
	warned map[warnKey]struct{}
}

// NewAllowlistFetcher wraps a store with run-scoped warning deduplication.
func NewAllowlistFetcher(s Store) *AllowlistFetcher {
	return &AllowlistFetcher{
		store:  s,
		warned: make(map[warnKey]struct{}),
	}
}

// Fetch returns the allowlist for cfg, sorted and normalized. Results are
// never cached across configurations: each tuple's query is distinct enough
// that caching is not attempted.
func (f *AllowlistFetcher) Fetch(ctx context.Context, cfg model.DataConfiguration) ([]netip.Prefix, error) {
	nets, err := f.store.Allowlist(ctx, AllowlistQuery{
		TimeStart:   cfg.WindowStart,
		TrainWindow: cfg.TrainLength,
		MinActive:   cfg.MinActive,
		MinPktsAvg:  cfg.MinPktsAvg,
		Location:    cfg.Location,
		DstNetwork:  cfg.DstNetwork,
	})
	if err != nil {
		return nil, err
	}
	if len(nets) == 0 {
		f.warnOnce(cfg)
	}
	return nets, nil
}

func (f *AllowlistFetcher) warnOnce(cfg model.DataConfiguration) {
	key := warnKey{
		location:    cfg.Location,
		dstNetwork:  cfg.DstNetwork,
		windowStart: cfg.WindowStart,
	}
	f.mu.Lock()
	_, seen := f.warned[key]
	if !seen {
		f.warned[key] = struct{}{}
	}
	f.mu.Unlock()
	if seen {
		return
	}
	log.Warn("no allowlist found",
		"time_start", cfg.WindowStart,
		"train_window", cfg.TrainLength,
		"active_min", cfg.MinActive,
		"pkts_min", cfg.MinPktsAvg,
		"location", cfg.Location,
		"iprange_dst", cfg.DstNetwork,
	)
}
