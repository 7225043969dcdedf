// Package gridsearch drives the full parameter sweep: it enumerates every
// detector configuration for every (location, destination, attack bandwidth)
// combination, evaluates them with bounded concurrency against the shared
// window cache, and persists one result file per batch.
package gridsearch

import (
	"GuardBench/internal/attacker"
	"GuardBench/internal/classify"
	"GuardBench/internal/config"
	"GuardBench/internal/mergejoin"
	"GuardBench/internal/model"
	"GuardBench/internal/notification"
	"GuardBench/internal/progress"
	"GuardBench/internal/results"
	"GuardBench/internal/store"
	"GuardBench/internal/windowcache"
	"context"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Orchestrator owns the resources shared across batches: the store handle,
// the run-scoped allowlist fetcher, the attacker inputs, and the optional
// progress and notification sinks.
type Orchestrator struct {
	cfg        *config.Config
	store      store.Store
	allowlists *store.AllowlistFetcher
	weights    map[netip.Addr]float64
	catchment  *attacker.Catchment
	evasionIPs int
	publisher  *progress.Publisher
	notifier   notification.Notifier
}

// New creates an orchestrator. publisher and notifier may be nil.
func New(cfg *config.Config, st store.Store, weights map[netip.Addr]float64, catchment *attacker.Catchment, evasionIPs int, publisher *progress.Publisher, notifier notification.Notifier) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		store:      st,
		allowlists: store.NewAllowlistFetcher(st),
		weights:    weights,
		catchment:  catchment,
		evasionIPs: evasionIPs,
		publisher:  publisher,
		notifier:   notifier,
	}
}

// Run evaluates every batch. A single evaluation failure aborts the run:
// partial, unvalidated results are worse than no results. Files persisted by
// earlier batches are left untouched.
func (o *Orchestrator) Run(ctx context.Context) error {
	targets, err := o.store.Targets(ctx)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("the aggregated store lists no (location, destination) targets")
	}

	locationsPerDst := make(map[netip.Prefix]int)
	for _, t := range targets {
		locationsPerDst[t.DstNetwork]++
	}

	for _, target := range targets {
		for _, bps := range o.cfg.Grid.AttackerBitsPerSecond {
			if err := o.runBatch(ctx, target, bps, locationsPerDst[target.DstNetwork]); err != nil {
				o.notify(
					fmt.Sprintf("grid search failed: %s %s", target.Location, target.DstNetwork),
					err.Error(),
				)
				return err
			}
		}
	}
	return nil
}

// runBatch evaluates one (location, destination, bandwidth) combination and
// writes its result file.
func (o *Orchestrator) runBatch(ctx context.Context, target store.Target, bps uint64, locationsForDst int) error {
	key := results.BatchKey{Location: target.Location, DstNetwork: target.DstNetwork, AttackerBPS: bps}

	dist, err := attacker.NewDistribution(o.weights, bps, o.evasionIPs)
	if err != nil {
		return fmt.Errorf("batch %s %s %dbps: %w", key.Location, key.DstNetwork, key.AttackerBPS, err)
	}
	dist.ApplyCatchment(o.catchment, target.Location, target.DstNetwork, locationsForDst)

	log.Info("fetching window cache", "location", target.Location, "iprange_dst", target.DstNetwork)
	cache, err := windowcache.Build(ctx, o.store, target.Location, target.DstNetwork, o.cfg.WindowLengths(), o.cfg.Grid.TotalIntervals)
	if err != nil {
		return err
	}
	log.Info("window cache ready", "location", target.Location, "iprange_dst", target.DstNetwork, "windows", cache.Len())

	configs, err := enumerateConfigurations(o.cfg.Grid, target, dist, o.evasionIPs > 0)
	if err != nil {
		return err
	}
	log.Info("starting batch",
		"location", target.Location,
		"iprange_dst", target.DstNetwork,
		"attacker_bps", bps,
		"configurations", len(configs),
	)

	pairs := make([]model.Pair, 0, len(configs))
	var mu sync.Mutex
	var completed atomic.Int64
	started := time.Now()

	reporterDone := make(chan struct{})
	var reporterWg sync.WaitGroup
	reporterWg.Add(1)
	go func() {
		defer reporterWg.Done()
		o.report(key, &completed, int64(len(configs)), started, reporterDone)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Grid.MaxConcurrent)
	for _, cfg := range configs {
		g.Go(func() error {
			res, err := o.evaluate(gctx, cfg, cache)
			if err != nil {
				return err
			}
			mu.Lock()
			pairs = append(pairs, model.Pair{Config: cfg, Results: res})
			mu.Unlock()
			completed.Add(1)
			return nil
		})
	}
	err = g.Wait()
	close(reporterDone)
	reporterWg.Wait()

	if err != nil {
		if perr := o.publisher.Publish(progress.Event{
			Kind:        progress.KindBatchFailed,
			Location:    key.Location,
			DstNetwork:  key.DstNetwork,
			AttackerBPS: key.AttackerBPS,
			Completed:   completed.Load(),
			Total:       int64(len(configs)),
			Elapsed:     time.Since(started).Round(time.Second).String(),
			Error:       err.Error(),
		}); perr != nil {
			log.Error("failed to publish batch event", "error", perr)
		}
		return fmt.Errorf("batch %s %s %dbps: %w", key.Location, key.DstNetwork, key.AttackerBPS, err)
	}

	if err := results.Write(o.cfg.Output.Dir, key, pairs); err != nil {
		return err
	}
	elapsed := time.Since(started).Round(time.Second)
	log.Info("batch complete",
		"location", key.Location,
		"iprange_dst", key.DstNetwork,
		"attacker_bps", key.AttackerBPS,
		"configurations", len(pairs),
		"elapsed", elapsed,
	)
	if perr := o.publisher.Publish(progress.Event{
		Kind:        progress.KindBatchComplete,
		Location:    key.Location,
		DstNetwork:  key.DstNetwork,
		AttackerBPS: key.AttackerBPS,
		Completed:   completed.Load(),
		Total:       int64(len(configs)),
		Elapsed:     elapsed.String(),
	}); perr != nil {
		log.Error("failed to publish batch event", "error", perr)
	}
	o.notify(
		fmt.Sprintf("grid search batch complete: %s %s", key.Location, key.DstNetwork),
		fmt.Sprintf("Evaluated %d configurations for %s %s at %d bps in %s.",
			len(pairs), key.Location, key.DstNetwork, key.AttackerBPS, elapsed),
	)
	return nil
}

// evaluate runs one configuration: window lookups, allowlist fetch, evasion
// augmentation, merge-join, classification. Classification itself never
// blocks; the allowlist fetch is the only suspension point.
func (o *Orchestrator) evaluate(ctx context.Context, cfg model.DataConfiguration, cache *windowcache.Cache) (model.EvaluationResults, error) {
	train, err := cache.Get(cfg.WindowStart, cfg.TrainLength)
	if err != nil {
		return model.EvaluationResults{}, err
	}
	test, err := cache.Get(cfg.WindowStart+cfg.TrainLength, cfg.TestLength)
	if err != nil {
		return model.EvaluationResults{}, err
	}

	allowlist, err := o.allowlists.Fetch(ctx, cfg)
	if err != nil {
		return model.EvaluationResults{}, fmt.Errorf("failed to fetch allowlist: %w", err)
	}

	train = classify.AugmentTraining(train, cfg.Attacker.Evasion)

	records, err := mergejoin.Join(cfg.Attacker.Entries, allowlist, train, test)
	if err != nil {
		return model.EvaluationResults{}, err
	}
	return classify.Evaluate(cfg, records)
}

// report logs batch progress at the configured cadence until done closes,
// optionally mirroring each tick to NATS.
func (o *Orchestrator) report(key results.BatchKey, completed *atomic.Int64, total int64, started time.Time, done <-chan struct{}) {
	ticker := time.NewTicker(o.cfg.ProgressInterval())
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c := completed.Load()
			log.Info("batch progress",
				"location", key.Location,
				"iprange_dst", key.DstNetwork,
				"attacker_bps", key.AttackerBPS,
				"completed", c,
				"total", total,
				"elapsed", time.Since(started).Round(time.Second),
			)
			if err := o.publisher.Publish(progress.Event{
				Kind:        progress.KindProgress,
				Location:    key.Location,
				DstNetwork:  key.DstNetwork,
				AttackerBPS: key.AttackerBPS,
				Completed:   c,
				Total:       total,
				Elapsed:     time.Since(started).Round(time.Second).String(),
			}); err != nil {
				log.Error("failed to publish progress event", "error", err)
			}
		}
	}
}

func (o *Orchestrator) notify(subject, body string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Send(subject, body); err != nil {
		log.Error("failed to send notification", "error", err)
	}
}
