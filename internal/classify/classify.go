// Package classify turns a merged traffic stream and one parameter tuple
// into aggregate true/false positive/negative traffic volumes.
package classify

import (
	"GuardBench/internal/mergejoin"
	"GuardBench/internal/model"
	"GuardBench/internal/netkey"
	"fmt"
	"math"
	"net/netip"
)

// SamplingRate corrects for NetFlow-style 1-in-10 packet sampling. Train and
// test traffic are sampled observations and get scaled; attack traffic is
// synthetic ground truth and does not.
const SamplingRate = 10.0

// AugmentTraining simulates evasion: for every network in the evasion
// subset, the attacker forges enough apparent history to qualify for the
// allowlist, modeled as the largest train-traffic value present in the
// window. The input slice is never mutated; with no evasion networks or no
// observed maximum it is returned as is.
func AugmentTraining(train []netkey.Entry, evasion []netip.Prefix) []netkey.Entry {
	if len(evasion) == 0 || len(train) == 0 {
		return train
	}
	largest := math.Inf(-1)
	for _, e := range train {
		if e.Rate > largest {
			largest = e.Rate
		}
	}
	rates := make(map[netip.Prefix]float64, len(train)+len(evasion))
	for _, e := range train {
		rates[e.Net] = e.Rate
	}
	for _, net := range evasion {
		rates[net] = largest
	}
	return netkey.EntriesFromMap(rates)
}

// Evaluate classifies every merged record against cfg and returns the
// aggregated volumes. The result satisfies the total-consistency invariant
// or an error is returned; any failure here indicates a logic defect and
// must abort the batch.
func Evaluate(cfg model.DataConfiguration, records []mergejoin.Record) (model.EvaluationResults, error) {
	var total, truePositives, trueNegatives, falsePositives, falseNegatives float64

	for _, rec := range records {
		// Nothing observable happened for this network; skipping also
		// avoids dividing by zero below.
		if !rec.HasAttack && !rec.HasTest {
			continue
		}

		attack := rec.Attack
		test := rec.Test * SamplingRate
		train := rec.Train * SamplingRate

		total += attack + test

		attackRatio := attack / (attack + test)

		switch {
		case !rec.Allowed:
			// Not allowlisted: the low-pass budget is split between test
			// and attack traffic in proportion to their volumes, since a
			// network sending both gets a single budget without
			// packet-level attribution.
			lowPass := float64(cfg.LowPass)

			testThreshold := lowPass * (1 - attackRatio)
			if test <= testThreshold {
				trueNegatives += test
			} else {
				trueNegatives += testThreshold
				falsePositives += test - testThreshold
			}

			attackThreshold := lowPass * attackRatio
			if attack <= attackThreshold {
				falseNegatives += attack
			} else {
				falseNegatives += attackThreshold
				truePositives += attack - attackThreshold
			}

		case rec.HasTrain:
			// Allowlisted with history: same proportional split, but the
			// budget scales with the training traffic.
			limit := train * cfg.AboveTrainLimit

			testThreshold := limit * (1 - attackRatio)
			if test <= testThreshold {
				trueNegatives += test
			} else {
				trueNegatives += testThreshold
				falsePositives += test - testThreshold
			}

			attackThreshold := limit * attackRatio
			if attack <= attackThreshold {
				falseNegatives += attack
			} else {
				falseNegatives += attackThreshold
				truePositives += attack - attackThreshold
			}

		default:
			// The allowlist builder only admits networks with training
			// history, so this cannot happen on well-formed inputs.
			return model.EvaluationResults{}, fmt.Errorf(
				"received an allowlist entry for %s but no traffic in the train period", rec.Net)
		}
	}

	results := model.EvaluationResults{
		Total:          total,
		TruePositives:  truePositives,
		TrueNegatives:  trueNegatives,
		FalsePositives: falsePositives,
		FalseNegatives: falseNegatives,
	}
	if err := verify(cfg, results); err != nil {
		return model.EvaluationResults{}, err
	}
	return results, nil
}

// verify enforces the total-consistency self-check: the four accumulators
// must reproduce the total within an absolute tolerance of 2.0 or a relative
// tolerance of 1e-9, and nothing may be NaN.
func verify(cfg model.DataConfiguration, r model.EvaluationResults) error {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"total", r.Total},
		{"true_positives", r.TruePositives},
		{"true_negatives", r.TrueNegatives},
		{"false_positives", r.FalsePositives},
		{"false_negatives", r.FalseNegatives},
	} {
		if math.IsNaN(v.value) {
			return fmt.Errorf("accumulator %s is NaN for %s %s", v.name, cfg.Location, cfg.DstNetwork)
		}
	}

	sum := r.TruePositives + r.TrueNegatives + r.FalsePositives + r.FalseNegatives
	if math.Abs(sum-r.Total) < 2.0 {
		return nil
	}
	if ratio := sum / r.Total; math.Abs(ratio-1) < 1e-9 {
		return nil
	}
	return fmt.Errorf("the total traffic %v differs significantly from the computed total %v for %s %s",
		r.Total, sum, cfg.Location, cfg.DstNetwork)
}
