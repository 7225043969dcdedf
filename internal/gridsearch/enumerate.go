package gridsearch

import (
	"GuardBench/internal/attacker"
	"GuardBench/internal/config"
	"GuardBench/internal/model"
	"GuardBench/internal/store"
	"fmt"
)

// enumerateConfigurations expands the parameter grid for one target into the
// full Cartesian product, one explicit loop per dimension:
//
//	training length x test length x minimum active periods (at most the
//	training length) x minimum average packets x low-pass value x
//	above-train multiplier x every window start that keeps both windows
//	inside the available intervals.
//
// When simulating evasion the training dimension collapses to the location's
// best known value: evasion analysis studies one fixed, realistic detector
// configuration rather than a full sweep.
func enumerateConfigurations(grid config.GridConfig, target store.Target, dist *attacker.Distribution, evasion bool) ([]model.DataConfiguration, error) {
	trainLengths := grid.TrainLengths
	if evasion {
		best, ok := grid.BestTrainLengths[target.Location]
		if !ok {
			return nil, fmt.Errorf("no best train length configured for location %s", target.Location)
		}
		trainLengths = []int{best}
	}

	var configs []model.DataConfiguration
	for _, trainLength := range trainLengths {
		for _, testLength := range grid.TestLengths {
			for _, minActive := range grid.MinActivePeriods {
				// A resolver cannot be active in more periods than the
				// training window has.
				if minActive > trainLength {
					continue
				}
				for _, minPktsAvg := range grid.MinPktsAvg {
					for _, lowPass := range grid.LowPassFilters {
						for _, aboveTrainLimit := range grid.AboveTrainLimits {
							for windowStart := 1; windowStart+trainLength+testLength-1 <= grid.TotalIntervals; windowStart++ {
								configs = append(configs, model.DataConfiguration{
									Location:        target.Location,
									DstNetwork:      target.DstNetwork,
									WindowStart:     windowStart,
									TrainLength:     trainLength,
									TestLength:      testLength,
									MinActive:       minActive,
									MinPktsAvg:      minPktsAvg,
									LowPass:         lowPass,
									AboveTrainLimit: aboveTrainLimit,
									Attacker:        dist,
								})
							}
						}
					}
				}
			}
		}
	}
	return configs, nil
}
