package gridsearch

import (
	"GuardBench/internal/attacker"
	"GuardBench/internal/config"
	"GuardBench/internal/store"
	"net/netip"
	"testing"
)

func testGrid() config.GridConfig {
	return config.GridConfig{
		TrainLengths:     []int{2, 8},
		TestLengths:      []int{4},
		MinActivePeriods: []int{1, 4},
		MinPktsAvg:       []int{64},
		LowPassFilters:   []int{128, 512},
		AboveTrainLimits: []float64{2.0},
		TotalIntervals:   20,
		BestTrainLengths: map[string]int{"ams": 8},
	}
}

func testTarget() store.Target {
	return store.Target{Location: "ams", DstNetwork: netip.MustParsePrefix("203.0.113.0/24")}
}

func TestEnumerateConfigurations(t *testing.T) {
	dist := &attacker.Distribution{}
	configs, err := enumerateConfigurations(testGrid(), testTarget(), dist, false)
	if err != nil {
		t.Fatalf("enumerateConfigurations failed: %v", err)
	}

	// train 2: min_active 1 only (4 > 2), 15 window starts, 2 low-pass values.
	// train 8: both min_active values, 9 window starts, 2 low-pass values.
	want := 1*15*2 + 2*9*2
	if len(configs) != want {
		t.Fatalf("expected %d configurations, got %d", want, len(configs))
	}

	for _, cfg := range configs {
		if cfg.MinActive > cfg.TrainLength {
			t.Errorf("min_active %d exceeds train length %d", cfg.MinActive, cfg.TrainLength)
		}
		if last := cfg.WindowStart + cfg.TrainLength + cfg.TestLength - 1; last > 20 {
			t.Errorf("windows reach interval %d past the available 20", last)
		}
		if cfg.Location != "ams" || cfg.Attacker != dist {
			t.Errorf("configuration lost its target or attacker: %+v", cfg)
		}
	}
}

func TestEnumerateConfigurationsEvasion(t *testing.T) {
	configs, err := enumerateConfigurations(testGrid(), testTarget(), &attacker.Distribution{}, true)
	if err != nil {
		t.Fatalf("enumerateConfigurations failed: %v", err)
	}
	for _, cfg := range configs {
		if cfg.TrainLength != 8 {
			t.Fatalf("expected the best train length 8 only, got %d", cfg.TrainLength)
		}
	}
	// Only train 8 remains: both min_active values, 9 starts, 2 low-pass values.
	if want := 2 * 9 * 2; len(configs) != want {
		t.Errorf("expected %d configurations, got %d", want, len(configs))
	}
}

func TestEnumerateConfigurationsEvasionMissingBest(t *testing.T) {
	grid := testGrid()
	grid.BestTrainLengths = nil
	if _, err := enumerateConfigurations(grid, testTarget(), &attacker.Distribution{}, true); err == nil {
		t.Error("expected an error without a best train length for the location")
	}
}
