package model

import (
	"encoding/json"
	"math"
	"net/netip"
	"strings"
	"testing"
)

func TestPairJSONRoundTrip(t *testing.T) {
	pair := Pair{
		Config: DataConfiguration{
			Location:        "ams",
			DstNetwork:      netip.MustParsePrefix("203.0.113.0/24"),
			WindowStart:     5,
			TrainLength:     24,
			TestLength:      8,
			MinActive:       4,
			MinPktsAvg:      128,
			LowPass:         512,
			AboveTrainLimit: 2.0,
		},
		Results: EvaluationResults{
			Total:          105,
			TruePositives:  52.4,
			TrueNegatives:  2.4,
			FalsePositives: 2.6,
			FalseNegatives: 47.6,
		},
	}

	data, err := json.Marshal(pair)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "[{") {
		t.Errorf("expected a two-element array, got %s", data)
	}

	var decoded Pair
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Config != pair.Config {
		t.Errorf("configuration changed across the round trip: %+v", decoded.Config)
	}
	if decoded.Results != pair.Results {
		t.Errorf("results changed across the round trip: %+v", decoded.Results)
	}
}

func TestPairRejectsWrongShape(t *testing.T) {
	var pair Pair
	if err := json.Unmarshal([]byte(`{"config": {}}`), &pair); err == nil {
		t.Error("expected an error for a non-array pair")
	}
}

func TestMetrics(t *testing.T) {
	r := EvaluationResults{
		Total:          200,
		TruePositives:  80,
		TrueNegatives:  60,
		FalsePositives: 20,
		FalseNegatives: 40,
	}

	if got, want := r.F1Score(), 2.0*80/(2*80+20+40); math.Abs(got-want) > 1e-12 {
		t.Errorf("F1Score: expected %v, got %v", want, got)
	}
	if got, want := r.FBetaScore(1), r.F1Score(); math.Abs(got-want) > 1e-12 {
		t.Errorf("FBetaScore(1): expected %v, got %v", want, got)
	}
	if got, want := r.FPR(), 20.0/80; math.Abs(got-want) > 1e-12 {
		t.Errorf("FPR: expected %v, got %v", want, got)
	}
	if got, want := r.FNR(), 40.0/120; math.Abs(got-want) > 1e-12 {
		t.Errorf("FNR: expected %v, got %v", want, got)
	}
	tpr := 80.0 / 120
	tnr := 60.0 / 80
	if got, want := r.BalancedAccuracy(), (tpr+tnr)/2; math.Abs(got-want) > 1e-12 {
		t.Errorf("BalancedAccuracy: expected %v, got %v", want, got)
	}
}

func TestAddAndNormalize(t *testing.T) {
	r := EvaluationResults{Total: 100, TruePositives: 50, TrueNegatives: 30, FalsePositives: 10, FalseNegatives: 10}
	r.Add(EvaluationResults{Total: 100, TruePositives: 10, TrueNegatives: 70, FalsePositives: 10, FalseNegatives: 10})

	if r.Total != 200 || r.TruePositives != 60 || r.TrueNegatives != 100 {
		t.Fatalf("unexpected accumulators after Add: %+v", r)
	}

	r.Normalize()
	if r.Total != 1 {
		t.Errorf("expected total 1 after Normalize, got %v", r.Total)
	}
	sum := r.TruePositives + r.TrueNegatives + r.FalsePositives + r.FalseNegatives
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("expected accumulators to sum to 1, got %v", sum)
	}
}
