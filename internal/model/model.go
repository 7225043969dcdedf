// Package model holds the shared types of the evaluation engine: the
// parameter tuple identifying one detector configuration, the resulting
// confusion-matrix volumes, and the pair format persisted to result files.
package model

import (
	"GuardBench/internal/attacker"
	"encoding/json"
	"fmt"
	"net/netip"
)

// DataConfiguration is one point of the grid search: the detector parameters
// evaluated for a (location, destination) pair at one window position. It is
// constructed by the enumerator, consumed once by the classification engine,
// and afterwards retained only as the result key.
type DataConfiguration struct {
	Location        string       `json:"location"`
	DstNetwork      netip.Prefix `json:"iprange_dst"`
	WindowStart     int          `json:"window_start"`
	TrainLength     int          `json:"train_length"`
	TestLength      int          `json:"test_length"`
	MinActive       int          `json:"min_active"`
	MinPktsAvg      int          `json:"min_pkts_avg"`
	LowPass         int          `json:"low_pass"`
	AboveTrainLimit float64      `json:"above_train_limit"`

	// Attacker is shared read-only across every configuration of one
	// (location, destination, bandwidth) batch and never serialized.
	Attacker *attacker.Distribution `json:"-"`
}

// EvaluationResults accumulates classified traffic volumes for one
// configuration. Total stays within tolerance of the four accumulators'
// sum; the classification engine verifies this before handing the value out,
// after which it is immutable.
type EvaluationResults struct {
	Total          float64 `json:"total"`
	TruePositives  float64 `json:"true_positives"`
	TrueNegatives  float64 `json:"true_negatives"`
	FalsePositives float64 `json:"false_positives"`
	FalseNegatives float64 `json:"false_negatives"`
}

// Add accumulates other into r.
func (r *EvaluationResults) Add(other EvaluationResults) {
	r.Total += other.Total
	r.TruePositives += other.TruePositives
	r.TrueNegatives += other.TrueNegatives
	r.FalsePositives += other.FalsePositives
	r.FalseNegatives += other.FalseNegatives
}

// Normalize scales all accumulators so that Total becomes 1.
func (r *EvaluationResults) Normalize() {
	r.TruePositives /= r.Total
	r.TrueNegatives /= r.Total
	r.FalsePositives /= r.Total
	r.FalseNegatives /= r.Total
	r.Total = 1
}

// F1Score returns the harmonic mean of precision and recall.
func (r EvaluationResults) F1Score() float64 {
	return 2 * r.TruePositives / (2*r.TruePositives + r.FalsePositives + r.FalseNegatives)
}

// FBetaScore weights recall beta times as much as precision.
func (r EvaluationResults) FBetaScore(beta float64) float64 {
	beta2 := beta * beta
	return (1 + beta2) * r.TruePositives /
		((1+beta2)*r.TruePositives + beta2*r.FalsePositives + r.FalseNegatives)
}

// BalancedAccuracy returns (TPR + TNR) / 2.
func (r EvaluationResults) BalancedAccuracy() float64 {
	tpr := r.TruePositives / (r.TruePositives + r.FalseNegatives)
	tnr := r.TrueNegatives / (r.TrueNegatives + r.FalsePositives)
	return (tpr + tnr) / 2
}

// FPR returns the false positive rate.
func (r EvaluationResults) FPR() float64 {
	return r.FalsePositives / (r.FalsePositives + r.TrueNegatives)
}

// FNR returns the false negative rate.
func (r EvaluationResults) FNR() float64 {
	return r.FalseNegatives / (r.FalseNegatives + r.TruePositives)
}

// Pair couples one configuration with its results. Result files are JSON
// arrays of pairs, each pair serialized as a two-element array so existing
// analysis tooling keeps reading them.
type Pair struct {
	Config  DataConfiguration
	Results EvaluationResults
}

// MarshalJSON renders the pair as [config, results].
func (p Pair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Config, p.Results})
}

// UnmarshalJSON reads the [config, results] form.
func (p *Pair) UnmarshalJSON(data []byte) error {
	var parts [2]json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("result pair must be a two-element array: %w", err)
	}
	if err := json.Unmarshal(parts[0], &p.Config); err != nil {
		return fmt.Errorf("result pair configuration: %w", err)
	}
	if err := json.Unmarshal(parts[1], &p.Results); err != nil {
		return fmt.Errorf("result pair results: %w", err)
	}
	return nil
}
