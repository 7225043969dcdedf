// Package evasion reduces persisted grid-search result files, grouped by the
// evasion-IP count encoded in their directory names, into averaged detection
// summaries.
package evasion

import (
	"GuardBench/internal/model"
	"GuardBench/internal/netkey"
	"GuardBench/internal/results"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// AlgorithmParameters identifies one detector configuration across window
// starts: a DataConfiguration with the window position stripped and the
// attack bandwidth added.
type AlgorithmParameters struct {
	Location        string       `json:"location"`
	DstNetwork      netip.Prefix `json:"iprange_dst"`
	TrainLength     int          `json:"train_length"`
	TestLength      int          `json:"test_length"`
	MinActive       int          `json:"min_active"`
	MinPktsAvg      int          `json:"min_pkts_avg"`
	LowPass         int          `json:"low_pass"`
	AboveTrainLimit int          `json:"above_train_limit"`
	AttackBandwidth uint64       `json:"attack_bandwidth"`
}

// Summary is one flattened output record: the false-positive rate and the
// attack traffic that evaded detection, averaged across every window start
// of one parameter combination.
type Summary struct {
	Location      string              `json:"location"`
	DstNetwork    netip.Prefix        `json:"iprange_dst"`
	EvasionIPs    int                 `json:"evasion_ips"`
	FPR           float64             `json:"fpr"`
	AttackTraffic float64             `json:"attack_traffic"`
	Params        AlgorithmParameters `json:"params"`
}

// Aggregate walks basedir/configuration for result files. Each file's parent
// directory name must end in "-{N}ips", N being the evasion-IP count of that
// run. Results for the same parameters are averaged across their contiguous
// run of window starts.
func Aggregate(basedir, configuration string) ([]Summary, error) {
	root := filepath.Join(basedir, configuration)

	grouped := make(map[int]map[AlgorithmParameters][]*model.EvaluationResults)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		_, _, bps, ok := results.ParseFileName(d.Name())
		if !ok {
			return nil
		}
		evasionIPs, err := evasionCount(filepath.Dir(path))
		if err != nil {
			return err
		}

		pairs, err := results.Read(path)
		if err != nil {
			return err
		}
		perParams, ok := grouped[evasionIPs]
		if !ok {
			perParams = make(map[AlgorithmParameters][]*model.EvaluationResults)
			grouped[evasionIPs] = perParams
		}
		for _, pair := range pairs {
			params := AlgorithmParameters{
				Location:        pair.Config.Location,
				DstNetwork:      pair.Config.DstNetwork,
				TrainLength:     pair.Config.TrainLength,
				TestLength:      pair.Config.TestLength,
				MinActive:       pair.Config.MinActive,
				MinPktsAvg:      pair.Config.MinPktsAvg,
				LowPass:         pair.Config.LowPass,
				AboveTrainLimit: int(math.Round(pair.Config.AboveTrainLimit)),
				AttackBandwidth: bps,
			}
			series := perParams[params]
			for len(series) < pair.Config.WindowStart {
				series = append(series, nil)
			}
			res := pair.Results
			series[pair.Config.WindowStart-1] = &res
			perParams[params] = series
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk result files under %s: %w", root, err)
	}

	var summaries []Summary
	for evasionIPs, perParams := range grouped {
		for params, series := range perParams {
			var fprSum, attackSum float64
			for start, res := range series {
				if res == nil {
					return nil, fmt.Errorf("missing result for window_start %d of %s %s (evasion %d)",
						start+1, params.Location, params.DstNetwork, evasionIPs)
				}
				fprSum += res.FPR()
				attackSum += res.FalseNegatives
			}
			n := float64(len(series))
			summaries = append(summaries, Summary{
				Location:      params.Location,
				DstNetwork:    params.DstNetwork,
				EvasionIPs:    evasionIPs,
				FPR:           fprSum / n,
				AttackTraffic: attackSum / n,
				Params:        params,
			})
		}
	}
	sortSummaries(summaries)
	return summaries, nil
}

// evasionCount extracts N from a directory name ending in "-{N}ips".
func evasionCount(dir string) (int, error) {
	name := filepath.Base(dir)
	trimmed, ok := strings.CutSuffix(name, "ips")
	if !ok {
		return 0, fmt.Errorf("result directory %q does not end with 'ips'", name)
	}
	idx := strings.LastIndexByte(trimmed, '-')
	n, err := strconv.Atoi(trimmed[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("result directory %q does not encode an evasion-IP count: %w", name, err)
	}
	return n, nil
}

// SummaryFileName names the output file for one aggregation run.
func SummaryFileName(configuration, extra string) string {
	if extra != "" {
		extra = "_" + extra
	}
	return fmt.Sprintf("results_evasion_%s%s.json", configuration, extra)
}

// WriteSummaries persists the flattened summary records as one JSON array.
func WriteSummaries(path string, summaries []Summary) error {
	data, err := json.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("failed to encode evasion summaries: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write evasion summary file %s: %w", path, err)
	}
	return nil
}

// sortSummaries gives the output a stable order: by evasion-IP count, then
// by parameters.
func sortSummaries(summaries []Summary) {
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.EvasionIPs != b.EvasionIPs {
			return a.EvasionIPs < b.EvasionIPs
		}
		return compareParams(a.Params, b.Params) < 0
	})
}

func compareParams(a, b AlgorithmParameters) int {
	if a.Location != b.Location {
		return strings.Compare(a.Location, b.Location)
	}
	if c := netkey.Compare(a.DstNetwork, b.DstNetwork); c != 0 {
		return c
	}
	ints := [][2]int{
		{a.TrainLength, b.TrainLength},
		{a.TestLength, b.TestLength},
		{a.MinActive, b.MinActive},
		{a.MinPktsAvg, b.MinPktsAvg},
		{a.LowPass, b.LowPass},
		{a.AboveTrainLimit, b.AboveTrainLimit},
	}
	for _, p := range ints {
		if p[0] != p[1] {
			if p[0] < p[1] {
				return -1
			}
			return 1
		}
	}
	switch {
	case a.AttackBandwidth < b.AttackBandwidth:
		return -1
	case a.AttackBandwidth > b.AttackBandwidth:
		return 1
	default:
		return 0
	}
}
