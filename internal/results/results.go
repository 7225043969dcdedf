// Package results persists and reads grid-search result files. One file
// holds every (configuration, results) pair of a single (location,
// destination, attack bandwidth) batch.
package results

import (
	"GuardBench/internal/model"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// BatchKey identifies one result file.
type BatchKey struct {
	Location    string
	DstNetwork  netip.Prefix
	AttackerBPS uint64
}

// FileName encodes the batch key, e.g.
// eval_results_ams_198.51.100.0_42949672960bps.json. Only the destination's
// base address appears in the name.
func FileName(k BatchKey) string {
	return fmt.Sprintf("eval_results_%s_%s_%dbps.json", k.Location, k.DstNetwork.Masked().Addr(), k.AttackerBPS)
}

// ParseFileName recovers the location, destination address, and attack
// bandwidth from a result file name. The location may itself contain
// underscores, so the name is parsed from the right.
func ParseFileName(name string) (location string, dstAddr netip.Addr, bps uint64, ok bool) {
	base := strings.TrimSuffix(filepath.Base(name), ".json")
	if base == filepath.Base(name) {
		return "", netip.Addr{}, 0, false
	}
	base, found := strings.CutPrefix(base, "eval_results_")
	if !found {
		return "", netip.Addr{}, 0, false
	}
	base, found = strings.CutSuffix(base, "bps")
	if !found {
		return "", netip.Addr{}, 0, false
	}
	idx := strings.LastIndexByte(base, '_')
	if idx < 0 {
		return "", netip.Addr{}, 0, false
	}
	bps, err := strconv.ParseUint(base[idx+1:], 10, 64)
	if err != nil {
		return "", netip.Addr{}, 0, false
	}
	base = base[:idx]
	idx = strings.LastIndexByte(base, '_')
	if idx < 0 {
		return "", netip.Addr{}, 0, false
	}
	dstAddr, err = netip.ParseAddr(base[idx+1:])
	if err != nil {
		return "", netip.Addr{}, 0, false
	}
	return base[:idx], dstAddr, bps, true
}

// Write marshals the batch and writes it under dir. The file appears only
// after a successful marshal, so a failed batch never leaves partial output.
func Write(dir string, k BatchKey, pairs []model.Pair) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("failed to encode results for %s %s: %w", k.Location, k.DstNetwork, err)
	}
	path := filepath.Join(dir, FileName(k))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write result file %s: %w", path, err)
	}
	return nil
}

// Read loads one result file.
func Read(path string) ([]model.Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}
	var pairs []model.Pair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("failed to decode result file %s: %w", path, err)
	}
	return pairs, nil
}
