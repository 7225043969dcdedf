// Package attacker synthesizes the traffic distribution of a simulated
// volumetric attack from a weighted source list, a total bandwidth target,
// and a geographic catchment model.
package attacker

import (
	"GuardBench/internal/netkey"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/netip"
	"os"
)

// BitsPerPacket assumes a 100 byte packet, enough for a 16 byte query name
// and all headers including ethernet overhead.
const BitsPerPacket = 800

// Distribution maps attacker-controlled networks to the synthetic packet
// rate assigned to each of them, plus the subset of networks used for
// evasion. It is built once per (location, destination, bandwidth)
// combination and shared read-only across all parameter evaluations.
type Distribution struct {
	// Entries is sorted in ascending key order; rates are packets per hour.
	Entries []netkey.Entry
	// Evasion holds the networks that forge allowlist history. A subset of
	// the entry keys at selection time, though catchment scaling may later
	// remove an entry without touching this list.
	Evasion []netip.Prefix
}

// NewDistribution spreads an hourly packet budget, derived from the total
// bit rate, across the weighted sources. Each source address is aggregated
// into its containing /24, with contributions to the same network summed.
// The evasion subset is a reservoir sample with a fixed seed so repeated
// runs select the same networks.
func NewDistribution(weights map[netip.Addr]float64, totalBitsPerSecond uint64, evasionIPs int) (*Distribution, error) {
	var totalWeight float64
	for _, w := range weights {
		totalWeight += w
	}

	totalBitsPerHour := float64(totalBitsPerSecond) * 3600
	packetsPerHour := totalBitsPerHour / BitsPerPacket
	packetsPerWeight := packetsPerHour / totalWeight

	rates := make(map[netip.Prefix]float64, len(weights))
	for addr, weight := range weights {
		net, err := netkey.Normalize(netip.PrefixFrom(addr, 24))
		if err != nil {
			return nil, fmt.Errorf("attacker source %s: %w", addr, err)
		}
		rates[net] += packetsPerWeight * weight
	}
	entries := netkey.EntriesFromMap(rates)

	// Seed 0 keeps the evasion subset identical across runs.
	rng := rand.New(rand.NewSource(0))
	var evasion []netip.Prefix
	if evasionIPs > 0 {
		evasion = make([]netip.Prefix, 0, evasionIPs)
		for i, e := range entries {
			if i < evasionIPs {
				evasion = append(evasion, e.Net)
				continue
			}
			if j := rng.Intn(i + 1); j < evasionIPs {
				evasion[j] = e.Net
			}
		}
	}

	return &Distribution{Entries: entries, Evasion: evasion}, nil
}

// ApplyCatchment rescales every attacker network by the traffic fraction the
// catchment model records for (location, dst). Networks whose region knows
// the destination but lists no fraction for this location never reach it and
// are removed. Networks with no usable catchment estimate split their rate
// evenly across all locations serving the destination; the even split is a
// modeling assumption, chosen over full allocation or exclusion.
func (d *Distribution) ApplyCatchment(c *Catchment, location string, dst netip.Prefix, locationsForDst int) {
	if locationsForDst < 1 {
		locationsForDst = 1
	}
	// Without catchment data every network falls into the even-split case.
	if c == nil {
		c = &Catchment{}
	}
	dstAddr := dst.Masked().Addr()

	scaled := d.Entries[:0]
	for _, e := range d.Entries {
		if !e.Net.Addr().Is4() {
			scaled = append(scaled, e)
			continue
		}
		region, ok := c.Lookup(e.Net)
		if !ok {
			// No pre-recorded catchment information for this network.
			e.Rate /= float64(locationsForDst)
			scaled = append(scaled, e)
			continue
		}
		perLocation, ok := region.Fractions[dstAddr]
		if !ok {
			// The region never sent traffic to this destination in the
			// catchment data, so no estimate exists.
			e.Rate /= float64(locationsForDst)
			scaled = append(scaled, e)
			continue
		}
		fraction, ok := perLocation[location]
		if !ok {
			// The destination is known but this location received none of
			// the region's traffic. Drop the source entirely.
			continue
		}
		e.Rate *= fraction
		scaled = append(scaled, e)
	}
	d.Entries = scaled
}

// LoadWeights reads a JSON object mapping source IP addresses to relative
// weights, e.g. {"198.51.100.100": 1.0, "198.51.100.101": 2.0}.
func LoadWeights(path string) (map[netip.Addr]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attacker weight file: %w", err)
	}
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attacker weight file: %w", err)
	}
	weights := make(map[netip.Addr]float64, len(raw))
	for s, w := range raw {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("attacker weight file: %w", err)
		}
		if w < 0 {
			return nil, fmt.Errorf("attacker weight file: negative weight %v for %s", w, addr)
		}
		weights[addr] = w
	}
	return weights, nil
}
