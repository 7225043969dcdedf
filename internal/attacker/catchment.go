package attacker

import (
	"GuardBench/internal/netkey"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"sort"
)

// Region is one catchment area: a run of contiguous network ranges that share
// an observed fraction-of-traffic-per-location profile for each anycast
// destination address.
type Region struct {
	// Ranges is non-empty and sorted by address; together the ranges span
	// the region from Ranges[0] to the last address of the final range.
	Ranges []netip.Prefix
	// Fractions maps destination address -> location -> traffic fraction.
	Fractions map[netip.Addr]map[string]float64
}

// UnmarshalJSON decodes the two-element array form used by the catchment
// file: [["10.0.0.0/8", ...], {"203.0.113.1": {"ams": 0.4}}].
func (r *Region) UnmarshalJSON(data []byte) error {
	var parts [2]json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	var ranges []string
	if err := json.Unmarshal(parts[0], &ranges); err != nil {
		return fmt.Errorf("catchment ranges: %w", err)
	}
	r.Ranges = r.Ranges[:0]
	for _, s := range ranges {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return fmt.Errorf("catchment range %q: %w", s, err)
		}
		p, err = netkey.Normalize(p)
		if err != nil {
			return fmt.Errorf("catchment range %q: %w", s, err)
		}
		r.Ranges = append(r.Ranges, p)
	}
	var fractions map[string]map[string]float64
	if err := json.Unmarshal(parts[1], &fractions); err != nil {
		return fmt.Errorf("catchment fractions: %w", err)
	}
	r.Fractions = make(map[netip.Addr]map[string]float64, len(fractions))
	for s, perLocation := range fractions {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return fmt.Errorf("catchment destination %q: %w", s, err)
		}
		r.Fractions[addr] = perLocation
	}
	return nil
}

// first returns the lowest address of the region.
func (r *Region) first() netip.Addr {
	return r.Ranges[0].Addr()
}

// last returns the highest address of the region.
func (r *Region) last() netip.Addr {
	return netkey.LastAddr(r.Ranges[len(r.Ranges)-1])
}

// Catchment is the ordered, disjoint set of catchment regions.
type Catchment struct {
	regions []Region
}

// NewCatchment validates that every region has at least one range, that each
// region's ranges are sorted, and that the regions themselves are sorted and
// disjoint so that binary search lookups are well defined.
func NewCatchment(regions []Region) (*Catchment, error) {
	for i, region := range regions {
		if len(region.Ranges) == 0 {
			return nil, fmt.Errorf("catchment region %d has no ranges", i)
		}
		for j := 1; j < len(region.Ranges); j++ {
			if netkey.Compare(region.Ranges[j-1], region.Ranges[j]) >= 0 {
				return nil, fmt.Errorf("catchment region %d: ranges not sorted at %s", i, region.Ranges[j])
			}
		}
		if i > 0 && regions[i-1].last().Compare(region.first()) >= 0 {
			return nil, fmt.Errorf("catchment regions overlap or are unsorted at index %d (%s)", i, region.first())
		}
	}
	return &Catchment{regions: regions}, nil
}

// LoadCatchment reads and validates a catchment file: a JSON array of
// two-element [ranges, fractions] arrays.
func LoadCatchment(path string) (*Catchment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catchment file: %w", err)
	}
	var regions []Region
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catchment file: %w", err)
	}
	return NewCatchment(regions)
}

// Lookup finds the region containing net via binary search over the sorted,
// disjoint region spans. It reports a hit for any overlap between net and a
// region span.
func (c *Catchment) Lookup(net netip.Prefix) (*Region, bool) {
	netFirst := net.Masked().Addr()
	netLast := netkey.LastAddr(net)

	idx := sort.Search(len(c.regions), func(i int) bool {
		// First region not entirely below net.
		return c.regions[i].last().Compare(netFirst) >= 0
	})
	if idx == len(c.regions) {
		return nil, false
	}
	if c.regions[idx].first().Compare(netLast) > 0 {
		return nil, false
	}
	return &c.regions[idx], true
}
