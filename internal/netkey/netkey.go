// Package netkey defines the canonical network key used to join the traffic
// maps of the evaluation engine. A key is a netip.Prefix whose base address
// has every host bit cleared; two logically equal networks always compare
// equal in this form. Every map or slice handed to the merge-join must be
// built exclusively from normalized keys.
package netkey

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/netip"
	"sort"
)

// Normalize returns the canonical form of a network: the same prefix length
// with every host bit of the base address cleared. It is total over all valid
// prefix lengths, including /0 (the all-zero address) and the full address
// width (identity).
func Normalize(p netip.Prefix) (netip.Prefix, error) {
	if !p.IsValid() {
		return netip.Prefix{}, fmt.Errorf("invalid network key %q", p)
	}
	return p.Masked(), nil
}

// IsNormalized reports whether p is already in canonical form.
func IsNormalized(p netip.Prefix) bool {
	return p.IsValid() && p.Addr() == p.Masked().Addr()
}

// Compare orders two keys by base address, then by prefix length. The result
// is negative, zero, or positive in the usual way.
func Compare(a, b netip.Prefix) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	switch {
	case a.Bits() < b.Bits():
		return -1
	case a.Bits() > b.Bits():
		return 1
	default:
		return 0
	}
}

// LastAddr returns the highest address covered by p (the broadcast address
// for IPv4 networks).
func LastAddr(p netip.Prefix) netip.Addr {
	if p.Addr().Is4() {
		a := p.Masked().Addr().As4()
		v := binary.BigEndian.Uint32(a[:])
		if bits := p.Bits(); bits < 32 {
			// bits == 0 keeps the shift in range and yields the full mask.
			v |= math.MaxUint32 >> bits
		}
		binary.BigEndian.PutUint32(a[:], v)
		return netip.AddrFrom4(a)
	}
	a := p.Masked().Addr().As16()
	for i := p.Bits(); i < 128; i++ {
		a[i/8] |= 1 << (7 - i%8)
	}
	return netip.AddrFrom16(a)
}

// Entry pairs a network key with a traffic rate. Slices of entries are the
// sorted, read-only currency between the store, the window cache, the
// attacker distribution, and the merge-join.
type Entry struct {
	Net  netip.Prefix
	Rate float64
}

// SortEntries sorts entries in ascending key order in place.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return Compare(entries[i].Net, entries[j].Net) < 0
	})
}

// SortPrefixes sorts a key slice in ascending order in place.
func SortPrefixes(nets []netip.Prefix) {
	sort.Slice(nets, func(i, j int) bool {
		return Compare(nets[i], nets[j]) < 0
	})
}

// EntriesFromMap converts a rate map into a sorted entry slice.
func EntriesFromMap(m map[netip.Prefix]float64) []Entry {
	entries := make([]Entry, 0, len(m))
	for net, rate := range m {
		entries = append(entries, Entry{Net: net, Rate: rate})
	}
	SortEntries(entries)
	return entries
}
