package mergejoin

import (
	"GuardBench/internal/netkey"
	"math/rand"
	"net/netip"
	"testing"
)

func prefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	if err != nil {
		t.Fatalf("ParsePrefix(%q): %v", s, err)
	}
	return p
}

func TestJoinAllFourSources(t *testing.T) {
	attack := []netkey.Entry{
		{Net: prefix(t, "10.0.0.0/24"), Rate: 100},
		{Net: prefix(t, "10.0.2.0/24"), Rate: 50},
	}
	allowlist := []netip.Prefix{
		prefix(t, "10.0.1.0/24"),
		prefix(t, "10.0.2.0/24"),
	}
	train := []netkey.Entry{
		{Net: prefix(t, "10.0.1.0/24"), Rate: 7},
		{Net: prefix(t, "10.0.3.0/24"), Rate: 3},
	}
	test := []netkey.Entry{
		{Net: prefix(t, "10.0.0.0/24"), Rate: 2},
		{Net: prefix(t, "10.0.4.0/24"), Rate: 9},
	}

	records, err := Join(attack, allowlist, train, test)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	want := []Record{
		{Net: prefix(t, "10.0.0.0/24"), Attack: 100, HasAttack: true, Test: 2, HasTest: true},
		{Net: prefix(t, "10.0.1.0/24"), Allowed: true, Train: 7, HasTrain: true},
		{Net: prefix(t, "10.0.2.0/24"), Attack: 50, HasAttack: true, Allowed: true},
		{Net: prefix(t, "10.0.3.0/24"), Train: 3, HasTrain: true},
		{Net: prefix(t, "10.0.4.0/24"), Test: 9, HasTest: true},
	}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("record %d: expected %+v, got %+v", i, want[i], records[i])
		}
	}
}

func TestJoinEmptyInputs(t *testing.T) {
	records, err := Join(nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestJoinRejectsUnnormalizedInput(t *testing.T) {
	// Host bits set below the mask.
	bad := []netkey.Entry{{Net: netip.MustParsePrefix("10.0.0.1/24"), Rate: 1}}
	if _, err := Join(bad, nil, nil, nil); err == nil {
		t.Error("expected an error for an unnormalized attack network")
	}
	if _, err := Join(nil, nil, bad, nil); err == nil {
		t.Error("expected an error for an unnormalized train network")
	}
}

func TestJoinRejectsUnsortedInput(t *testing.T) {
	unsorted := []netkey.Entry{
		{Net: prefix(t, "10.0.1.0/24"), Rate: 1},
		{Net: prefix(t, "10.0.0.0/24"), Rate: 1},
	}
	if _, err := Join(unsorted, nil, nil, nil); err == nil {
		t.Error("expected an error for unsorted attack networks")
	}
	duplicate := []netip.Prefix{
		prefix(t, "10.0.0.0/24"),
		prefix(t, "10.0.0.0/24"),
	}
	if _, err := Join(nil, duplicate, nil, nil); err == nil {
		t.Error("expected an error for duplicate allowlist networks")
	}
}

// TestJoinMatchesNaiveJoin cross-checks the three-stage merge against a
// straightforward map-based join on random inputs.
func TestJoinMatchesNaiveJoin(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	randomEntries := func() []netkey.Entry {
		rates := make(map[netip.Prefix]float64)
		for i := 0; i < 200; i++ {
			addr := netip.AddrFrom4([4]byte{10, byte(rng.Intn(4)), byte(rng.Intn(64)), 0})
			rates[netip.PrefixFrom(addr, 24)] += rng.Float64() * 100
		}
		return netkey.EntriesFromMap(rates)
	}

	attack := randomEntries()
	train := randomEntries()
	test := randomEntries()
	var allowlist []netip.Prefix
	for _, e := range randomEntries() {
		if rng.Intn(2) == 0 {
			allowlist = append(allowlist, e.Net)
		}
	}

	records, err := Join(attack, allowlist, train, test)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	want := make(map[netip.Prefix]Record)
	get := func(net netip.Prefix) Record {
		if rec, ok := want[net]; ok {
			return rec
		}
		return Record{Net: net}
	}
	for _, e := range attack {
		rec := get(e.Net)
		rec.Attack, rec.HasAttack = e.Rate, true
		want[e.Net] = rec
	}
	for _, net := range allowlist {
		rec := get(net)
		rec.Allowed = true
		want[net] = rec
	}
	for _, e := range train {
		rec := get(e.Net)
		rec.Train, rec.HasTrain = e.Rate, true
		want[e.Net] = rec
	}
	for _, e := range test {
		rec := get(e.Net)
		rec.Test, rec.HasTest = e.Rate, true
		want[e.Net] = rec
	}

	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i, rec := range records {
		if i > 0 && netkey.Compare(records[i-1].Net, rec.Net) >= 0 {
			t.Fatalf("output not in strictly ascending order at index %d (%s)", i, rec.Net)
		}
		expected, ok := want[rec.Net]
		if !ok {
			t.Fatalf("unexpected network %s in output", rec.Net)
		}
		if rec != expected {
			t.Errorf("network %s: expected %+v, got %+v", rec.Net, expected, rec)
		}
	}
}
