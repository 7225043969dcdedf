// Package mergejoin combines the four network-keyed traffic sources of one
// evaluation (attacker traffic, allowlist, training window, test window)
// into a single stream ordered by network key.
//
// All inputs must arrive sorted and normalized; the join performs no sorting
// of its own and walks each input exactly once, so it runs in linear time
// with constant extra memory per step. Unnormalized keys would silently make
// semantically equal networks distinct, so every input is checked first and
// a violation aborts the evaluation.
package mergejoin

import (
	"GuardBench/internal/netkey"
	"fmt"
	"net/netip"
)

// Record is the joined view of one network across all four sources. The Has*
// flags distinguish absence from a zero rate; Allowed is presence-only.
type Record struct {
	Net netip.Prefix

	Attack    float64
	HasAttack bool

	Allowed bool

	Train    float64
	HasTrain bool

	Test    float64
	HasTest bool
}

// Join merges attacker traffic, the allowlist, and the train and test
// windows into one record per distinct network, in ascending key order.
// It is built as three successive binary merges: attack with allowlist,
// the result with train, that result with test.
func Join(attack []netkey.Entry, allowlist []netip.Prefix, train, test []netkey.Entry) ([]Record, error) {
	if err := checkEntries("attack traffic", attack); err != nil {
		return nil, err
	}
	if err := checkPrefixes("allowlist", allowlist); err != nil {
		return nil, err
	}
	if err := checkEntries("train traffic", train); err != nil {
		return nil, err
	}
	if err := checkEntries("test traffic", test); err != nil {
		return nil, err
	}

	records := joinAttackAllowlist(attack, allowlist)
	records = joinTrain(records, train)
	records = joinTest(records, test)
	return records, nil
}

// checkEntries verifies an input is normalized and strictly ascending. Both
// properties are load-bearing for join correctness; a failure is a
// programming error in the producer, not recoverable data trouble.
func checkEntries(name string, entries []netkey.Entry) error {
	for i, e := range entries {
		if !netkey.IsNormalized(e.Net) {
			return fmt.Errorf("%s network is not normalized: %s", name, e.Net)
		}
		if i > 0 && netkey.Compare(entries[i-1].Net, e.Net) >= 0 {
			return fmt.Errorf("%s networks are not in strictly ascending order at %s", name, e.Net)
		}
	}
	return nil
}

func checkPrefixes(name string, nets []netip.Prefix) error {
	for i, n := range nets {
		if !netkey.IsNormalized(n) {
			return fmt.Errorf("%s network is not normalized: %s", name, n)
		}
		if i > 0 && netkey.Compare(nets[i-1], n) >= 0 {
			return fmt.Errorf("%s networks are not in strictly ascending order at %s", name, n)
		}
	}
	return nil
}

func joinAttackAllowlist(attack []netkey.Entry, allowlist []netip.Prefix) []Record {
	records := make([]Record, 0, len(attack)+len(allowlist))
	i, j := 0, 0
	for i < len(attack) || j < len(allowlist) {
		switch {
		case j == len(allowlist) || (i < len(attack) && netkey.Compare(attack[i].Net, allowlist[j]) < 0):
			records = append(records, Record{Net: attack[i].Net, Attack: attack[i].Rate, HasAttack: true})
			i++
		case i == len(attack) || netkey.Compare(attack[i].Net, allowlist[j]) > 0:
			records = append(records, Record{Net: allowlist[j], Allowed: true})
			j++
		default:
			records = append(records, Record{Net: attack[i].Net, Attack: attack[i].Rate, HasAttack: true, Allowed: true})
			i++
			j++
		}
	}
	return records
}

func joinTrain(records []Record, train []netkey.Entry) []Record {
	merged := make([]Record, 0, len(records)+len(train))
	i, j := 0, 0
	for i < len(records) || j < len(train) {
		switch {
		case j == len(train) || (i < len(records) && netkey.Compare(records[i].Net, train[j].Net) < 0):
			merged = append(merged, records[i])
			i++
		case i == len(records) || netkey.Compare(records[i].Net, train[j].Net) > 0:
			merged = append(merged, Record{Net: train[j].Net, Train: train[j].Rate, HasTrain: true})
			j++
		default:
			rec := records[i]
			rec.Train = train[j].Rate
			rec.HasTrain = true
			merged = append(merged, rec)
			i++
			j++
		}
	}
	return merged
}

func joinTest(records []Record, test []netkey.Entry) []Record {
	merged := make([]Record, 0, len(records)+len(test))
	i, j := 0, 0
	for i < len(records) || j < len(test) {
		switch {
		case j == len(test) || (i < len(records) && netkey.Compare(records[i].Net, test[j].Net) < 0):
			merged = append(merged, records[i])
			i++
		case i == len(records) || netkey.Compare(records[i].Net, test[j].Net) > 0:
			merged = append(merged, Record{Net: test[j].Net, Test: test[j].Rate, HasTest: true})
			j++
		default:
			rec := records[i]
			rec.Test = test[j].Rate
			rec.HasTest = true
			merged = append(merged, rec)
			i++
			j++
		}
	}
	return merged
}
