package results

import (
	"GuardBench/internal/model"
	"net/netip"
	"testing"
)

func TestFileNameRoundTrip(t *testing.T) {
	key := BatchKey{
		Location:    "us_east_1",
		DstNetwork:  netip.MustParsePrefix("203.0.113.0/24"),
		AttackerBPS: 42949672960,
	}

	name := FileName(key)
	if name != "eval_results_us_east_1_203.0.113.0_42949672960bps.json" {
		t.Fatalf("unexpected file name %q", name)
	}

	location, addr, bps, ok := ParseFileName(name)
	if !ok {
		t.Fatalf("ParseFileName rejected %q", name)
	}
	if location != key.Location {
		t.Errorf("expected location %q, got %q", key.Location, location)
	}
	if addr != key.DstNetwork.Addr() {
		t.Errorf("expected address %s, got %s", key.DstNetwork.Addr(), addr)
	}
	if bps != key.AttackerBPS {
		t.Errorf("expected %d bps, got %d", key.AttackerBPS, bps)
	}
}

func TestParseFileNameRejectsForeignNames(t *testing.T) {
	for _, name := range []string{
		"notes.txt",
		"eval_results_ams.json",
		"eval_results_ams_203.0.113.0_800.json",
		"results_evasion_run.json",
	} {
		if _, _, _, ok := ParseFileName(name); ok {
			t.Errorf("ParseFileName accepted %q", name)
		}
	}
}

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	key := BatchKey{
		Location:    "ams",
		DstNetwork:  netip.MustParsePrefix("203.0.113.0/24"),
		AttackerBPS: 800,
	}
	pairs := []model.Pair{
		{
			Config: model.DataConfiguration{
				Location:    "ams",
				DstNetwork:  key.DstNetwork,
				WindowStart: 1,
				TrainLength: 24,
			},
			Results: model.EvaluationResults{Total: 10, TruePositives: 10},
		},
	}

	if err := Write(dir, key, pairs); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := Read(dir + "/" + FileName(key))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 1 || got[0].Config != pairs[0].Config || got[0].Results != pairs[0].Results {
		t.Errorf("round trip changed the pairs: %+v", got)
	}
}
