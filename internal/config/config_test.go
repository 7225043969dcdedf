package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  host: "localhost"
  port: 9000
  database: "guardbench"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if got := len(cfg.Grid.TrainLengths); got != 11 {
		t.Errorf("expected 11 default train lengths, got %d", got)
	}
	if cfg.Grid.TotalIntervals != 648 {
		t.Errorf("expected 648 total intervals, got %d", cfg.Grid.TotalIntervals)
	}
	if cfg.Grid.MaxConcurrent != 800 {
		t.Errorf("expected max_concurrent 800, got %d", cfg.Grid.MaxConcurrent)
	}
	if cfg.Store.MaxOpenConns != 80 {
		t.Errorf("expected max_open_conns 80, got %d", cfg.Store.MaxOpenConns)
	}
	if cfg.Grid.AttackerBitsPerSecond[0] != 40*Gibibit {
		t.Errorf("expected 40 Gib default bandwidth, got %d", cfg.Grid.AttackerBitsPerSecond[0])
	}
	if cfg.ProgressInterval() != time.Second {
		t.Errorf("expected 1s progress interval, got %v", cfg.ProgressInterval())
	}
	if cfg.API.ListenAddr != ":8080" {
		t.Errorf("expected :8080, got %q", cfg.API.ListenAddr)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
grid:
  train_lengths: [2, 4]
  test_lengths: [4]
  total_intervals: 48
  max_concurrent: 16
progress:
  interval: "250ms"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg.Grid.TrainLengths) != 2 || cfg.Grid.TrainLengths[0] != 2 {
		t.Errorf("unexpected train lengths %v", cfg.Grid.TrainLengths)
	}
	if cfg.Grid.TotalIntervals != 48 {
		t.Errorf("expected 48 total intervals, got %d", cfg.Grid.TotalIntervals)
	}
	if cfg.ProgressInterval() != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.ProgressInterval())
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	for name, content := range map[string]string{
		"negative window": "grid:\n  train_lengths: [-1]\n",
		"bad interval":    "progress:\n  interval: \"soon\"\n",
	} {
		path := writeConfig(t, content)
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("%s: expected LoadConfig to fail", name)
		}
	}
}

func TestWindowLengths(t *testing.T) {
	cfg := Config{}
	cfg.Grid.TrainLengths = []int{1, 8, 24}
	cfg.Grid.TestLengths = []int{8, 72}

	lengths := cfg.WindowLengths()
	want := map[int]bool{1: true, 8: true, 24: true, 72: true}
	if len(lengths) != len(want) {
		t.Fatalf("expected %d lengths, got %v", len(want), lengths)
	}
	for _, v := range lengths {
		if !want[v] {
			t.Errorf("unexpected window length %d", v)
		}
	}
}
