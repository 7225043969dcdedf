// Package config loads the YAML configuration shared by the gb-* binaries.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Bit-rate units for attacker bandwidth values.
const (
	Kibibit = uint64(1024)
	Mebibit = 1024 * Kibibit
	Gibibit = 1024 * Mebibit
	Tebibit = 1024 * Gibibit
)

// StoreConfig holds the connection settings for the aggregated traffic store.
// MaxOpenConns bounds real fetch parallelism regardless of how many
// evaluation tasks are in flight.
type StoreConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Database     string `yaml:"database"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// GridConfig defines the parameter grid swept by the orchestrator. Empty
// dimensions fall back to the published defaults.
type GridConfig struct {
	TrainLengths     []int     `yaml:"train_lengths"`
	TestLengths      []int     `yaml:"test_lengths"`
	MinActivePeriods []int     `yaml:"min_active_periods"`
	MinPktsAvg       []int     `yaml:"min_pkts_avg"`
	LowPassFilters   []int     `yaml:"low_pass_filters"`
	AboveTrainLimits []float64 `yaml:"above_train_limits"`
	// AttackerBitsPerSecond lists the simulated attack bandwidths.
	AttackerBitsPerSecond []uint64 `yaml:"attacker_bits_per_second"`
	// TotalIntervals is the number of available time intervals in the store.
	TotalIntervals int `yaml:"total_intervals"`
	// MaxConcurrent caps the number of in-flight evaluation tasks. It is
	// sized well above the store connection pool so the pool stays
	// saturated while memory use stays bounded.
	MaxConcurrent int `yaml:"max_concurrent"`
	// BestTrainLengths gives the best known training length per location,
	// used instead of the full train sweep when simulating evasion.
	BestTrainLengths map[string]int `yaml:"best_train_lengths"`
}

// OutputConfig controls where result files are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// ProgressConfig enables optional NATS progress events. Publishing is off
// when URL is empty.
type ProgressConfig struct {
	NATSURL  string `yaml:"nats_url"`
	Subject  string `yaml:"subject"`
	Interval string `yaml:"interval"`
}

// SMTPConfig enables optional mail notification on batch completion or
// failure. Notification is off when Host is empty.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// APIConfig configures the result-serving HTTP API.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Grid     GridConfig     `yaml:"grid"`
	Output   OutputConfig   `yaml:"output"`
	Progress ProgressConfig `yaml:"progress"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	API      APIConfig      `yaml:"api"`
}

// LoadConfig reads the configuration from a YAML file, applies defaults, and
// validates the grid.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	g := &c.Grid
	if len(g.TrainLengths) == 0 {
		g.TrainLengths = []int{1, 2, 4, 8, 12, 24, 25, 48, 49, 72, 73}
	}
	if len(g.TestLengths) == 0 {
		g.TestLengths = []int{8, 24, 72}
	}
	if len(g.MinActivePeriods) == 0 {
		g.MinActivePeriods = []int{1, 4, 8, 12}
	}
	if len(g.MinPktsAvg) == 0 {
		g.MinPktsAvg = []int{64, 128, 256}
	}
	if len(g.LowPassFilters) == 0 {
		g.LowPassFilters = []int{128, 512, 2048, 8192}
	}
	if len(g.AboveTrainLimits) == 0 {
		g.AboveTrainLimits = []float64{1.0, 2.0, 4.0}
	}
	if len(g.AttackerBitsPerSecond) == 0 {
		g.AttackerBitsPerSecond = []uint64{40 * Gibibit, 100 * Tebibit}
	}
	if g.TotalIntervals == 0 {
		g.TotalIntervals = 648
	}
	if g.MaxConcurrent == 0 {
		g.MaxConcurrent = 800
	}
	if c.Store.MaxOpenConns == 0 {
		c.Store.MaxOpenConns = 80
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	if c.Progress.Subject == "" {
		c.Progress.Subject = "guardbench.gridsearch"
	}
	if c.Progress.Interval == "" {
		c.Progress.Interval = "1s"
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
}

func (c *Config) validate() error {
	g := c.Grid
	if g.TotalIntervals < 1 {
		return fmt.Errorf("grid.total_intervals must be positive, got %d", g.TotalIntervals)
	}
	if g.MaxConcurrent < 1 {
		return fmt.Errorf("grid.max_concurrent must be positive, got %d", g.MaxConcurrent)
	}
	for _, v := range append(append([]int{}, g.TrainLengths...), g.TestLengths...) {
		if v < 1 {
			return fmt.Errorf("grid window lengths must be positive, got %d", v)
		}
	}
	if _, err := time.ParseDuration(c.Progress.Interval); err != nil {
		return fmt.Errorf("invalid progress.interval: %w", err)
	}
	return nil
}

// ProgressInterval returns the parsed progress reporting cadence.
func (c *Config) ProgressInterval() time.Duration {
	d, err := time.ParseDuration(c.Progress.Interval)
	if err != nil {
		// validate() already rejected unparseable values.
		return time.Second
	}
	return d
}

// WindowLengths returns the union of training and test window lengths; the
// window cache prefetches every one of them.
func (c *Config) WindowLengths() []int {
	seen := make(map[int]struct{})
	var lengths []int
	for _, v := range c.Grid.TrainLengths {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			lengths = append(lengths, v)
		}
	}
	for _, v := range c.Grid.TestLengths {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			lengths = append(lengths, v)
		}
	}
	return lengths
}
