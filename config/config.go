package config

import (
	"fmt"
	"os"

	"github.com/Noofbiz/eegprep/balance"
	"github.com/Noofbiz/eegprep/epochs"
	"github.com/Noofbiz/eegprep/ica"
	"gopkg.in/yaml.v3"
)

// Config represents the eegprep.yml batch configuration
type Config struct {
	RawDir             string         `yaml:"raw_dir"`
	ProcessedDir       string         `yaml:"processed_dir"`
	FeaturesDir        string         `yaml:"features_dir"`
	Subjects           []string       `yaml:"subjects"`
	FileExtension      string         `yaml:"file_extension"`
	SignalChannelCount int            `yaml:"signal_channel_count"`
	Layout             string         `yaml:"layout"`
	Band               BandConfig     `yaml:"band"`
	ICA                ICAConfig      `yaml:"ica"`
	Classes            []epochs.Class `yaml:"classes"`
	Epoch              EpochConfig    `yaml:"epoch"`
	Reject             RejectConfig   `yaml:"reject"`
	Balance            BalanceConfig  `yaml:"balance"`
	Workers            int            `yaml:"workers"`
	Ledger             LedgerConfig   `yaml:"ledger"`
	Plots              bool           `yaml:"plots"`
	StrictExit         bool           `yaml:"strict_exit"`
	Log                LogConfig      `yaml:"log"`
}

// BandConfig is the pass band of the signal filter in Hz
type BandConfig struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// ICAConfig controls the artifact decomposition
type ICAConfig struct {
	Components int     `yaml:"components"`
	Seed       int64   `yaml:"seed"`
	MaxIter    int     `yaml:"max_iter"`
	Tolerance  float64 `yaml:"tolerance"`
	Threshold  float64 `yaml:"threshold"` // z-score above which a component is excluded
}

// EpochConfig is the epoch window in seconds relative to each cue
type EpochConfig struct {
	TMin float64 `yaml:"tmin"`
	TMax float64 `yaml:"tmax"`
}

// RejectConfig holds peak amplitude limits in volts
type RejectConfig struct {
	Signal   float64 `yaml:"signal"`
	Artifact float64 `yaml:"artifact"`
}

// BalanceConfig seeds the class balancing sampler
type BalanceConfig struct {
	Seed int64 `yaml:"seed"`
}

// LedgerConfig selects where run outcomes are recorded
type LedgerConfig struct {
	Backend string `yaml:"backend"` // memory or sqlite
	Path    string `yaml:"path"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the baseline batch: nine BCI competition subjects read
// from data/raw with the fixed preprocessing constants.
func Default() *Config {
	icaDefaults := ica.DefaultConfig()
	epochDefaults := epochs.DefaultConfig()
	subjects := make([]string, 9)
	for i := range subjects {
		subjects[i] = fmt.Sprintf("A0%dT", i+1)
	}
	return &Config{
		RawDir:             "data/raw",
		ProcessedDir:       "data/processed",
		FeaturesDir:        "data/features",
		Subjects:           subjects,
		FileExtension:      ".edf",
		SignalChannelCount: 22,
		Layout:             "standard_1020",
		Band:               BandConfig{Low: 1, High: 40},
		ICA: ICAConfig{
			Components: icaDefaults.Components,
			Seed:       icaDefaults.Seed,
			MaxIter:    icaDefaults.MaxIter,
			Tolerance:  icaDefaults.Tolerance,
			Threshold:  ica.DefaultThreshold,
		},
		Classes: append([]epochs.Class(nil), epochDefaults.Classes...),
		Epoch:   EpochConfig{TMin: epochDefaults.TMin, TMax: epochDefaults.TMax},
		Reject:  RejectConfig{Signal: epochDefaults.SignalReject, Artifact: epochDefaults.ArtifactReject},
		Balance: BalanceConfig{Seed: balance.DefaultSeed},
		Workers: 1,
		Ledger:  LedgerConfig{Backend: "memory", Path: "data/ledger.db"},
		Log:     LogConfig{Level: "info"},
	}
}

// Validate performs strict validation on the configuration
func (c *Config) Validate() error {
	if len(c.Subjects) == 0 {
		return fmt.Errorf("no subjects defined")
	}
	seen := make(map[string]bool)
	for _, s := range c.Subjects {
		if s == "" {
			return fmt.Errorf("empty subject identifier")
		}
		if seen[s] {
			return fmt.Errorf("duplicate subject '%s'", s)
		}
		seen[s] = true
	}

	if c.RawDir == "" || c.ProcessedDir == "" || c.FeaturesDir == "" {
		return fmt.Errorf("raw_dir, processed_dir and features_dir are required")
	}
	if c.SignalChannelCount < 1 {
		return fmt.Errorf("signal_channel_count must be >= 1, got %d", c.SignalChannelCount)
	}
	if c.Layout != "standard_1020" {
		return fmt.Errorf("unsupported layout: %s (expected: standard_1020)", c.Layout)
	}
	if c.Band.Low <= 0 || c.Band.High <= c.Band.Low {
		return fmt.Errorf("invalid band [%v, %v] Hz", c.Band.Low, c.Band.High)
	}

	if c.ICA.Components < 1 {
		return fmt.Errorf("ica.components must be >= 1, got %d", c.ICA.Components)
	}
	if c.ICA.Components > c.SignalChannelCount {
		return fmt.Errorf("ica.components (%d) exceeds signal_channel_count (%d)", c.ICA.Components, c.SignalChannelCount)
	}
	if c.ICA.MaxIter < 1 {
		return fmt.Errorf("ica.max_iter must be >= 1, got %d", c.ICA.MaxIter)
	}
	if c.ICA.Tolerance <= 0 || c.ICA.Threshold <= 0 {
		return fmt.Errorf("ica.tolerance and ica.threshold must be positive")
	}

	if len(c.Classes) == 0 {
		return fmt.Errorf("no classes defined")
	}
	codes := make(map[string]bool)
	for _, cl := range c.Classes {
		if cl.Name == "" || cl.Code == "" {
			return fmt.Errorf("class entries need both name and code")
		}
		if codes[cl.Code] {
			return fmt.Errorf("duplicate class code '%s'", cl.Code)
		}
		codes[cl.Code] = true
	}

	if c.Epoch.TMax <= c.Epoch.TMin {
		return fmt.Errorf("epoch.tmax must be greater than epoch.tmin")
	}
	if c.Reject.Signal < 0 || c.Reject.Artifact < 0 {
		return fmt.Errorf("reject thresholds must be >= 0 (0 disables rejection)")
	}

	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}

	switch c.Ledger.Backend {
	case "":
		c.Ledger.Backend = "memory"
	case "memory":
	case "sqlite":
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid ledger.backend: %s (must be 'memory' or 'sqlite')", c.Ledger.Backend)
	}

	return nil
}

// DecompositionConfig returns the ICA settings.
func (c *Config) DecompositionConfig() ica.Config {
	return ica.Config{
		Components: c.ICA.Components,
		Seed:       c.ICA.Seed,
		MaxIter:    c.ICA.MaxIter,
		Tolerance:  c.ICA.Tolerance,
	}
}

// SegmentConfig returns the segmentation settings.
func (c *Config) SegmentConfig() epochs.Config {
	return epochs.Config{
		Classes:        c.Classes,
		TMin:           c.Epoch.TMin,
		TMax:           c.Epoch.TMax,
		SignalReject:   c.Reject.Signal,
		ArtifactReject: c.Reject.Artifact,
	}
}

// Load reads eegprep.yml from path on top of Default and validates it
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}
