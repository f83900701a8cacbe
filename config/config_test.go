package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/eegprep/epochs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eegprep.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	config := Default()
	require.NoError(t, config.Validate())

	assert.Equal(t, []string{"A01T", "A02T", "A03T", "A04T", "A05T", "A06T", "A07T", "A08T", "A09T"}, config.Subjects)
	assert.Equal(t, 22, config.SignalChannelCount)
	assert.Equal(t, 20, config.ICA.Components)
	assert.Equal(t, int64(97), config.ICA.Seed)
	assert.Equal(t, int64(42), config.Balance.Seed)
	assert.Equal(t, epochs.MotorImagery, config.Classes)
	assert.Equal(t, 150e-6, config.Reject.Signal)
	assert.Equal(t, 250e-6, config.Reject.Artifact)
	assert.Equal(t, 1, config.Workers)
	assert.False(t, config.StrictExit)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `raw_dir: /data/bci/raw
subjects: [A01T, A02E]
workers: 4
strict_exit: true
ica:
  seed: 7
ledger:
  backend: sqlite
  path: /tmp/ledger.db
log:
  level: debug
  json: true
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/bci/raw", config.RawDir)
	assert.Equal(t, "data/processed", config.ProcessedDir)
	assert.Equal(t, []string{"A01T", "A02E"}, config.Subjects)
	assert.Equal(t, 4, config.Workers)
	assert.True(t, config.StrictExit)
	assert.Equal(t, int64(7), config.ICA.Seed)
	assert.Equal(t, 20, config.ICA.Components)
	assert.Equal(t, "sqlite", config.Ledger.Backend)
	assert.Equal(t, "debug", config.Log.Level)
	assert.True(t, config.Log.JSON)

	assert.Equal(t, int64(7), config.DecompositionConfig().Seed)
	assert.Equal(t, 4.0, config.SegmentConfig().TMax)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/eegprep.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	config, err := Load(writeConfig(t, "subjects: [A01T\nworkers: -"))
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"no subjects", func(c *Config) { c.Subjects = nil }, "no subjects"},
		{"duplicate subject", func(c *Config) { c.Subjects = []string{"A01T", "A01T"} }, "duplicate subject"},
		{"unknown layout", func(c *Config) { c.Layout = "biosemi64" }, "unsupported layout"},
		{"inverted band", func(c *Config) { c.Band = BandConfig{Low: 40, High: 1} }, "invalid band"},
		{"too many components", func(c *Config) { c.ICA.Components = 23 }, "exceeds signal_channel_count"},
		{"duplicate code", func(c *Config) { c.Classes = append(c.Classes, epochs.Class{Name: "rest", Code: "769"}) }, "duplicate class code"},
		{"empty window", func(c *Config) { c.Epoch.TMax = 0 }, "epoch.tmax"},
		{"negative workers", func(c *Config) { c.Workers = -2 }, "workers"},
		{"unknown ledger", func(c *Config) { c.Ledger.Backend = "redis" }, "invalid ledger.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_AppliesDefaults(t *testing.T) {
	config := Default()
	config.Workers = 0
	config.Ledger.Backend = ""

	require.NoError(t, config.Validate())
	assert.Equal(t, 1, config.Workers)
	assert.Equal(t, "memory", config.Ledger.Backend)
}
