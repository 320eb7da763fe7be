package benchmark

import (
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icvsb/icvsb/pkg/models"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 100, config.MaxLabels)
	assert.Equal(t, 0.50, config.MinConfidence)
	assert.Equal(t, 5, config.DeltaLabels)
	assert.Equal(t, 0.01, config.DeltaConfidence)
	assert.Equal(t, models.SeverityInfo, config.Severity)
	assert.Equal(t, "0 0 * * 0", config.TriggerOnSchedule)
	assert.Equal(t, 0, config.TriggerOnFailCount)
	assert.True(t, config.Autobenchmark)

	assert.NoError(t, config.Validate())
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max_labels", func(c *Config) { c.MaxLabels = 0 }},
		{"min_confidence above one", func(c *Config) { c.MinConfidence = 1.5 }},
		{"negative delta_labels", func(c *Config) { c.DeltaLabels = -1 }},
		{"delta_confidence above one", func(c *Config) { c.DeltaConfidence = 2 }},
		{"unknown severity", func(c *Config) { c.Severity = "panic" }},
		{"bad cron line", func(c *Config) { c.TriggerOnSchedule = "every sunday" }},
		{"negative failcount", func(c *Config) { c.TriggerOnFailCount = -2 }},
		{"relative benchmark callback", func(c *Config) { c.BenchmarkCallbackURI = "/hook" }},
		{"relative warning callback", func(c *Config) { c.WarningCallbackURI = "hook" }},
		{"warning severity without callback", func(c *Config) { c.Severity = models.SeverityWarning }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(&config)

			err := config.Validate()
			require.Error(t, err)
			assert.Equal(t, 400, httperror.GetStatusCode(err))
		})
	}
}

func TestConfigValidateWarningWithCallback(t *testing.T) {
	config := DefaultConfig()
	config.Severity = models.SeverityWarning
	config.WarningCallbackURI = "https://hooks.example/warn"

	assert.NoError(t, config.Validate())
}
