package benchmark

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/validate"
)

// Config is the per-client policy: provider forwarding options, key
// tolerances, re-benchmark triggers and response shaping.
type Config struct {
	MaxLabels            int      `json:"max_labels"`
	MinConfidence        float64  `json:"min_confidence"`
	DeltaLabels          int      `json:"delta_labels"`
	DeltaConfidence      float64  `json:"delta_confidence"`
	Severity             string   `json:"severity"`
	ExpectedLabels       []string `json:"expected_labels,omitempty"`
	TriggerOnSchedule    string   `json:"trigger_on_schedule"`
	TriggerOnFailCount   int      `json:"trigger_on_failcount"`
	BenchmarkCallbackURI string   `json:"benchmark_callback_uri,omitempty"`
	WarningCallbackURI   string   `json:"warning_callback_uri,omitempty"`
	Autobenchmark        bool     `json:"autobenchmark"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxLabels:          100,
		MinConfidence:      0.50,
		DeltaLabels:        5,
		DeltaConfidence:    0.01,
		Severity:           models.SeverityInfo,
		TriggerOnSchedule:  "0 0 * * 0",
		TriggerOnFailCount: 0,
		Autobenchmark:      true,
	}
}

// Validate checks a config against the closed severity set and the
// cron, URI and range constraints.
func (c *Config) Validate() error {
	if c.MaxLabels <= 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "max_labels must be a positive integer")
	}
	if !validate.IsUnitInterval(c.MinConfidence) {
		return httperror.NewHTTPError(http.StatusBadRequest, "min_confidence must lie in [0, 1]")
	}
	if c.DeltaLabels < 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "delta_labels must not be negative")
	}
	if !validate.IsUnitInterval(c.DeltaConfidence) {
		return httperror.NewHTTPError(http.StatusBadRequest, "delta_confidence must lie in [0, 1]")
	}
	if !models.IsKnownSeverity(c.Severity) {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown severity %q", c.Severity)
	}
	if !validate.IsCronLine(c.TriggerOnSchedule) {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "trigger_on_schedule %q is not a cron line", c.TriggerOnSchedule)
	}
	if c.TriggerOnFailCount < 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "trigger_on_failcount must not be negative")
	}
	if c.BenchmarkCallbackURI != "" && !validate.IsAbsoluteURI(c.BenchmarkCallbackURI) {
		return httperror.NewHTTPError(http.StatusBadRequest, "benchmark_callback_uri must be an absolute URI")
	}
	if c.WarningCallbackURI != "" && !validate.IsAbsoluteURI(c.WarningCallbackURI) {
		return httperror.NewHTTPError(http.StatusBadRequest, "warning_callback_uri must be an absolute URI")
	}
	if c.Severity == models.SeverityWarning && c.WarningCallbackURI == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "warning_callback_uri is required when severity is warning")
	}
	return nil
}
