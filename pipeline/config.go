package pipeline

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "90s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds the processor bounds. Zero values keep each processor's
// default behavior.
type Config struct {
	// MaxMessages caps the conversation transcript. 0 leaves it uncapped.
	MaxMessages int `yaml:"max_messages"`
	// MaxCostHistory caps the spend ledger history. 0 leaves it uncapped;
	// per-model aggregates keep counting either way.
	MaxCostHistory int `yaml:"max_cost_history"`
	// MaxTaggingEvents bounds the rolling tagging-run log.
	MaxTaggingEvents int `yaml:"max_tagging_events"`
	// MaxAnalysisEvents bounds the rolling analysis-run log.
	MaxAnalysisEvents int `yaml:"max_analysis_events"`
	// BareRequestTTL expires the loading state of requests that opened
	// outside a task and never finished. 0 keeps them until reset.
	BareRequestTTL Duration `yaml:"bare_request_ttl"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{}
}

// LoadConfig loads a pipeline config file.
// Returns the default config if the file doesn't exist.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return config, nil
}
