package spfaudit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds analyzer settings loaded from a YAML file.
type Config struct {
	// Nameservers is a list of DNS servers to query (e.g., "8.8.8.8:53").
	// If empty, the system resolver configuration is used.
	Nameservers []string `yaml:"nameservers"`

	// DNSSEC enables the DO bit on queries.
	DNSSEC bool `yaml:"dnssec"`

	// Retries is the number of retries for failed DNS queries.
	Retries int `yaml:"retries"`

	// TimeoutSeconds bounds a whole analysis run. Default is 10.
	TimeoutSeconds int `yaml:"timeoutSeconds"`

	// MaxLookups overrides the DNS lookup budget, typically 10 for SPF.
	MaxLookups int `yaml:"maxLookups"`
}

// LoadConfig reads and unmarshals the configuration from the specified
// YAML file path, applying defaults for missing values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file %s: %w", path, err)
	}

	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = int(DefaultTimeout / time.Second)
	}
	if cfg.MaxLookups == 0 {
		cfg.MaxLookups = 10
	}

	return &cfg, nil
}

// NewFromConfig creates a Builder pre-populated from the configuration.
// Further builder calls, e.g. Logger, can still be chained before Build.
func NewFromConfig(cfg *Config) *Builder {
	b := New()
	if cfg == nil {
		return b
	}
	if len(cfg.Nameservers) > 0 {
		b.Nameservers(cfg.Nameservers...)
	}
	if cfg.DNSSEC {
		b.DNSSEC()
	}
	if cfg.Retries > 0 {
		b.Retries(cfg.Retries)
	}
	if cfg.TimeoutSeconds > 0 {
		b.Timeout(time.Duration(cfg.TimeoutSeconds) * time.Second)
	}
	if cfg.MaxLookups > 0 {
		b.MaxLookups(cfg.MaxLookups)
	}
	return b
}
