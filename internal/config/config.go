package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models prepx.yml.
type Config struct {
	Extractor struct {
		Endpoint      string `yaml:"endpoint"`
		Model         string `yaml:"model"`
		MaxRetries    int    `yaml:"max_retries"`
		TimeoutMs     int    `yaml:"timeout_ms"`
		MinIntervalMs int    `yaml:"min_interval_ms"`
	} `yaml:"extractor"`
	Limits struct {
		MaxModules       int `yaml:"max_modules"`
		MaxModuleTopics  int `yaml:"max_module_topics"`
		MaxScopeTopics   int `yaml:"max_scope_topics"`
		TocPages         int `yaml:"toc_pages"`
		SamplePages      int `yaml:"sample_pages"`
		MaxMapperChars   int `yaml:"max_mapper_chars"`
		WatchdogStallSec int `yaml:"watchdog_stall_sec"`
	} `yaml:"limits"`
	Defaults struct {
		WeekdayHours    float64 `yaml:"weekday_hours"`
		WeekendHours    float64 `yaml:"weekend_hours"`
		ReviewFrequency string  `yaml:"review_frequency"`
	} `yaml:"defaults"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with prepx config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Extractor.Endpoint == "" {
		return fmt.Errorf("config.extractor.endpoint is required")
	}
	if c.Extractor.Model == "" {
		return fmt.Errorf("config.extractor.model is required")
	}
	if c.Extractor.MinIntervalMs < 0 {
		return fmt.Errorf("config.extractor.min_interval_ms must be >= 0")
	}
	if c.Extractor.MaxRetries < 0 {
		return fmt.Errorf("config.extractor.max_retries must be >= 0")
	}
	if c.Limits.MaxModules <= 0 || c.Limits.MaxScopeTopics <= 0 {
		return fmt.Errorf("config.limits caps must be positive")
	}
	if c.Defaults.WeekdayHours <= 0 || c.Defaults.WeekendHours <= 0 {
		return fmt.Errorf("config.defaults hour budgets must be positive")
	}
	switch c.Defaults.ReviewFrequency {
	case "daily", "every_2_days", "weekly":
	default:
		return fmt.Errorf("config.defaults.review_frequency must be daily, every_2_days or weekly")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "prepx.yml")
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `extractor:
  endpoint: http://localhost:11434
  model: extract-v1
  max_retries: 2
  timeout_ms: 60000
  min_interval_ms: 1500

limits:
  max_modules: 10
  max_module_topics: 3
  max_scope_topics: 15
  toc_pages: 15
  sample_pages: 3
  max_mapper_chars: 15000
  watchdog_stall_sec: 300

defaults:
  weekday_hours: 3
  weekend_hours: 6
  review_frequency: every_2_days
`
