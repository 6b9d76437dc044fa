// Package config handles pagecheck configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
	"github.com/hazyhaar/pagecheck/safe"
)

// Config is the top-level pagecheck configuration.
type Config struct {
	// Entry is the HTML entry point, relative to the invocation directory.
	Entry string `yaml:"entry"`

	// ArtifactsDir is the base for relative screenshot paths.
	ArtifactsDir string `yaml:"artifacts_dir"`

	DefaultTimeout time.Duration `yaml:"default_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`

	// StopOnFailure skips the remaining scenarios after the first failure.
	StopOnFailure bool `yaml:"stop_on_failure"`

	// ExcerptLimit caps the DOM excerpt captured on failure, in bytes.
	ExcerptLimit int `yaml:"excerpt_limit"`

	Browser   BrowserConfig       `yaml:"browser"`
	Scenarios []scenario.Scenario `yaml:"scenarios"`
	Sinks     []SinkConfig        `yaml:"sinks"`
	Store     StoreConfig         `yaml:"store"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string         `yaml:"remote"`
	Bin              string         `yaml:"bin"`
	Headful          bool           `yaml:"headful"`
	XvfbDisplay      string         `yaml:"xvfb_display"`
	Stealth          bool           `yaml:"stealth"`
	NoSandbox        bool           `yaml:"no_sandbox"`
	ResourceBlocking []string       `yaml:"resource_blocking"`
	Viewport         ViewportConfig `yaml:"viewport"`
	NavigateTimeout  time.Duration  `yaml:"navigate_timeout"`
}

// ViewportConfig is the page size used for screenshots.
type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook | store
	URL  string `yaml:"url"`  // for webhook
}

// StoreConfig enables run history persistence.
type StoreConfig struct {
	Path string `yaml:"path"` // empty = disabled
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values. Programmatic configs call it too.
func (c *Config) ApplyDefaults() {
	if c.Entry == "" {
		c.Entry = "index.html"
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 5 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.ExcerptLimit <= 0 {
		c.ExcerptLimit = 16 << 10
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if c.Browser.Viewport.Width <= 0 {
		c.Browser.Viewport.Width = 1280
	}
	if c.Browser.Viewport.Height <= 0 {
		c.Browser.Viewport.Height = 720
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
}

// Validate checks scenarios and sinks.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Scenarios))
	for i := range c.Scenarios {
		sc := &c.Scenarios[i]
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if err := safe.Identifier(sc.Name); err != nil {
			return fmt.Errorf("config: scenario name: %w", err)
		}
		if seen[sc.Name] {
			return fmt.Errorf("config: duplicate scenario %q", sc.Name)
		}
		seen[sc.Name] = true
	}
	for _, s := range c.Sinks {
		switch s.Type {
		case "stdout", "store":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: webhook sink needs url")
			}
			if err := safe.HTTPURL(s.URL); err != nil {
				return fmt.Errorf("config: webhook sink: %w", err)
			}
		default:
			return fmt.Errorf("config: unknown sink type %q", s.Type)
		}
	}
	return nil
}
