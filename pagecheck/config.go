package pagecheck

import (
	"github.com/hazyhaar/pagecheck/pagecheck/internal/config"
)

// Config is the top-level pagecheck configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// ViewportConfig is the page size used for screenshots.
type ViewportConfig = config.ViewportConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// StoreConfig enables run history persistence.
type StoreConfig = config.StoreConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// ParseConfig decodes a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	return config.Parse(data)
}
