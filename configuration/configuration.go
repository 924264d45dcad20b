// Package configuration defines the registry server's YAML configuration,
// parsed with gopkg.in/yaml.v2.
package configuration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Log configures the logging subsystem.
type Log struct {
	Level     string `yaml:"level,omitempty"`
	Formatter string `yaml:"formatter,omitempty"`
}

// Storage configures where blobs and manifests are persisted.
type Storage struct {
	// Driver selects the storagedriver implementation: "filesystem" or
	// "inmemory".
	Driver string `yaml:"driver"`

	// RootDirectory is the filesystem driver's root. Ignored by inmemory.
	RootDirectory string `yaml:"rootdirectory,omitempty"`
}

// HTTP configures the registry's HTTP server.
type HTTP struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix,omitempty"`
}

// Mirror holds the URL of an upstream mirror registry. It is parsed but not
// read by the commands in this module.
type Mirror struct {
	URL string `yaml:"url,omitempty"`
}

// Configuration is the top-level registry server configuration.
type Configuration struct {
	Log     Log     `yaml:"log,omitempty"`
	Storage Storage `yaml:"storage"`
	HTTP    HTTP    `yaml:"http"`
	Mirror  Mirror  `yaml:"mirror,omitempty"`
}

// Parse reads and validates a Configuration from data.
func Parse(data []byte) (*Configuration, error) {
	var c Configuration
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if c.Storage.Driver == "" {
		return nil, fmt.Errorf("configuration: storage.driver is required")
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":5000"
	}
	if c.HTTP.Prefix == "" {
		c.HTTP.Prefix = "/api/v1"
	}
	return &c, nil
}

// ParseFile reads and parses a Configuration from a YAML file at path.
func ParseFile(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file %s: %w", path, err)
	}
	return Parse(data)
}
