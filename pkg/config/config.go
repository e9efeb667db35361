// Package config loads the TOML run configuration: machine parameters
// and the initial name environment programs start from.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultMemorySize is the machine memory size used when no
// configuration file overrides it.
const DefaultMemorySize = 1000

// Config is the full run configuration
type Config struct {
	Machine MachineConfig    `toml:"machine"`
	Env     map[string]int64 `toml:"env"`
}

// MachineConfig holds machine parameters
type MachineConfig struct {
	// MemorySize is the number of addressable memory words. The stack
	// pointer is seeded with this value.
	MemorySize int64 `toml:"memory_size"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Machine: MachineConfig{MemorySize: DefaultMemorySize},
	}
}

// Load reads a configuration file. Fields left unset fall back to
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for values the machine cannot run
// with.
func (c *Config) Validate() error {
	if c.Machine.MemorySize <= 0 {
		return fmt.Errorf("memory_size must be positive, got %d", c.Machine.MemorySize)
	}
	for name := range c.Env {
		if name == "x0" || name == "ra" || name == "sp" {
			return fmt.Errorf("env entry %q collides with a reserved register", name)
		}
	}
	return nil
}
