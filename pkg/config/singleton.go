package config

import (
	"fmt"
	"sync/atomic"
)

// current is the process-wide configuration. The run command stores the
// loaded configuration here and the Watcher swaps it on reload; readers
// always see a complete, validated Config.
var current atomic.Pointer[Config]

// Initialize loads the configuration at path with environment overrides
// and installs it. Only the first successful call installs a
// configuration; later calls load nothing and return nil.
func Initialize(path string) error {
	if current.Load() != nil {
		return nil
	}

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return err
	}
	current.CompareAndSwap(nil, cfg)
	return nil
}

// GetConfig returns the installed configuration, or nil before Initialize
// or SetConfig. The returned Config must not be modified.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig installs cfg, replacing any current configuration. The run
// command uses it after applying command line overrides.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}

// Override adjusts a freshly loaded configuration before it is validated
// and installed. The run command passes its command line flags this way so
// they stay in force across reloads.
type Override func(*Config) error

// ReloadConfig loads path again, applies overrides in order and installs the
// result. On failure the current configuration stays in place.
func ReloadConfig(path string, overrides ...Override) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	if len(overrides) > 0 {
		for _, override := range overrides {
			if err := override(cfg); err != nil {
				return fmt.Errorf("failed to reapply overrides: %w", err)
			}
		}
		if err := Validate(cfg); err != nil {
			return fmt.Errorf("failed to reload configuration: %w", err)
		}
	}

	current.Store(cfg)
	return nil
}

// MustGetConfig is GetConfig for code that runs after startup. It panics
// when no configuration is installed.
func MustGetConfig() *Config {
	cfg := current.Load()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}
