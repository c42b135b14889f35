package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file and expands environment variable references.
func Load(path string) (*DaemonConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg DaemonConfig
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// expandEnv substitutes ${VAR} references, with ${VAR:-fallback} supplying a
// value when the variable is unset. An unset variable without a fallback
// expands to the empty string.
func expandEnv(data string) string {
	return os.Expand(data, func(ref string) string {
		name, fallback, hasFallback := strings.Cut(ref, ":-")
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if hasFallback {
			return fallback
		}
		return ""
	})
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*DaemonConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*DaemonConfig, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
