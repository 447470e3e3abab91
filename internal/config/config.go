// Package config loads server and client configuration from YAML
// files, with environment variable overrides for deployment secrets
// and addresses that should not live in a checked-in file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads path as YAML into a zero-valued T and returns it. T should
// carry `yaml:"..."` tags; fields the file does not set keep their Go
// zero values. Load does not merge the result with a DefaultConfig.
func Load[T any](path string) (T, error) {
	var cfg T

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Env calls apply with the value of the environment variable key, if it
// is set and non-empty.
// Thin wrapper kept so every override site reads the same way.
func Env(key string, apply func(value string)) {
	if v := os.Getenv(key); v != "" {
		apply(v)
	}
}
