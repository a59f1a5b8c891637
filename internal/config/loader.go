package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultRunFiles are the file names searched for when no path is given.
var DefaultRunFiles = []string{"scanrunner.yaml", "scanrunner.yml", "config.json"}

// ErrConfigNotFound is returned when the run configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadRunFile reads a run configuration from a YAML or JSON file,
// applies defaults and validates it.
func LoadRunFile(path string) (*Run, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	return ParseRun(data)
}

// ParseRun decodes a run configuration. JSON input is accepted because it
// is valid YAML.
func ParseRun(data []byte) (*Run, error) {
	var run Run
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	run.ApplyDefaults()
	if err := run.Validate(); err != nil {
		return nil, err
	}
	return &run, nil
}

// FindRunFile returns configPath if it exists, otherwise the first of
// DefaultRunFiles present in the current directory. It returns "" when
// nothing is found.
func FindRunFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for _, name := range DefaultRunFiles {
		candidate := filepath.Join(cwd, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
