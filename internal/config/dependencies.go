package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Dependency is one extra optional HTTP dependency to probe.
type Dependency struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Path    string        `yaml:"path,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// DependencyFile is the parsed YAML structure:
// dependencies: [{name, url, path, timeout}]
type DependencyFile struct {
	Dependencies []Dependency `yaml:"dependencies"`
}

// reserved names are already reported under services.
var reserved = map[string]bool{
	"database":   true,
	"embedding":  true,
	"rateLimit":  true,
	"phenotypes": true,
}

// LoadDependencyFile parses a YAML dependency file from the given path.
// Returns nil if path is empty.
func LoadDependencyFile(path string) ([]Dependency, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dependency file: %w", err)
	}

	var df DependencyFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("parse dependency file: %w", err)
	}

	if err := validateDependencies(df.Dependencies); err != nil {
		return nil, err
	}

	return df.Dependencies, nil
}

func validateDependencies(deps []Dependency) error {
	if len(deps) == 0 {
		return fmt.Errorf("dependency file contains no dependencies")
	}

	seen := make(map[string]bool)

	for i, d := range deps {
		if d.Name == "" {
			return fmt.Errorf("dependency %d: name is required", i)
		}
		if reserved[d.Name] {
			return fmt.Errorf("dependency %q: name is reserved", d.Name)
		}
		if d.URL == "" {
			return fmt.Errorf("dependency %q: url is required", d.Name)
		}
		if err := validateHTTPURL(d.URL, "url"); err != nil {
			return fmt.Errorf("dependency %q: %w", d.Name, err)
		}
		if seen[d.Name] {
			return fmt.Errorf("dependency %q: duplicate name", d.Name)
		}
		seen[d.Name] = true

		if d.Timeout < 0 {
			return fmt.Errorf("dependency %q: timeout cannot be negative", d.Name)
		}
	}

	return nil
}
