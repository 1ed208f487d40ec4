// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package fabric

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes one named data source. It is also the payload handed
// to the script runner, so every field is JSON-encodable.
type SourceConfig struct {
	Name               string `yaml:"name" mapstructure:"name" json:"name"`
	Type               string `yaml:"type" mapstructure:"type" json:"type"`
	DSN                string `yaml:"dsn" mapstructure:"dsn" json:"dsn"`
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections" json:"max_connections,omitempty"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections" json:"max_idle_connections,omitempty"`
	Description        string `yaml:"description" mapstructure:"description" json:"description,omitempty"`

	// Schema sets the search_path of pgx sources.
	Schema string `yaml:"schema" mapstructure:"schema" json:"schema,omitempty"`
}

// SourcesYAML represents the YAML structure of a data source file.
type SourcesYAML struct {
	APIVersion string         `yaml:"apiVersion"`
	Kind       string         `yaml:"kind"`
	Sources    []SourceConfig `yaml:"sources"`
}

// validTypes lists the data source types with a registered factory.
var validTypes = map[string]bool{
	"postgres": true,
	"mysql":    true,
	"sqlite":   true,
	"pgx":      true,
}

// LoadSources loads data source definitions from a YAML file. Environment
// variables in the file are expanded and relative sqlite paths are resolved
// against the file's directory.
func LoadSources(path string) ([]SourceConfig, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data source file %s: %w", path, err)
	}

	expanded := []byte(expandEnvVars(string(data)))
	var doc SourcesYAML
	if err := yaml.Unmarshal(expanded, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse data source YAML: %w", err)
	}

	if err := validateSourcesYAML(&doc); err != nil {
		return nil, fmt.Errorf("invalid data source file %s: %w", path, err)
	}
	if err := validateSourcesSchema(expanded); err != nil {
		return nil, fmt.Errorf("invalid data source file %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	for i := range doc.Sources {
		src := &doc.Sources[i]
		src.Type = strings.ToLower(src.Type)
		if _, secret := KeyringKey(*src); src.Type == "sqlite" && !secret {
			src.DSN = resolveSQLitePath(baseDir, src.DSN)
		}
	}
	return doc.Sources, nil
}

func validateSourcesYAML(doc *SourcesYAML) error {
	if doc.APIVersion == "" {
		return fmt.Errorf("apiVersion is required")
	}
	if doc.APIVersion != "sibridge/v1" {
		return fmt.Errorf("unsupported apiVersion: %s (expected: sibridge/v1)", doc.APIVersion)
	}
	if doc.Kind != "DataSources" {
		return fmt.Errorf("kind must be 'DataSources', got: %s", doc.Kind)
	}

	seen := make(map[string]bool, len(doc.Sources))
	for i := range doc.Sources {
		if err := ValidateSource(doc.Sources[i]); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if seen[doc.Sources[i].Name] {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, doc.Sources[i].Name)
		}
		seen[doc.Sources[i].Name] = true
	}
	return nil
}

// ValidateSource checks that a data source definition is complete.
func ValidateSource(src SourceConfig) error {
	if src.Name == "" {
		return fmt.Errorf("name is required")
	}
	if src.Type == "" {
		return fmt.Errorf("type is required")
	}
	if !validTypes[strings.ToLower(src.Type)] {
		return fmt.Errorf("%w: %s (must be: postgres, pgx, mysql, sqlite)", ErrUnsupportedType, src.Type)
	}
	if src.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	return nil
}

// resolveSQLitePath makes a relative sqlite file path absolute. URIs and
// in-memory databases are left untouched.
func resolveSQLitePath(baseDir, dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") || filepath.IsAbs(dsn) {
		return dsn
	}
	return filepath.Join(baseDir, dsn)
}

// expandEnvVars expands environment variables in YAML content
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}
