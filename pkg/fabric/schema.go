// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package fabric

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// sourcesJSONSchema describes the shape of a data source file. Semantic
// checks (supported types, duplicates) live in validateSourcesYAML.
const sourcesJSONSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "apiVersion": {"type": "string"},
    "kind": {"type": "string"},
    "sources": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "type", "dsn"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string"},
          "dsn": {"type": "string", "minLength": 1},
          "max_connections": {"type": "integer", "minimum": 0},
          "max_idle_connections": {"type": "integer", "minimum": 0},
          "description": {"type": "string"},
          "schema": {"type": "string"}
        }
      }
    }
  }
}`

var (
	sourcesSchemaOnce sync.Once
	sourcesSchema     *gojsonschema.Schema
	sourcesSchemaErr  error
)

// validateSourcesSchema checks the structure of a data source file, catching
// misspelled keys and wrongly typed values.
func validateSourcesSchema(data []byte) error {
	sourcesSchemaOnce.Do(func() {
		sourcesSchema, sourcesSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(sourcesJSONSchema))
	})
	if sourcesSchemaErr != nil {
		return fmt.Errorf("invalid data source schema: %w", sourcesSchemaErr)
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse data source YAML: %w", err)
	}
	result, err := sourcesSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, len(result.Errors()))
	for i, e := range result.Errors() {
		msgs[i] = e.String()
	}
	return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
}
