package config

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed search.schema.json
var searchSchemaJSON string

var searchSchema = jsonschema.MustCompileString("search.schema.json", searchSchemaJSON)

// validateSearchDocument checks a search YAML file against the search schema.
// The document goes through JSON first so the validator sees JSON types.
func validateSearchDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("search is not representable as JSON: %w", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}

	if err := searchSchema.Validate(v); err != nil {
		return fmt.Errorf("search schema validation failed: %w", err)
	}
	return nil
}
