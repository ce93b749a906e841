package kcconfig

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/fawz-io/kcmanage/internal/domain/step"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemas    map[Kind]*jsonschema.Schema
	schemaErr  error
)

// ValidateSchema validates a document body against the JSON Schema for its
// kind. Substitution has already happened, so the schema sees final values.
func ValidateSchema(doc Document) error {
	compiled, err := loadSchemas()
	if err != nil {
		return err
	}

	sch, ok := compiled[doc.Kind]
	if !ok {
		return fmt.Errorf("no schema for document kind %s", doc.Kind)
	}

	// Round-trip through JSON so the validator sees canonical JSON types
	// rather than the yaml.v3 decoding.
	data, err := json.Marshal(doc.Body)
	if err != nil {
		return fmt.Errorf("document %s: %w", doc.Kind, err)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("document %s: %w", doc.Kind, err)
	}

	if err := sch.Validate(instance); err != nil {
		return fmt.Errorf("%w: document %s: %v", step.ErrValidationFailed, doc.Kind, err)
	}
	return nil
}

func loadSchemas() (map[Kind]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		out := make(map[Kind]*jsonschema.Schema, len(catalog))

		for _, entry := range catalog {
			name := string(entry.kind) + "_schema.json"

			raw, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				schemaErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}

			var doc any
			if err := json.Unmarshal(raw, &doc); err != nil {
				schemaErr = fmt.Errorf("parse schema %s: %w", name, err)
				return
			}

			if err := compiler.AddResource(name, doc); err != nil {
				schemaErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}

			sch, err := compiler.Compile(name)
			if err != nil {
				schemaErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			out[entry.kind] = sch
		}

		schemas = out
	})

	return schemas, schemaErr
}
