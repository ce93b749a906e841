package kcconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/ports"
)

var placeholderPattern = regexp.MustCompile(`\$\{([A-Z][A-Z0-9_]*)\}`)

// Loader reads the document set from a config directory, substitutes
// ${NAME} placeholders from the resolved environment, and validates each
// document against its schema.
type Loader struct {
	dir    string
	logger ports.Logger
}

// NewLoader creates a Loader over the given config directory.
func NewLoader(dir string, logger ports.Logger) *Loader {
	return &Loader{dir: dir, logger: logger}
}

// Load returns the documents present in the directory, in application
// order. A missing required document is fatal; a missing optional document
// is simply absent from the result.
func (l *Loader) Load(env step.Environment) ([]Document, error) {
	var docs []Document

	for _, entry := range catalog {
		path := filepath.Join(l.dir, entry.file)

		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				if entry.required {
					return nil, fmt.Errorf("%w: required document %s missing (%s)",
						step.ErrValidationFailed, entry.kind, path)
				}
				l.logger.Debug("optional document absent", ports.F("kind", string(entry.kind)))
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		substituted, err := Substitute(raw, env)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", entry.kind, err)
		}

		var body map[string]any
		if err := yaml.Unmarshal(substituted, &body); err != nil {
			return nil, fmt.Errorf("%w: document %s is not valid YAML: %v",
				step.ErrValidationFailed, entry.kind, err)
		}

		doc := Document{
			Kind:      entry.kind,
			Required:  entry.required,
			DependsOn: entry.dependsOn,
			Body:      body,
			Source:    path,
		}

		if err := ValidateSchema(doc); err != nil {
			return nil, err
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

// Substitute replaces every ${NAME} placeholder with the corresponding
// environment value. An unresolvable placeholder is an error: blanking a
// password or realm name silently would produce a valid-looking but broken
// document.
func Substitute(raw []byte, env step.Environment) ([]byte, error) {
	var missing []string

	out := placeholderPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := string(placeholderPattern.FindSubmatch(match)[1])
		if v, ok := env.Lookup(name); ok {
			return []byte(v)
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: unresolved placeholders %v", step.ErrValidationFailed, missing)
	}
	return out, nil
}
