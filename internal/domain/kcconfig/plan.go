package kcconfig

import (
	"fmt"

	"github.com/fawz-io/kcmanage/internal/domain/step"
	"github.com/fawz-io/kcmanage/internal/ports"
)

// Plan filters the loaded documents down to the ones that will actually be
// applied, preserving application order. An optional document whose
// dependency is absent (or itself skipped) is dropped with a log line; a
// required document with an unsatisfiable dependency is fatal.
func Plan(docs []Document, logger ports.Logger) ([]Document, error) {
	applied := make(map[Kind]bool, len(docs))
	var out []Document

	for _, doc := range docs {
		unmet := missingDeps(doc, applied)
		if len(unmet) == 0 {
			applied[doc.Kind] = true
			out = append(out, doc)
			continue
		}

		if doc.Required {
			return nil, fmt.Errorf("%w: document %s depends on %v which will not be applied",
				step.ErrValidationFailed, doc.Kind, unmet)
		}

		logger.Info("skipping optional document, dependency not applied",
			ports.F("kind", string(doc.Kind)),
			ports.F("missing", fmt.Sprintf("%v", unmet)))
	}

	return out, nil
}

func missingDeps(doc Document, applied map[Kind]bool) []Kind {
	var unmet []Kind
	for _, dep := range doc.DependsOn {
		if !applied[dep] {
			unmet = append(unmet, dep)
		}
	}
	return unmet
}
