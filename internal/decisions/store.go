package decisions

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	invalidKeyMessageConstant = "invalid decision key"
	invalidKeyErrorTemplate   = "%w: %q/%q"
	pathSeparatorsConstant    = `/\`
	currentDirectoryConstant  = "."
	parentDirectoryConstant   = ".."
)

// ErrInvalidKey indicates a cohort or repository name that cannot address a decision.
var ErrInvalidKey = errors.New(invalidKeyMessageConstant)

// Store persists decision records with an atomic create-if-absent primitive.
type Store interface {
	// RecordIfAbsent writes the record unless a non-empty decision already exists for the key.
	RecordIfAbsent(executionContext context.Context, cohort string, repository string, record Record) (Outcome, error)
	// Lookup returns the existing decision for the key when one exists.
	Lookup(executionContext context.Context, cohort string, repository string) (Record, bool, error)
	// List returns every decision in a cohort sorted by repository name.
	List(executionContext context.Context, cohort string) ([]Record, error)
}

// ValidateKey rejects empty names and names that would escape the cohort namespace.
func ValidateKey(cohort string, repository string) error {
	for _, component := range []string{cohort, repository} {
		trimmed := strings.TrimSpace(component)
		if len(trimmed) == 0 || trimmed != component || strings.ContainsAny(component, pathSeparatorsConstant) || component == currentDirectoryConstant || component == parentDirectoryConstant {
			return fmt.Errorf(invalidKeyErrorTemplate, ErrInvalidKey, cohort, repository)
		}
	}
	return nil
}
