// Package discriminator validates slicing discriminator path
// expressions using github.com/gofhir/fhirpath, the same compiled-
// expression-cache pattern the constraint engine this codebase was
// distilled from used for invariant evaluation. General FHIRPath
// expression evaluation against instance data is out of scope; this
// package only validates that a discriminator's path is a
// syntactically legal FHIRPath path, catching a malformed discriminator
// path set by a CaretValue rule at compile time instead of at IG-build
// time.
package discriminator

import (
	"fmt"
	"sync"

	"github.com/gofhir/fhirpath"
)

// Validator compiles and caches discriminator path expressions.
type Validator struct {
	mu    sync.Mutex
	cache map[string]error
}

// NewValidator creates an empty Validator.
func NewValidator() *Validator {
	return &Validator{cache: make(map[string]error)}
}

// ValidatePath reports whether path is a compilable FHIRPath
// expression, suitable for use as a slicing discriminator's `path`.
// "$this" is always valid without compiling, since it is a FHIRPath
// reserved identifier the library's own grammar is not required to
// resolve standalone.
func (v *Validator) ValidatePath(path string) error {
	if path == "$this" || path == "" {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err, ok := v.cache[path]; ok {
		return err
	}

	_, err := fhirpath.Compile(path)
	if err != nil {
		err = fmt.Errorf("invalid discriminator path %q: %w", path, err)
	}
	v.cache[path] = err
	return err
}
