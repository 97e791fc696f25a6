// Package compileerr defines the compiler's error taxonomy.
//
// Every recoverable failure the compiler can produce is a distinct Kind,
// not a distinct Go type, so callers dispatch with errors.Is/errors.As
// against a single CompileError rather than a type switch over dozens
// of sentinel structs.
package compileerr

import (
	"errors"
	"fmt"

	"github.com/gofhir/fsh/diag"
)

// Kind is one entry in the error taxonomy from the error handling design.
type Kind string

const (
	// Resolution
	ParentNotDefined      Kind = "ParentNotDefined"
	InstanceOfNotDefined  Kind = "InstanceOfNotDefined"
	CannotResolvePath     Kind = "CannotResolvePath"
	TypeNotFound          Kind = "TypeNotFound"
	InvalidUri            Kind = "InvalidUri"
	SlicingNotDefined     Kind = "SlicingNotDefined"
	CannotResolveCanonical Kind = "CannotResolveCanonical"

	// Type/Value
	MismatchedType   Kind = "MismatchedType"
	NoSingleType     Kind = "NoSingleType"
	CodeAndSystemMismatch Kind = "CodeAndSystemMismatch"
	FixedToPattern   Kind = "FixedToPattern"
	ValueAlreadyFixed Kind = "ValueAlreadyFixed"
	InvalidFHIRId    Kind = "InvalidFHIRId"
	InvalidDateTime  Kind = "InvalidDateTime"
	InvalidPeriod    Kind = "InvalidPeriod"
	InvalidRangeValue Kind = "InvalidRangeValue"
	UnitMismatch     Kind = "UnitMismatch"
	InvalidUnits     Kind = "InvalidUnits"

	// Cardinality/Slicing
	InvalidCardinality     Kind = "InvalidCardinality"
	WideningCardinality    Kind = "WideningCardinality"
	NarrowingRootCardinality Kind = "NarrowingRootCardinality"
	InvalidSumOfSliceMins  Kind = "InvalidSumOfSliceMins"
	InvalidMaxOfSlice      Kind = "InvalidMaxOfSlice"
	SliceTypeRemoval       Kind = "SliceTypeRemoval"
	SlicingDefinitionError Kind = "SlicingDefinitionError"

	// Binding
	BindingStrength   Kind = "BindingStrength"
	CodedTypeNotFound Kind = "CodedTypeNotFound"
	ValueSetCompose   Kind = "ValueSetCompose"
	ValueSetFilter    Kind = "ValueSetFilter"

	// Reference/Instance
	InvalidResourceType     Kind = "InvalidResourceType"
	FixingNonResource       Kind = "FixingNonResource"
	InvalidExtensionParent  Kind = "InvalidExtensionParent"
	ParentDeclaredAsProfileName Kind = "ParentDeclaredAsProfileName"
	DuplicateInstanceId     Kind = "DuplicateInstanceId"
	RequiredElementMissing  Kind = "RequiredElementMissing"

	// Package load
	PackageLoad        Kind = "PackageLoad"
	CurrentPackageLoad Kind = "CurrentPackageLoad"
	MissingSnapshot    Kind = "MissingSnapshot"
)

// CompileError is the single error type the compiler's core raises.
// It always carries a Kind from the taxonomy above, a human message,
// a source span, and optionally the span of the site that triggered
// a mixin/insert expansion (the "applied in" location).
type CompileError struct {
	Kind    Kind
	Message string
	Span    diag.Span
	Applied *diag.Span
	Cause   error
}

func (e *CompileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Cause }

// Is reports whether target names the same Kind, so callers can write
// errors.Is(err, compileerr.New(compileerr.ParentNotDefined, "")).
func (e *CompileError) Is(target error) bool {
	var other *CompileError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs a CompileError with no span attached; callers fill it
// in with WithSpan when a source location is available.
func New(kind Kind, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a CompileError from an existing error without losing it.
func Wrap(kind Kind, cause error, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithSpan attaches a source span, returning the receiver for chaining.
func (e *CompileError) WithSpan(span diag.Span) *CompileError {
	e.Span = span
	return e
}

// WithApplied attaches the "applied in" span of a mixin/insert expansion site.
func (e *CompileError) WithApplied(span diag.Span) *CompileError {
	e.Applied = &span
	return e
}

// KindOf extracts the Kind from err if it is (or wraps) a *CompileError.
func KindOf(err error) (Kind, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
