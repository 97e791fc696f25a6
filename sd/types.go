// Package sd models a StructureDefinition as a tree of ElementDefinition
// nodes held in an arena: a flat slice of nodes addressed by index, with
// parent/child links recorded as indices rather than pointers. This
// keeps cloning a parent's snapshot (the first step of every SD Exporter
// run) a cheap slice copy, and avoids cyclic ownership when slicing or
// choice-type specialization forks the tree into multiple logical
// children of one array element.
package sd

import "github.com/gofhir/fsh/ast"

// TypeRef is one allowed type for an element, with an optional list of
// profile/target-profile canonical URLs narrowing it.
type TypeRef struct {
	Code          string
	Profile       []string
	TargetProfile []string
}

// Binding describes a value set binding on a codeable element.
type Binding struct {
	Strength ast.BindingStrength
	ValueSet string
}

// Discriminator is one slicing discriminator (type + path).
type Discriminator struct {
	Type string // "value", "pattern", "type", "exists", "profile"
	Path string
}

// Slicing holds the slicing metadata installed on a repeating element
// once any Contains rule targets it.
type Slicing struct {
	Discriminators []Discriminator
	Description    string
	Ordered        bool
	Rules          string // "open" | "closed" | "openAtEnd"
}

// Kind distinguishes a StructureDefinition's derivation.
type Kind string

const (
	KindResource     Kind = "resource"
	KindComplexType  Kind = "complex-type"
	KindPrimitiveType Kind = "primitive-type"
	KindExtension    Kind = "extension" // logical kind for convenience; serializes as complex-type
)

// Derivation is either "specialization" (a base FHIR type) or
// "constraint" (a Profile/Extension derived from another SD).
type Derivation string

const (
	DerivationSpecialization Derivation = "specialization"
	DerivationConstraint     Derivation = "constraint"
)
