// Package ast defines the typed entity and rule variants the Importer
// produces: Profiles, Extensions, Instances, RuleSets, and Aliases, each
// tagged with a source location span for diagnostics.
package ast

import "github.com/gofhir/fsh/diag"

// Usage classifies how an Instance should be treated by the exporters.
type Usage int

const (
	// UsageExample instances are example resources for documentation.
	UsageExample Usage = iota
	// UsageInline instances are only ever nested inside another instance
	// and never emitted as their own Package artifact.
	UsageInline
	// UsageDefinition instances define terminology or conformance
	// resources (ValueSet, CodeSystem members expressed as instances).
	UsageDefinition
)

// Entity is the closed sum of top-level FSH entities.
type Entity interface {
	isEntity()
	EntityName() string
	EntitySpan() diag.Span
}

// EntityBase carries the fields every entity shares.
type EntityBase struct {
	Name        string
	Id          string
	Title       string
	Description string
	Span        diag.Span
}

func (b EntityBase) EntityName() string  { return b.Name }
func (b EntityBase) EntitySpan() diag.Span { return b.Span }

// Profile constrains a base resource type.
type Profile struct {
	EntityBase
	Parent string // name, alias, or url; resolved by the SD Exporter
	Rules  []Rule
}

func (Profile) isEntity() {}

// Extension is a profile whose base is the generic Extension type.
type Extension struct {
	EntityBase
	Parent string
	Rules  []Rule
}

func (Extension) isEntity() {}

// Instance declares a concrete resource instance.
type Instance struct {
	EntityBase
	InstanceOf string
	Usage      Usage
	// UsageExplicit records whether the author wrote a Usage: line, so
	// the Instance Exporter can decide whether forcing Usage=Inline for
	// a non-resource instanceOf needs a one-shot warning.
	UsageExplicit bool
	Mixins        []string
	Rules         []Rule
}

func (Instance) isEntity() {}

// RuleSet is a named template of rules applied to other entities by
// insert (textual substitution) or mixin (entity-scope attachment).
type RuleSet struct {
	EntityBase
	// Params names the RuleSet's formal parameters, for parameterized
	// RuleSets invoked as "insert Name(arg1, arg2)".
	Params []string
	Rules  []Rule
}

func (RuleSet) isEntity() {}

// Alias binds a short name to a canonical URL.
type Alias struct {
	EntityBase
	URL string
}

func (Alias) isEntity() {}

// Document is the bag of entities the Importer produces from one
// source file.
type Document struct {
	File     string
	Profiles   []*Profile
	Extensions []*Extension
	Instances  []*Instance
	RuleSets   []*RuleSet
	Aliases    []*Alias
}

// AllEntities returns every entity in the document as a flat slice,
// grouped by kind (profiles, then extensions, instances, rule sets) and
// in declaration order within each kind; aliases are resolved separately and are not
// part of the export-order entity list.
func (d *Document) AllEntities() []Entity {
	out := make([]Entity, 0, len(d.Profiles)+len(d.Extensions)+len(d.Instances)+len(d.RuleSets))
	for _, p := range d.Profiles {
		out = append(out, p)
	}
	for _, e := range d.Extensions {
		out = append(out, e)
	}
	for _, i := range d.Instances {
		out = append(out, i)
	}
	for _, r := range d.RuleSets {
		out = append(out, r)
	}
	return out
}
