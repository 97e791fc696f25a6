package ast

import "github.com/gofhir/fsh/diag"

// Rule is the closed sum of rule variants. Every concrete rule type
// embeds Base for its path and source span and implements the
// unexported marker so the sum stays sealed to this package; dispatch
// sites (SD Exporter, Instance Exporter) switch on the concrete type.
type Rule interface {
	isRule()
	RulePath() Path
	RuleSpan() diag.Span
}

// Base carries the fields every rule variant shares.
type Base struct {
	Path Path
	Span diag.Span
}

func (b Base) RulePath() Path     { return b.Path }
func (b Base) RuleSpan() diag.Span { return b.Span }

// --- Constraint rules (legal on Profile/Extension) ---

// CardRule narrows an element's cardinality.
type CardRule struct {
	Base
	Min int
	Max string // "*" or a decimal string
}

func (CardRule) isRule() {}

// FlagRule sets one or more boolean flags on an element.
type FlagRule struct {
	Base
	// Paths holds every comma-separated path the flags apply to; Base.Path
	// is Paths[0] for single-path rules.
	Paths       []Path
	MustSupport bool
	Summary     bool
	Modifier    bool
	SetMustSupport bool
	SetSummary     bool
	SetModifier    bool
}

func (FlagRule) isRule() {}

// BindingStrength is the ValueSet binding strength, ordered loosest to
// tightest: Example < Preferred < Extensible < Required.
type BindingStrength int

const (
	Example BindingStrength = iota
	Preferred
	Extensible
	Required
)

// Rank orders strengths for the "may only strengthen" invariant: higher
// is stronger.
func (s BindingStrength) Rank() int { return int(s) }

func (s BindingStrength) String() string {
	switch s {
	case Example:
		return "example"
	case Preferred:
		return "preferred"
	case Extensible:
		return "extensible"
	case Required:
		return "required"
	default:
		return "unknown"
	}
}

// ValueSetBindingRule binds an element to a value set at a strength.
type ValueSetBindingRule struct {
	Base
	ValueSet string
	Strength BindingStrength
}

func (ValueSetBindingRule) isRule() {}

// TypeRef is one entry in an Only rule's type list.
type TypeRef struct {
	Name        string
	IsReference bool
}

// OnlyRule narrows an element's allowed types.
type OnlyRule struct {
	Base
	Types []TypeRef
}

func (OnlyRule) isRule() {}

// ContainsItem is one named slice declared by a Contains rule.
type ContainsItem struct {
	Name string
	Type string // optional; empty if the slice reuses the array's type
}

// ContainsRule declares named slices of a repeating element.
type ContainsRule struct {
	Base
	Items []ContainsItem
}

func (ContainsRule) isRule() {}

// CaretValueRule sets a field on the element definition itself, not on
// the data it describes.
type CaretValueRule struct {
	Base
	CaretPath string
	Value     Value
}

func (CaretValueRule) isRule() {}

// FixedValueRule attaches a fixed or patterned value to an element
// definition (legal on Profile/Extension; see AssignmentRule for the
// Instance-scoped equivalent).
type FixedValueRule struct {
	Base
	Value   Value
	Exactly bool
}

func (FixedValueRule) isRule() {}

// --- Assignment rules (legal on Instance) ---

// AssignmentRule sets a concrete value at a path within an instance.
type AssignmentRule struct {
	Base
	Value      Value
	Exactly    bool
	IsInstance bool
}

func (AssignmentRule) isRule() {}

// --- Cross-cutting rules (legal anywhere rules are; expanded before dispatch) ---

// InsertRule queues textual substitution of a RuleSet's rules at export
// time, at this rule's position in source order.
type InsertRule struct {
	Base
	RuleSetName string
	// Params holds positional arguments for parameterized RuleSets; empty
	// for a plain "* insert Name".
	Params []string
}

func (InsertRule) isRule() {}
