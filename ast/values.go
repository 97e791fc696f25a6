package ast

// Value is the closed sum of literal value forms the grammar accepts as
// the right-hand side of a Fixed/Pattern or Assignment rule.
type Value interface {
	isValue()
}

// String is a quoted or triple-quoted string literal. Multiline is true
// when it was written with triple quotes; the text has already had
// common leading indentation stripped and the leading/trailing blank
// lines discarded per the grammar rule for triple-quoted strings.
type String struct {
	Text      string
	Multiline bool
}

func (String) isValue() {}

// Number is a decimal numeric literal, kept as the literal source text
// alongside the parsed float so later stages can distinguish "1" from
// "1.0" when round-tripping to JSON.
type Number struct {
	Text  string
	Float float64
}

func (Number) isValue() {}

// Bool is a true|false literal.
type Bool struct {
	Value bool
}

func (Bool) isValue() {}

// DateTimeLiteral holds an ISO date/time/dateTime lexeme. The grammar
// treats these as opaque strings; no calendar validation happens here.
type DateTimeLiteral struct {
	Text string
}

func (DateTimeLiteral) isValue() {}

// Code is `System#code "display"?`.
type Code struct {
	System  string // already alias-resolved; empty if the code had no system
	Code    string
	Display string
	HasDisplay bool
}

func (Code) isValue() {}

// Quantity is `number 'ucum-code'`.
type Quantity struct {
	Value float64
	Unit  string
}

func (Quantity) isValue() {}

// Ratio is `q1 : q2`, each side either a Quantity or a bare Number.
type Ratio struct {
	Numerator   Value
	Denominator Value
}

func (Ratio) isValue() {}

// Reference is `Reference(Name)`, possibly with alternates for polymorphic
// targets `Reference(Name1|Name2)`.
type Reference struct {
	Targets []string
}

func (Reference) isValue() {}

// Canonical is `Canonical(Name)`.
type Canonical struct {
	Target string
}

func (Canonical) isValue() {}

// InstanceRef is an unquoted bare name used as an Assignment rule's
// value; it names another Instance in the Tank rather than a literal.
type InstanceRef struct {
	Name string
}

func (InstanceRef) isValue() {}
