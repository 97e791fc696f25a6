package sdexport

import (
	"fmt"
	"strconv"

	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/compileerr"
	"github.com/gofhir/fsh/sd"
)

// applyCard narrows Min/Max, rejecting any attempt to widen. Narrowing the
// root element's own cardinality away from what the parent SD declared is
// the same widen-check applied at the root node; it is flagged under its
// own Kind since a root-level miss is diagnostically more actionable than
// a plain element one.
func applyCard(el *sd.Element, rule ast.CardRule) error {
	kind := compileerr.WideningCardinality
	if el.Parent == -1 {
		kind = compileerr.NarrowingRootCardinality
	}
	if rule.Min < el.Min {
		return compileerr.New(kind, "cardinality narrowing only: min %d widens parent min %d", rule.Min, el.Min)
	}
	if !maxLE(rule.Max, el.Max) {
		return compileerr.New(kind, "cardinality narrowing only: max %s widens parent max %s", rule.Max, el.Max)
	}
	if rule.Min != el.Min {
		el.Min = rule.Min
		el.Changed = true
	}
	if rule.Max != el.Max {
		el.Max = rule.Max
		el.Changed = true
	}
	return nil
}

// maxLE reports whether a is no wider than b, treating "*" as unbounded.
func maxLE(a, b string) bool {
	if b == "*" {
		return true
	}
	if a == "*" {
		return false
	}
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	if aerr != nil || berr != nil {
		return a == b
	}
	return an <= bn
}

// applyFlag ORs the rule's flags into el, never clearing one already
// set. An attempt to clear mustSupport or isModifier returns an error
// (which applyRules reports as a diagnostic) and leaves el unchanged.
func applyFlag(el *sd.Element, rule ast.FlagRule) error {
	if rule.SetMustSupport {
		if !rule.MustSupport && el.MustSupport {
			return fmt.Errorf("cannot clear mustSupport once set")
		}
		el.MustSupport = el.MustSupport || rule.MustSupport
		el.Changed = true
	}
	if rule.SetSummary {
		el.Summary = el.Summary || rule.Summary
		el.Changed = true
	}
	if rule.SetModifier {
		if !rule.Modifier && el.IsModifier {
			return fmt.Errorf("cannot clear isModifier once set")
		}
		el.IsModifier = el.IsModifier || rule.Modifier
		el.Changed = true
	}
	return nil
}

// codeableTypes lists the element type codes a ValueSet binding may
// legally attach to.
var codeableTypes = map[string]bool{
	"code": true, "Coding": true, "CodeableConcept": true, "Quantity": true, "string": true,
}

func applyBinding(el *sd.Element, rule ast.ValueSetBindingRule) error {
	if !elementHasCodeableType(el) {
		return compileerr.New(compileerr.CodedTypeNotFound, "element has no codeable type to bind")
	}
	if el.Binding != nil && rule.Strength.Rank() < el.Binding.Strength.Rank() {
		return compileerr.New(compileerr.BindingStrength, "binding strength %s weakens existing %s", rule.Strength, el.Binding.Strength)
	}
	el.Binding = &sd.Binding{Strength: rule.Strength, ValueSet: rule.ValueSet}
	el.Changed = true
	return nil
}

func elementHasCodeableType(el *sd.Element) bool {
	if len(el.Types) == 0 {
		// a choice-specialized view may carry its type directly in Types;
		// an element with none yet (not materialized) cannot be bound.
		return false
	}
	for _, t := range el.Types {
		if codeableTypes[t.Code] {
			return true
		}
	}
	return false
}

func applyOnly(el *sd.Element, rule ast.OnlyRule) error {
	if len(rule.Types) == 0 {
		return compileerr.New(compileerr.NoSingleType, "only rule names no types")
	}
	if len(el.Types) == 0 {
		// nothing to narrow against yet (e.g. a not-yet-typed choice base);
		// accept the rule's types as the starting type list.
		el.Types = onlyToTypeRefs(rule)
		el.Changed = true
		return nil
	}

	existing := map[string]sd.TypeRef{}
	for _, t := range el.Types {
		existing[t.Code] = t
	}

	var narrowed []sd.TypeRef
	var refTargets []string
	var refOld sd.TypeRef
	haveRef := false
	for _, want := range rule.Types {
		code := want.Name
		if want.IsReference {
			old, ok := existing["Reference"]
			if !ok {
				return compileerr.New(compileerr.MismatchedType, "type Reference is not a member of the parent's type list")
			}
			if !haveRef {
				refOld = old
				haveRef = true
			}
			refTargets = append(refTargets, code)
			continue
		}
		old, ok := existing[code]
		if !ok {
			return compileerr.New(compileerr.MismatchedType, "type %s is not a member of the parent's type list", code)
		}
		narrowed = append(narrowed, old)
	}
	if haveRef {
		narrowed = append(narrowed, sd.TypeRef{Code: "Reference", TargetProfile: narrowReferenceTargets(refOld.TargetProfile, refTargets)})
	}
	el.Types = narrowed
	el.Changed = true
	return nil
}

func onlyToTypeRefs(rule ast.OnlyRule) []sd.TypeRef {
	out := make([]sd.TypeRef, 0, len(rule.Types))
	for _, t := range rule.Types {
		if t.IsReference {
			out = append(out, sd.TypeRef{Code: "Reference", TargetProfile: []string{t.Name}})
			continue
		}
		out = append(out, sd.TypeRef{Code: t.Name})
	}
	return out
}

// narrowReferenceTargets computes the narrowed targetProfile list for a
// Reference-typed `only` rule: the intersection of the rule's named
// targets with the element's existing target list, in the order the
// rule names them. An element with no existing target restriction
// (a bare Reference(Any)) has nothing to intersect against, so the
// rule's named targets become the restriction outright.
func narrowReferenceTargets(old, newTargets []string) []string {
	if len(old) == 0 {
		var out []string
		seen := map[string]bool{}
		for _, n := range newTargets {
			if !seen[n] {
				out = append(out, n)
				seen[n] = true
			}
		}
		return out
	}

	oldSet := map[string]bool{}
	for _, o := range old {
		oldSet[o] = true
	}
	var narrowed []string
	seen := map[string]bool{}
	for _, n := range newTargets {
		if oldSet[n] && !seen[n] {
			narrowed = append(narrowed, n)
			seen[n] = true
		}
	}
	return narrowed
}

// applyContains creates one slice element per named item (the resolver
// installs a default discriminator on the array element the first time
// it's sliced) and sets an item's declared type on its slice. Per-item
// cardinality and flags are applied by the separate Card/Flag rules the
// Importer emits for each item's slice path. Per-item failures are
// reported individually so one bad item doesn't drop the rest of the rule.
func applyContains(tree *sd.Tree, resolver *sd.Resolver, el *sd.Element, rule ast.ContainsRule, ex *Exporter) error {
	for _, item := range rule.Items {
		slicePath := ast.Path(string(rule.Path) + "[" + item.Name + "]")
		idx, err := resolver.Resolve(slicePath, true)
		if err != nil {
			span := rule.Span
			ex.Sink.Error(ex.File, &span, "contains %s: %v", item.Name, err)
			continue
		}
		if item.Type != "" {
			if len(el.Types) > 0 && !hasTypeCode(el.Types, item.Type) {
				span := rule.Span
				ce := compileerr.New(compileerr.SliceTypeRemoval, "slice %s type %s is not among the array's declared types", item.Name, item.Type)
				ex.Sink.Error(ex.File, &span, "contains %s: %v", item.Name, ce)
				continue
			}
			slice := tree.Get(idx)
			slice.Types = []sd.TypeRef{{Code: item.Type}}
			slice.Changed = true
		}
	}
	el.Changed = true
	return nil
}

func hasTypeCode(types []sd.TypeRef, code string) bool {
	for _, t := range types {
		if t.Code == code {
			return true
		}
	}
	return false
}

func applyCaret(el *sd.Element, rule ast.CaretValueRule) error {
	if el.Caret == nil {
		el.Caret = map[string]any{}
	}
	el.Caret[rule.CaretPath] = rule.Value
	el.Changed = true
	return nil
}

// applyFixed attaches a pattern or fixed value, lifting a bare Code onto
// a CodeableConcept-typed element per the lift rule, and rejecting an
// attempt to re-fix an already-fixed element.
func applyFixed(el *sd.Element, rule ast.FixedValueRule) error {
	if el.FixedType != "" {
		return compileerr.New(compileerr.ValueAlreadyFixed, "element already has a fixed value")
	}
	typeCode := elementTypeCode(el)
	value, valueType := liftValue(rule.Value, typeCode)
	if rule.Exactly {
		el.FixedType = valueType
		el.Fixed = value
	} else {
		el.PatternType = valueType
		el.Pattern = value
	}
	el.Changed = true
	return nil
}

func elementTypeCode(el *sd.Element) string {
	if len(el.Types) == 0 {
		return ""
	}
	return el.Types[0].Code
}

// liftValue converts an ast.Value into its JSON-ready representation and
// reports the FHIR type suffix it was attached under, lifting a bare
// Code onto a CodeableConcept per the Fixed/Pattern rule's lift clause.
func liftValue(v ast.Value, typeCode string) (any, string) {
	switch val := v.(type) {
	case ast.Code:
		if typeCode == "CodeableConcept" {
			coding := map[string]any{"system": val.System, "code": val.Code}
			if val.HasDisplay {
				coding["display"] = val.Display
			}
			return map[string]any{"coding": []any{coding}}, "CodeableConcept"
		}
		m := map[string]any{"system": val.System, "code": val.Code}
		if val.HasDisplay {
			m["display"] = val.Display
		}
		return m, "Coding"
	case ast.Quantity:
		return map[string]any{"value": val.Value, "unit": val.Unit}, "Quantity"
	case ast.String:
		return val.Text, stringTypeOr(typeCode)
	case ast.Number:
		return val.Float, stringTypeOr(typeCode)
	case ast.Bool:
		return val.Value, stringTypeOr(typeCode)
	case ast.DateTimeLiteral:
		return val.Text, stringTypeOr(typeCode)
	case ast.Reference:
		return map[string]any{"reference": val.Targets[0]}, "Reference"
	case ast.Canonical:
		return val.Target, "canonical"
	default:
		return v, stringTypeOr(typeCode)
	}
}

func stringTypeOr(typeCode string) string {
	if typeCode != "" {
		return typeCode
	}
	return "string"
}
