// Package ruleexpand implements Insert-rule expansion: flattening a
// "* insert RuleSetName" rule into the named RuleSet's rules at its
// textual position, recursively, with a cycle guard. Both the
// StructureDefinition Exporter and the Instance Exporter share this
// logic; the only difference between them is which non-Insert rule
// kinds are legal in the rule stream they're expanding into.
package ruleexpand

import (
	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/compileerr"
	"github.com/gofhir/fsh/diag"
)

// Resolver looks up a named RuleSet, the capability Insert rule
// expansion needs from the Tank.
type Resolver func(name string) (*ast.RuleSet, bool)

// Target distinguishes which rule kinds are legal in the stream being
// expanded into, so illegal rule types are dropped with a diagnostic
// rather than silently applied.
type Target int

const (
	// TargetStructureDefinition accepts constraint rules and Insert;
	// Assignment rules are illegal.
	TargetStructureDefinition Target = iota
	// TargetInstance accepts Assignment and Insert; constraint rules are
	// illegal.
	TargetInstance
)

// Expand flattens rules, recursively expanding Insert rules, guarding
// against cycles with a per-call expansion stack, and dropping any rule
// kind illegal for target.
func Expand(rules []ast.Rule, resolve Resolver, sink *diag.Sink, file string, target Target) []ast.Rule {
	return expandStack(rules, resolve, sink, file, target, map[string]bool{})
}

func expandStack(rules []ast.Rule, resolve Resolver, sink *diag.Sink, file string, target Target, stack map[string]bool) []ast.Rule {
	out := make([]ast.Rule, 0, len(rules))
	for _, r := range rules {
		ins, ok := r.(ast.InsertRule)
		if !ok {
			if !legal(r, target) {
				span := r.RuleSpan()
				sink.Error(file, &span, "rule not valid in this context: %s", r.RulePath())
				continue
			}
			out = append(out, r)
			continue
		}

		applied := ins.Span
		if stack[ins.RuleSetName] {
			ce := compileerr.New(compileerr.CannotResolvePath, "cycle detected expanding RuleSet %q", ins.RuleSetName).WithSpan(ins.Span)
			sink.Error(file, &applied, "%v", ce)
			continue
		}
		rs, ok := resolve(ins.RuleSetName)
		if !ok {
			sink.Error(file, &applied, "RuleSet not found: %s", ins.RuleSetName)
			continue
		}

		stack[ins.RuleSetName] = true
		expanded := expandStack(rs.Rules, resolve, sink, file, target, stack)
		delete(stack, ins.RuleSetName)

		out = append(out, expanded...)
	}
	return out
}

func legal(r ast.Rule, target Target) bool {
	switch r.(type) {
	case ast.CardRule, ast.FlagRule, ast.ValueSetBindingRule, ast.OnlyRule,
		ast.ContainsRule, ast.CaretValueRule, ast.FixedValueRule:
		return target == TargetStructureDefinition
	case ast.AssignmentRule:
		return target == TargetInstance
	default:
		return true
	}
}
