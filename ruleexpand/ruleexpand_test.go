package ruleexpand

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/diag"
)

func cardRule(path string) ast.CardRule {
	return ast.CardRule{Base: ast.Base{Path: ast.Path(path)}, Min: 0, Max: "1"}
}

func assignRule(path string) ast.AssignmentRule {
	return ast.AssignmentRule{Base: ast.Base{Path: ast.Path(path)}}
}

func insertRule(name string) ast.InsertRule {
	return ast.InsertRule{Base: ast.Base{}, RuleSetName: name}
}

func TestExpand_FlattensInsertRuleAtItsPosition(t *testing.T) {
	ruleSets := map[string]*ast.RuleSet{
		"CommonMeta": {Rules: []ast.Rule{cardRule("meta"), cardRule("id")}},
	}
	resolve := func(name string) (*ast.RuleSet, bool) { rs, ok := ruleSets[name]; return rs, ok }

	rules := []ast.Rule{cardRule("status"), insertRule("CommonMeta"), cardRule("code")}
	sink := diag.NewSink()
	out := Expand(rules, resolve, sink, "profile.fsh", TargetStructureDefinition)

	require.False(t, sink.HasErrors())
	require.Len(t, out, 4)
	require.Equal(t, ast.Path("status"), out[0].RulePath())
	require.Equal(t, ast.Path("meta"), out[1].RulePath())
	require.Equal(t, ast.Path("id"), out[2].RulePath())
	require.Equal(t, ast.Path("code"), out[3].RulePath())
}

func TestExpand_RecursivelyExpandsNestedInsert(t *testing.T) {
	ruleSets := map[string]*ast.RuleSet{
		"Inner": {Rules: []ast.Rule{cardRule("id")}},
		"Outer": {Rules: []ast.Rule{insertRule("Inner"), cardRule("status")}},
	}
	resolve := func(name string) (*ast.RuleSet, bool) { rs, ok := ruleSets[name]; return rs, ok }

	sink := diag.NewSink()
	out := Expand([]ast.Rule{insertRule("Outer")}, resolve, sink, "profile.fsh", TargetStructureDefinition)

	require.False(t, sink.HasErrors())
	require.Len(t, out, 2)
	require.Equal(t, ast.Path("id"), out[0].RulePath())
	require.Equal(t, ast.Path("status"), out[1].RulePath())
}

func TestExpand_DetectsCycleAndReportsError(t *testing.T) {
	ruleSets := map[string]*ast.RuleSet{
		"A": {Rules: []ast.Rule{insertRule("B")}},
		"B": {Rules: []ast.Rule{insertRule("A")}},
	}
	resolve := func(name string) (*ast.RuleSet, bool) { rs, ok := ruleSets[name]; return rs, ok }

	sink := diag.NewSink()
	out := Expand([]ast.Rule{insertRule("A")}, resolve, sink, "profile.fsh", TargetStructureDefinition)

	require.True(t, sink.HasErrors())
	require.Empty(t, out)
}

func TestExpand_UnresolvedRuleSetReportsError(t *testing.T) {
	resolve := func(name string) (*ast.RuleSet, bool) { return nil, false }
	sink := diag.NewSink()
	out := Expand([]ast.Rule{insertRule("Missing")}, resolve, sink, "profile.fsh", TargetStructureDefinition)

	require.True(t, sink.HasErrors())
	require.Empty(t, out)
}

func TestExpand_DropsAssignmentRuleInStructureDefinitionTarget(t *testing.T) {
	resolve := func(name string) (*ast.RuleSet, bool) { return nil, false }
	sink := diag.NewSink()
	out := Expand([]ast.Rule{assignRule("status")}, resolve, sink, "profile.fsh", TargetStructureDefinition)

	require.True(t, sink.HasErrors())
	require.Empty(t, out)
}

func TestExpand_AllowsAssignmentRuleInInstanceTarget(t *testing.T) {
	resolve := func(name string) (*ast.RuleSet, bool) { return nil, false }
	sink := diag.NewSink()
	out := Expand([]ast.Rule{assignRule("status")}, resolve, sink, "instance.fsh", TargetInstance)

	require.False(t, sink.HasErrors())
	require.Len(t, out, 1)
}

func TestExpand_DropsConstraintRuleInInstanceTarget(t *testing.T) {
	resolve := func(name string) (*ast.RuleSet, bool) { return nil, false }
	sink := diag.NewSink()
	out := Expand([]ast.Rule{cardRule("status")}, resolve, sink, "instance.fsh", TargetInstance)

	require.True(t, sink.HasErrors())
	require.Empty(t, out)
}
