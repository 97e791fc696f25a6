package importer

import "github.com/gofhir/fsh/ast"

// aliasTable builds the NAME -> URL map from the document's Alias
// entities (the first pass of alias resolution).
func (p *parser) aliasTable() map[string]string {
	table := make(map[string]string, len(p.doc.Aliases))
	for _, a := range p.doc.Aliases {
		table[a.Name] = a.URL
	}
	return table
}

// resolveAliases is the second pass: every token across the document
// that exactly matches a known alias name is rewritten to its URL.
func resolveAliases(doc *ast.Document, table map[string]string) {
	if len(table) == 0 {
		return
	}
	resolve := func(s string) string {
		if url, ok := table[s]; ok {
			return url
		}
		return s
	}

	for _, pr := range doc.Profiles {
		pr.Parent = resolve(pr.Parent)
		resolveRules(pr.Rules, resolve)
	}
	for _, ex := range doc.Extensions {
		ex.Parent = resolve(ex.Parent)
		resolveRules(ex.Rules, resolve)
	}
	for _, in := range doc.Instances {
		in.InstanceOf = resolve(in.InstanceOf)
		for i, m := range in.Mixins {
			in.Mixins[i] = resolve(m)
		}
		resolveRules(in.Rules, resolve)
	}
	for _, rs := range doc.RuleSets {
		resolveRules(rs.Rules, resolve)
	}
}

func resolveRules(rules []ast.Rule, resolve func(string) string) {
	for i, r := range rules {
		switch rule := r.(type) {
		case ast.ValueSetBindingRule:
			rule.ValueSet = resolve(rule.ValueSet)
			rules[i] = rule
		case ast.OnlyRule:
			for j, t := range rule.Types {
				rule.Types[j].Name = resolve(t.Name)
			}
			rules[i] = rule
		case ast.ContainsRule:
			for j, item := range rule.Items {
				rule.Items[j].Type = resolve(item.Type)
				_ = item
			}
			rules[i] = rule
		case ast.FixedValueRule:
			rule.Value = resolveValue(rule.Value, resolve)
			rules[i] = rule
		case ast.AssignmentRule:
			rule.Value = resolveValue(rule.Value, resolve)
			rules[i] = rule
		case ast.CaretValueRule:
			rule.Value = resolveValue(rule.Value, resolve)
			rules[i] = rule
		}
	}
}

func resolveValue(v ast.Value, resolve func(string) string) ast.Value {
	switch val := v.(type) {
	case ast.Code:
		val.System = resolve(val.System)
		return val
	case ast.Reference:
		for i, t := range val.Targets {
			val.Targets[i] = resolve(t)
		}
		return val
	case ast.Canonical:
		val.Target = resolve(val.Target)
		return val
	default:
		return v
	}
}
