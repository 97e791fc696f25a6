package importer

import (
	"strings"

	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/diag"
)

type parser struct {
	file  string
	lines []line
	sink  *diag.Sink
	doc   *ast.Document

	cur     ast.Entity
	curRules *[]ast.Rule
}

var headerKeywords = map[string]bool{
	"Profile": true, "Extension": true, "Instance": true, "RuleSet": true, "Alias": true,
}

var metadataKeys = map[string]bool{
	"Id": true, "Parent": true, "Title": true, "Description": true,
	"InstanceOf": true, "Usage": true, "Mixins": true,
}

func (p *parser) run() {
	for _, ln := range p.lines {
		trimmed := strings.TrimSpace(ln.text)
		span := p.span(ln)

		if strings.HasPrefix(trimmed, "*") {
			p.parseRuleLine(trimmed[1:], span)
			continue
		}

		if key, rest, ok := splitHeader(trimmed); ok && headerKeywords[key] {
			p.startEntity(key, rest, span)
			continue
		}

		if key, rest, ok := splitHeader(trimmed); ok && metadataKeys[key] {
			p.applyMetadata(key, rest, span)
			continue
		}

		if key, _, ok := splitHeader(trimmed); ok {
			p.sink.Warn(p.file, &span, "unknown metadata: %s", key)
			continue
		}

		p.sink.Warn(p.file, &span, "unsupported rule: %s", trimmed)
	}
}

func (p *parser) span(ln line) diag.Span {
	pos := diag.Pos{Line: ln.startLine, Column: ln.startCol}
	return diag.Span{File: p.file, Start: pos, End: pos}
}

func splitHeader(line string) (key, rest string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx == -1 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	rest = strings.TrimSpace(line[idx+1:])
	if key == "" {
		return "", "", false
	}
	for _, r := range key {
		if !(r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return "", "", false
		}
	}
	return key, rest, true
}

func (p *parser) startEntity(keyword, name string, span diag.Span) {
	base := ast.EntityBase{Name: name, Span: span}

	switch keyword {
	case "Profile":
		e := &ast.Profile{EntityBase: base}
		p.doc.Profiles = append(p.doc.Profiles, e)
		p.cur = e
		p.curRules = &e.Rules
	case "Extension":
		e := &ast.Extension{EntityBase: base}
		p.doc.Extensions = append(p.doc.Extensions, e)
		p.cur = e
		p.curRules = &e.Rules
	case "Instance":
		e := &ast.Instance{EntityBase: base}
		p.doc.Instances = append(p.doc.Instances, e)
		p.cur = e
		p.curRules = &e.Rules
	case "RuleSet":
		rsName, params := splitRuleSetParams(name)
		e := &ast.RuleSet{EntityBase: base, Params: params}
		e.Name = rsName
		p.doc.RuleSets = append(p.doc.RuleSets, e)
		p.cur = e
		p.curRules = &e.Rules
	case "Alias":
		// "Alias: NAME = URL" — name actually holds "NAME = URL" here
		// because ':' is the header delimiter, not '='.
		aliasName, url, ok := strings.Cut(name, "=")
		if !ok {
			p.sink.Warn(p.file, &span, "malformed alias: %s", name)
			return
		}
		a := &ast.Alias{EntityBase: ast.EntityBase{Name: strings.TrimSpace(aliasName), Span: span}, URL: strings.TrimSpace(url)}
		p.doc.Aliases = append(p.doc.Aliases, a)
		p.cur = nil
		p.curRules = nil
	}
}

func splitRuleSetParams(name string) (string, []string) {
	open := strings.IndexByte(name, '(')
	if open == -1 || !strings.HasSuffix(name, ")") {
		return name, nil
	}
	base := strings.TrimSpace(name[:open])
	inner := name[open+1 : len(name)-1]
	var params []string
	for _, p := range strings.Split(inner, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			params = append(params, p)
		}
	}
	return base, params
}

func (p *parser) applyMetadata(key, value string, span diag.Span) {
	if p.cur == nil {
		p.sink.Warn(p.file, &span, "metadata %q outside any entity", key)
		return
	}
	switch e := p.cur.(type) {
	case *ast.Profile:
		applyCommonMetadata(&e.EntityBase, &e.Parent, key, value)
	case *ast.Extension:
		applyCommonMetadata(&e.EntityBase, &e.Parent, key, value)
	case *ast.Instance:
		switch key {
		case "InstanceOf":
			e.InstanceOf = value
		case "Usage":
			e.Usage, e.UsageExplicit = parseUsage(value), true
		case "Mixins":
			e.Mixins = splitAlternates(strings.ReplaceAll(value, ",", "|"))
		default:
			applyEntityBaseField(&e.EntityBase, key, value)
		}
	case *ast.RuleSet:
		applyEntityBaseField(&e.EntityBase, key, value)
	}
}

func applyCommonMetadata(base *ast.EntityBase, parent *string, key, value string) {
	switch key {
	case "Parent":
		*parent = value
	default:
		applyEntityBaseField(base, key, value)
	}
}

func applyEntityBaseField(base *ast.EntityBase, key, value string) {
	switch key {
	case "Id":
		base.Id = value
	case "Title":
		base.Title = value
	case "Description":
		base.Description = value
	}
}

func parseUsage(v string) ast.Usage {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "inline":
		return ast.UsageInline
	case "definition":
		return ast.UsageDefinition
	default:
		return ast.UsageExample
	}
}
