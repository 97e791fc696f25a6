package importer

import (
	"regexp"
	"strings"

	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/diag"
)

var cardPattern = regexp.MustCompile(`^\d+\.\.(\*|\d+)$`)

func (p *parser) parseRuleLine(rest string, span diag.Span) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return
	}
	if p.curRules == nil {
		p.sink.Warn(p.file, &span, "rule outside any entity: %s", rest)
		return
	}

	toks := tokenize(rest)
	if len(toks) == 0 {
		return
	}

	if toks[0] == "insert" {
		p.parseInsert(toks[1:], span)
		return
	}

	paths, toks := takePaths(toks)
	if len(paths) == 0 {
		p.sink.Warn(p.file, &span, "unsupported rule: %s", rest)
		return
	}
	path := paths[0]

	switch {
	case len(toks) == 0:
		p.sink.Warn(p.file, &span, "unsupported rule: %s", rest)

	case strings.HasPrefix(toks[0], "^"):
		p.parseCaret(path, toks, span)

	case toks[0] == "from":
		p.parseBinding(path, toks[1:], span)

	case toks[0] == "only":
		p.parseOnly(path, toks[1:], span)

	case toks[0] == "contains":
		p.parseContains(path, toks[1:], span)

	case toks[0] == "=":
		p.parseFixedOrAssignment(path, toks[1:], span)

	case cardPattern.MatchString(toks[0]):
		p.parseCard(paths, toks, span)

	default:
		if isFlagToken(toks[0]) {
			p.parseFlags(paths, toks, span)
			return
		}
		p.sink.Warn(p.file, &span, "unsupported rule: %s", rest)
	}
}

// takePaths consumes a leading comma-separated list of path tokens (for
// the "path1, path2 flag" form) and returns the remaining tokens.
func takePaths(toks []string) ([]ast.Path, []string) {
	var paths []ast.Path
	i := 0
	for i < len(toks) {
		t := toks[i]
		if strings.HasSuffix(t, ",") {
			paths = append(paths, ast.Path(strings.TrimSuffix(t, ",")))
			i++
			continue
		}
		paths = append(paths, ast.Path(t))
		i++
		break
	}
	return paths, toks[i:]
}

func (p *parser) addRule(r ast.Rule) {
	*p.curRules = append(*p.curRules, r)
}

func (p *parser) parseInsert(toks []string, span diag.Span) {
	if len(toks) == 0 {
		p.sink.Warn(p.file, &span, "insert with no RuleSet name")
		return
	}
	name, params := splitRuleSetParams(toks[0])
	p.addRule(ast.InsertRule{Base: ast.Base{Span: span}, RuleSetName: name, Params: params})
}

func (p *parser) parseCard(paths []ast.Path, toks []string, span diag.Span) {
	min, max := splitCard(toks[0])
	p.addRule(ast.CardRule{Base: ast.Base{Path: paths[0], Span: span}, Min: min, Max: max})
	if flags := toks[1:]; len(flags) > 0 {
		p.parseFlags(paths, append([]string{"flag"}, flags...), span)
	}
}

func splitCard(t string) (int, string) {
	parts := strings.SplitN(t, "..", 2)
	min := 0
	for _, c := range parts[0] {
		min = min*10 + int(c-'0')
	}
	max := "*"
	if len(parts) > 1 {
		max = parts[1]
	}
	return min, max
}

func isFlagToken(t string) bool {
	switch t {
	case "MS", "SU", "?!":
		return true
	default:
		return false
	}
}

func (p *parser) parseFlags(paths []ast.Path, toks []string, span diag.Span) {
	// toks[0] is either a card token placeholder "flag" (from parseCard)
	// or the first real flag token.
	flagToks := toks
	if toks[0] == "flag" {
		flagToks = toks[1:]
	}

	fr := ast.FlagRule{Base: ast.Base{Path: paths[0], Span: span}, Paths: paths}
	any := false
	for _, f := range flagToks {
		switch f {
		case "MS":
			fr.MustSupport, fr.SetMustSupport, any = true, true, true
		case "SU":
			fr.Summary, fr.SetSummary, any = true, true, true
		case "?!":
			fr.Modifier, fr.SetModifier, any = true, true, true
		}
	}
	if !any {
		return
	}
	for _, path := range paths {
		r := fr
		r.Base.Path = path
		p.addRule(r)
	}
}

func (p *parser) parseBinding(path ast.Path, toks []string, span diag.Span) {
	if len(toks) == 0 {
		p.sink.Warn(p.file, &span, "binding rule missing value set")
		return
	}
	vs := toks[0]
	strength := ast.Required
	if len(toks) > 1 && strings.HasPrefix(toks[1], "(") && strings.HasSuffix(toks[1], ")") {
		strength = parseStrength(strings.Trim(toks[1], "()"))
	}
	p.addRule(ast.ValueSetBindingRule{Base: ast.Base{Path: path, Span: span}, ValueSet: vs, Strength: strength})
}

func parseStrength(s string) ast.BindingStrength {
	switch s {
	case "example":
		return ast.Example
	case "preferred":
		return ast.Preferred
	case "extensible":
		return ast.Extensible
	default:
		return ast.Required
	}
}

func (p *parser) parseOnly(path ast.Path, toks []string, span diag.Span) {
	if len(toks) == 0 {
		return
	}
	var types []ast.TypeRef
	var alts []string
	depth, start := 0, 0
	for i, c := range toks[0] {
		if c == '(' {
			depth++
		} else if c == ')' {
			depth--
		} else if c == '|' && depth == 0 {
			alts, start = append(alts, toks[0][start:i]), i+1
		}
	}
	alts = append(alts, toks[0][start:])
	for _, t := range alts {
		t = strings.TrimSpace(t)
		if strings.HasPrefix(t, "Reference(") && strings.HasSuffix(t, ")") {
			inner := t[len("Reference(") : len(t)-1]
			for _, ref := range splitAlternates(inner) {
				types = append(types, ast.TypeRef{Name: ref, IsReference: true})
			}
			continue
		}
		types = append(types, ast.TypeRef{Name: t})
	}
	p.addRule(ast.OnlyRule{Base: ast.Base{Path: path, Span: span}, Types: types})
}

func (p *parser) parseContains(path ast.Path, toks []string, span diag.Span) {
	var items []ast.ContainsItem
	i := 0
	for i < len(toks) {
		if toks[i] == "and" {
			i++
			continue
		}
		name := toks[i]
		i++
		item := ast.ContainsItem{Name: name}
		items = append(items, item)

		// Optional trailing card/flags for this item, up to "and" or end.
		var cardFlagToks []string
		for i < len(toks) && toks[i] != "and" {
			cardFlagToks = append(cardFlagToks, toks[i])
			i++
		}
		itemPath := ast.Path(path.String() + "[" + name + "]")
		if len(cardFlagToks) > 0 {
			if cardPattern.MatchString(cardFlagToks[0]) {
				p.parseCard([]ast.Path{itemPath}, cardFlagToks, span)
			} else if isFlagToken(cardFlagToks[0]) {
				p.parseFlags([]ast.Path{itemPath}, append([]string{"flag"}, cardFlagToks...), span)
			}
		}
	}
	p.addRule(ast.ContainsRule{Base: ast.Base{Path: path, Span: span}, Items: items})
}

func (p *parser) parseCaret(path ast.Path, toks []string, span diag.Span) {
	caretPath := strings.TrimPrefix(toks[0], "^")
	if len(toks) < 3 || toks[1] != "=" {
		p.sink.Warn(p.file, &span, "malformed caret rule on %s", path)
		return
	}
	value, _, _ := parseValue(toks[2:])
	p.addRule(ast.CaretValueRule{Base: ast.Base{Path: path, Span: span}, CaretPath: caretPath, Value: value})
}

func (p *parser) parseFixedOrAssignment(path ast.Path, toks []string, span diag.Span) {
	value, exactly, _ := parseValue(toks)
	isInstance := false
	if ref, ok := value.(ast.InstanceRef); ok {
		isInstance = true
		_ = ref
	}

	switch p.cur.(type) {
	case *ast.Instance:
		p.addRule(ast.AssignmentRule{Base: ast.Base{Path: path, Span: span}, Value: value, Exactly: exactly, IsInstance: isInstance})
	default:
		p.addRule(ast.FixedValueRule{Base: ast.Base{Path: path, Span: span}, Value: value, Exactly: exactly})
	}
}
