package importer

import (
	"strconv"
	"strings"

	"github.com/gofhir/fsh/ast"
)

// parseValue parses a value expression starting at toks[0] and returns
// the value, whether a trailing "(exactly)" marker was present, and the
// number of tokens consumed from the front of toks.
func parseValue(toks []string) (value ast.Value, exactly bool, consumed int) {
	if len(toks) == 0 {
		return ast.String{}, false, 0
	}

	// Ratio: "q1 : q2" — a bare ":" token at top level separates two units.
	for i, t := range toks {
		if t == ":" {
			left, _, lc := parseValueUnit(toks[:i])
			right, _, rc := parseValueUnit(toks[i+1:])
			_ = lc
			consumed = i + 1 + rc
			value = ast.Ratio{Numerator: left, Denominator: right}
			exactly, consumed = consumeExactly(toks, consumed)
			return value, exactly, consumed
		}
	}

	value, _, consumed = parseValueUnit(toks)
	exactly, consumed = consumeExactly(toks, consumed)
	return value, exactly, consumed
}

func consumeExactly(toks []string, consumed int) (bool, int) {
	if consumed < len(toks) && toks[consumed] == "(exactly)" {
		return true, consumed + 1
	}
	return false, consumed
}

// parseValueUnit parses a single value atom (not a ratio) and reports
// how many tokens it consumed.
func parseValueUnit(toks []string) (value ast.Value, ok bool, consumed int) {
	if len(toks) == 0 {
		return ast.String{}, false, 0
	}
	t := toks[0]

	switch {
	case strings.HasPrefix(t, `"""`):
		text, _ := unquote(t)
		return ast.String{Text: text, Multiline: true}, true, 1

	case strings.HasPrefix(t, `"`):
		text, _ := unquote(t)
		return ast.String{Text: text}, true, 1

	case t == "true" || t == "false":
		return ast.Bool{Value: t == "true"}, true, 1

	case strings.HasPrefix(t, "Reference(") && strings.HasSuffix(t, ")"):
		inner := t[len("Reference(") : len(t)-1]
		parts := splitAlternates(inner)
		return ast.Reference{Targets: parts}, true, 1

	case strings.HasPrefix(t, "Canonical(") && strings.HasSuffix(t, ")"):
		inner := t[len("Canonical(") : len(t)-1]
		return ast.Canonical{Target: strings.TrimSpace(inner)}, true, 1

	case strings.Contains(t, "#"):
		system, code, _ := strings.Cut(t, "#")
		c := ast.Code{System: system, Code: code}
		if len(toks) > 1 && strings.HasPrefix(toks[1], `"`) {
			display, _ := unquote(toks[1])
			c.Display = display
			c.HasDisplay = true
			return c, true, 2
		}
		return c, true, 1

	case isNumberToken(t):
		f, _ := strconv.ParseFloat(t, 64)
		if len(toks) > 1 && strings.HasPrefix(toks[1], "'") && strings.HasSuffix(toks[1], "'") {
			unit := toks[1][1 : len(toks[1])-1]
			return ast.Quantity{Value: f, Unit: unit}, true, 2
		}
		return ast.Number{Text: t, Float: f}, true, 1

	case looksLikeDateTime(t):
		return ast.DateTimeLiteral{Text: t}, true, 1

	default:
		return ast.InstanceRef{Name: t}, true, 1
	}
}

func splitAlternates(s string) []string {
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func isNumberToken(t string) bool {
	if t == "" {
		return false
	}
	i := 0
	if t[0] == '-' || t[0] == '+' {
		i = 1
	}
	if i >= len(t) {
		return false
	}
	sawDigit := false
	for ; i < len(t); i++ {
		c := t[i]
		if c >= '0' && c <= '9' {
			sawDigit = true
			continue
		}
		if c == '.' {
			continue
		}
		return false
	}
	return sawDigit
}

func looksLikeDateTime(t string) bool {
	if len(t) < 4 {
		return false
	}
	if t[0] < '0' || t[0] > '9' {
		return false
	}
	return strings.Contains(t, "-") || strings.Contains(t, ":")
}
