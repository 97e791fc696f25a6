package importer

import "strings"

// tokenize splits a logical line's remainder into whitespace-separated
// tokens, keeping a quoted string (single or triple quoted) or a
// parenthesized group as one token regardless of internal whitespace.
func tokenize(s string) []string {
	var toks []string
	i, n := 0, len(s)
	for i < n {
		for i < n && isSpace(s[i]) {
			i++
		}
		if i >= n {
			break
		}

		switch {
		case strings.HasPrefix(s[i:], `"""`):
			end := strings.Index(s[i+3:], `"""`)
			if end == -1 {
				toks = append(toks, s[i:])
				i = n
				continue
			}
			toks = append(toks, s[i:i+3+end+3])
			i = i + 3 + end + 3
		case s[i] == '"':
			j := i + 1
			for j < n && s[j] != '"' {
				if s[j] == '\\' && j+1 < n {
					j++
				}
				j++
			}
			if j < n {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		case s[i] == '(':
			depth := 1
			j := i + 1
			for j < n && depth > 0 {
				switch s[j] {
				case '(':
					depth++
				case ')':
					depth--
				}
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			j := i
			for j < n && !isSpace(s[j]) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' }

// unquote strips one layer of quoting: triple-quote (with common
// indentation stripped and leading/trailing blank lines discarded) or
// a single double-quoted string (with backslash escapes collapsed).
func unquote(tok string) (text string, multiline bool) {
	if strings.HasPrefix(tok, `"""`) && strings.HasSuffix(tok, `"""`) && len(tok) >= 6 {
		inner := tok[3 : len(tok)-3]
		return stripCommonIndent(inner), true
	}
	if strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) && len(tok) >= 2 {
		inner := tok[1 : len(tok)-1]
		return unescape(inner), false
	}
	return tok, false
}

func unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// stripCommonIndent implements the triple-quoted string normalization
// rule: discard a leading blank line and a trailing whitespace-only
// line, then strip the common leading indentation of the remaining
// lines.
func stripCommonIndent(s string) string {
	lines := strings.Split(s, "\n")

	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	common := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := len(l) - len(strings.TrimLeft(l, " \t"))
		if common == -1 || indent < common {
			common = indent
		}
	}
	if common <= 0 {
		return strings.Join(lines, "\n")
	}
	for i, l := range lines {
		if len(l) >= common {
			lines[i] = l[common:]
		} else {
			lines[i] = strings.TrimLeft(l, " \t")
		}
	}
	return strings.Join(lines, "\n")
}
