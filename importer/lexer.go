package importer

import (
	"errors"
	"strings"
)

var errReused = errors.New("importer: instance already used")

// line is one logical source line: a physical line, or several physical
// lines merged by a triple-quoted string literal that spans them.
type line struct {
	text      string
	startLine int
	startCol  int
}

// lex splits source into logical lines, normalizing line endings to LF,
// stripping full-line comments ("//" at the start of a trimmed line),
// and merging any run of physical lines enclosed in a triple-quoted
// string ("""...""") into a single logical line so the parser never
// has to look across line boundaries itself.
func lex(source string) []line {
	normalized := strings.ReplaceAll(source, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	raw := strings.Split(normalized, "\n")

	var out []line
	i := 0
	for i < len(raw) {
		text := raw[i]
		trimmed := strings.TrimSpace(text)

		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			i++
			continue
		}

		if count := strings.Count(text, `"""`); count == 1 {
			// Opens a triple-quoted string that continues on later lines;
			// merge lines until a closing """ is found.
			merged := []string{text}
			startLine := i + 1
			j := i + 1
			for j < len(raw) && !strings.Contains(raw[j], `"""`) {
				merged = append(merged, raw[j])
				j++
			}
			if j < len(raw) {
				merged = append(merged, raw[j])
				j++
			}
			out = append(out, line{text: strings.Join(merged, "\n"), startLine: startLine, startCol: 1})
			i = j
			continue
		}

		out = append(out, line{text: text, startLine: i + 1, startCol: 1})
		i++
	}
	return out
}
