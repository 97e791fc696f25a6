package ast

import "strings"

// Path is a dotted element specifier, e.g. "component.value[x]" or
// "category[niceSlice]" or "contained[0]". Segments carry an optional
// bracketed suffix that is either a numeric index, a slice name, or the
// literal "x" marking a choice element.
type Path string

// Segment is one dot-separated piece of a Path together with its
// bracket suffix, if any.
type Segment struct {
	Name  string
	Index int    // -1 if no numeric index
	Slice string // "" if no slice name
	Choice bool  // true if the bracket suffix was literally "[x]"
}

// Segments splits a Path into its dot-separated Segments.
func (p Path) Segments() []Segment {
	parts := strings.Split(string(p), ".")
	out := make([]Segment, 0, len(parts))
	for _, part := range parts {
		out = append(out, parseSegment(part))
	}
	return out
}

func parseSegment(part string) Segment {
	seg := Segment{Index: -1}
	open := strings.IndexByte(part, '[')
	if open == -1 {
		seg.Name = part
		return seg
	}
	close := strings.IndexByte(part, ']')
	if close == -1 || close < open {
		seg.Name = part
		return seg
	}
	seg.Name = part[:open]
	inner := part[open+1 : close]
	switch {
	case inner == "x":
		seg.Choice = true
	case isDigits(inner):
		idx := 0
		for _, c := range inner {
			idx = idx*10 + int(c-'0')
		}
		seg.Index = idx
	default:
		seg.Slice = inner
	}
	return seg
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// String returns the path text.
func (p Path) String() string { return string(p) }

// Last returns the final segment's name, stripped of any bracket suffix.
func (p Path) Last() string {
	segs := p.Segments()
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1].Name
}
