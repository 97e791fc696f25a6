package instance

import (
	"strings"

	"github.com/gofhir/fsh/compileerr"
	"github.com/gofhir/fsh/diag"
	"github.com/gofhir/fsh/sd"
)

// clean drops empty containers and padding holes left behind by the
// array-growing writer, recursively.
func clean(data map[string]any) {
	for k, v := range data {
		switch val := v.(type) {
		case map[string]any:
			clean(val)
			if len(val) == 0 {
				delete(data, k)
			}
		case []any:
			cleaned := cleanArray(val)
			if len(cleaned) == 0 {
				delete(data, k)
			} else {
				data[k] = cleaned
			}
		case nil:
			delete(data, k)
		}
	}
}

func cleanArray(arr []any) []any {
	out := make([]any, 0, len(arr))
	for _, item := range arr {
		switch val := item.(type) {
		case nil:
			continue
		case map[string]any:
			clean(val)
			if len(val) == 0 {
				continue
			}
			out = append(out, val)
		case []any:
			cleaned := cleanArray(val)
			if len(cleaned) == 0 {
				continue
			}
			out = append(out, cleaned)
		default:
			out = append(out, val)
		}
	}
	return out
}

// validateRequired recursively walks the resolved SD's element tree and
// checks every child with min > 0 has at least one occurrence in data,
// handling the choice-element "any valueXxx present" case at the
// object level (array-nested choice elements are not walked, a known
// simplification: only top-level and object-nested required choices are
// validated).
func (ex *Exporter) validateRequired(tree *sd.Tree, rootIdx int, data map[string]any, span diag.Span) {
	root := tree.Get(rootIdx)
	ex.walkRequired(tree, rootIdx, root.Path, data, span)
}

func (ex *Exporter) walkRequired(tree *sd.Tree, idx int, rootPath string, data map[string]any, span diag.Span) {
	el := tree.Get(idx)
	for _, childIdx := range el.Children {
		child := tree.Get(childIdx)
		rel := strings.TrimPrefix(child.Path, rootPath+".")
		isChoice := strings.HasSuffix(rel, "[x]")
		base := strings.TrimSuffix(rel, "[x]")

		var present bool
		if isChoice {
			present = choicePresent(data, base)
		} else {
			present = pathPresent(data, rel)
		}

		if child.Min > 0 && !present {
			ce := compileerr.New(compileerr.RequiredElementMissing, "required element missing: %s", rel).WithSpan(span)
			ex.Sink.Error(ex.File, &span, "%v", ce)
		}
		if present && !isChoice {
			ex.walkRequired(tree, childIdx, rootPath, data, span)
		}
	}
}

func pathPresent(data map[string]any, relPath string) bool {
	parts := strings.Split(relPath, ".")
	var cur any = data
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		v, exists := m[p]
		if !exists {
			return false
		}
		cur = v
	}
	return isNonEmpty(cur)
}

// choicePresent reports whether any "<base>Xxx" key, or the primitive
// sibling "_<base>", is present at base's parent object.
func choicePresent(data map[string]any, base string) bool {
	dot := strings.LastIndexByte(base, '.')
	parentPath, name := "", base
	if dot >= 0 {
		parentPath, name = base[:dot], base[dot+1:]
	}
	var parent map[string]any
	if parentPath == "" {
		parent = data
	} else {
		v, ok := navigate(data, parentPath)
		if !ok {
			return false
		}
		parent, ok = v.(map[string]any)
		if !ok {
			return false
		}
	}
	if _, ok := parent["_"+name]; ok {
		return true
	}
	for k, v := range parent {
		if !strings.HasPrefix(k, name) {
			continue
		}
		if _, ok := sd.MatchChoiceSuffix(k, name); ok && isNonEmpty(v) {
			return true
		}
	}
	return false
}

func navigate(data map[string]any, relPath string) (any, bool) {
	var cur any = data
	for _, p := range strings.Split(relPath, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, exists := m[p]
		if !exists {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func isNonEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case map[string]any:
		return len(val) > 0
	case []any:
		return len(val) > 0
	default:
		return true
	}
}
