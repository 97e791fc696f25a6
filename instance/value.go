package instance

import (
	"reflect"
	"strings"

	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/compileerr"
	"github.com/gofhir/fsh/sd"
)

// pathWriter assigns values into the instance's JSON-shaped data tree,
// remembering which array index a given named slice was assigned so
// multiple rules targeting the same slice (e.g. two separate lines
// under "category[vitalSign]") land on the same array element.
type pathWriter struct {
	sliceIndex map[string]int // "<prefix>:<sliceName>" -> array index
	nextIndex  map[string]int // "<prefix>" -> next free array index
}

func newPathWriter() *pathWriter {
	return &pathWriter{sliceIndex: map[string]int{}, nextIndex: map[string]int{}}
}

// Set writes value at the location segs describes within data.
func (w *pathWriter) Set(data map[string]any, segs []ast.Segment, value any) {
	cur := data
	prefix := ""
	for i, seg := range segs {
		last := i == len(segs)-1
		if prefix == "" {
			prefix = seg.Name
		} else {
			prefix = prefix + "." + seg.Name
		}

		switch {
		case seg.Slice != "":
			idx := w.sliceArrayIndex(prefix, seg.Slice)
			arr := ensureArray(cur, seg.Name, idx+1)
			if last {
				arr[idx] = value
			} else {
				cur = ensureMapAt(arr, idx)
			}
		case seg.Index >= 0:
			arr := ensureArray(cur, seg.Name, seg.Index+1)
			if last {
				arr[seg.Index] = value
			} else {
				cur = ensureMapAt(arr, seg.Index)
			}
		default:
			if last {
				cur[seg.Name] = value
			} else {
				child, ok := cur[seg.Name].(map[string]any)
				if !ok {
					child = map[string]any{}
					cur[seg.Name] = child
				}
				cur = child
			}
		}
	}
}

func (w *pathWriter) sliceArrayIndex(prefix, sliceName string) int {
	key := prefix + ":" + sliceName
	if idx, ok := w.sliceIndex[key]; ok {
		return idx
	}
	idx := w.nextIndex[prefix]
	w.sliceIndex[key] = idx
	w.nextIndex[prefix] = idx + 1
	return idx
}

func ensureArray(cur map[string]any, key string, minLen int) []any {
	arr, _ := cur[key].([]any)
	for len(arr) < minLen {
		arr = append(arr, nil)
	}
	cur[key] = arr
	return arr
}

func ensureMapAt(arr []any, idx int) map[string]any {
	if m, ok := arr[idx].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	arr[idx] = m
	return m
}

// valueJSON converts a literal ast.Value into its JSON-ready
// representation. Reference/Canonical/InstanceRef values are handled
// by Exporter.resolveValue before reaching here, since they need
// cross-entity lookup this package doesn't own.
func valueJSON(v ast.Value) any {
	switch val := v.(type) {
	case ast.String:
		return val.Text
	case ast.Number:
		return val.Float
	case ast.Bool:
		return val.Value
	case ast.DateTimeLiteral:
		return val.Text
	case ast.Code:
		m := map[string]any{"code": val.Code}
		if val.System != "" {
			m["system"] = val.System
		}
		if val.HasDisplay {
			m["display"] = val.Display
		}
		return m
	case ast.Quantity:
		m := map[string]any{"value": val.Value}
		if val.Unit != "" {
			m["unit"] = val.Unit
			m["system"] = "http://unitsofmeasure.org"
			m["code"] = val.Unit
		}
		return m
	case ast.Ratio:
		return map[string]any{
			"numerator":   valueJSON(val.Numerator),
			"denominator": valueJSON(val.Denominator),
		}
	default:
		return nil
	}
}

// impliedConflict reports whether assigning value at the path segs name
// would disagree with an SD-supplied pattern or fixed value at that same
// element, per the conflict semantics: a primitive fixed value never
// yields; an element-typed pattern yields only when the assigned value
// is a superset of it (the assignment already carries the pattern's
// fields plus more, so the union is simply the assignment itself).
func impliedConflict(tree *sd.Tree, segs []ast.Segment, value any) (implied any, kind compileerr.Kind, conflict bool) {
	if tree == nil || len(tree.Nodes) == 0 || len(segs) == 0 {
		return nil, "", false
	}
	root := tree.Get(tree.Root())
	rel := joinSegmentNames(segs)
	full := root.Path + "." + rel

	idx, ok := tree.ByPath(full)
	if !ok {
		idx, ok = tree.ByPath(full + "[x]")
	}
	if !ok {
		return nil, "", false
	}

	el := tree.Get(idx)
	switch {
	case el.Fixed != nil:
		if !reflect.DeepEqual(el.Fixed, value) {
			return el.Fixed, compileerr.ValueAlreadyFixed, true
		}
	case el.Pattern != nil:
		if !reflect.DeepEqual(el.Pattern, value) && !valueContains(el.Pattern, value) {
			return el.Pattern, compileerr.FixedToPattern, true
		}
	}
	return nil, "", false
}

func joinSegmentNames(segs []ast.Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.Name)
	}
	return b.String()
}

// valueContains reports whether every field of sub is present with an
// equal (recursively contained) value in sup, the "superset assignment"
// test for a pattern/assignment conflict.
func valueContains(sub, sup any) bool {
	switch subVal := sub.(type) {
	case map[string]any:
		supVal, ok := sup.(map[string]any)
		if !ok {
			return false
		}
		for k, v := range subVal {
			sv, ok := supVal[k]
			if !ok || !valueContains(v, sv) {
				return false
			}
		}
		return true
	case []any:
		supVal, ok := sup.([]any)
		if !ok {
			return false
		}
		for _, sv := range subVal {
			found := false
			for _, tv := range supVal {
				if valueContains(sv, tv) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(sub, sup)
	}
}

// applyImpliedValues walks resolved's snapshot and, for every element
// whose dotted relative path is a prefix some assignment rule reached,
// writes that element's pattern/fixed value first — so a later explicit
// assignment at the same concrete path can still overwrite it.
func applyImpliedValues(data map[string]any, tree *sd.Tree, reached map[string]bool, w *pathWriter) {
	if tree == nil || len(tree.Nodes) == 0 {
		return
	}
	rootIdx := tree.Root()
	root := tree.Get(rootIdx)
	walkImplied(data, tree, rootIdx, root.Path, reached, w)
}

func walkImplied(data map[string]any, tree *sd.Tree, idx int, rootPath string, reached map[string]bool, w *pathWriter) {
	el := tree.Get(idx)
	for _, childIdx := range el.Children {
		child := tree.Get(childIdx)
		rel := strings.TrimPrefix(child.Path, rootPath+".")
		rel = strings.TrimSuffix(rel, "[x]")
		if rel == "" || !reached[rel] {
			continue
		}
		var implied any
		switch {
		case child.Pattern != nil:
			implied = child.Pattern
		case child.Fixed != nil:
			implied = child.Fixed
		}
		if implied != nil {
			w.Set(data, ast.Path(rel).Segments(), implied)
		}
		walkImplied(data, tree, childIdx, rootPath, reached, w)
	}
}

// stringLikeTypeCodes lists the FHIR primitive type codes a quoted
// string or date/time lexeme may be assigned to; the grammar treats
// date/time values as opaque strings (§4.1), so DateTimeLiteral is
// checked against the same set as String.
var stringLikeTypeCodes = map[string]bool{
	"string": true, "code": true, "uri": true, "url": true, "canonical": true,
	"markdown": true, "id": true, "base64Binary": true, "oid": true, "uuid": true,
	"date": true, "dateTime": true, "time": true, "instant": true, "xhtml": true,
}

// numberLikeTypeCodes lists the FHIR primitive type codes a decimal
// numeric literal may be assigned to.
var numberLikeTypeCodes = map[string]bool{
	"decimal": true, "integer": true, "integer64": true, "positiveInt": true, "unsignedInt": true,
}

// quantityLikeTypeCodes lists the FHIR complex types whose shape a
// Quantity literal may be assigned to, covering Quantity's own
// FHIR-defined specializations.
var quantityLikeTypeCodes = map[string]bool{
	"Quantity": true, "Age": true, "Count": true, "Distance": true, "Duration": true, "Money": true, "SimpleQuantity": true,
}

// valueCompatibleWithTypeCode reports whether v is a legal value for an
// element of the given FHIR type code, grounded on the same lift/type
// vocabulary sdexport.liftValue uses for Fixed/Pattern rules: a bare
// Code value may attach to a Coding or (lifted) CodeableConcept; every
// other literal form maps to one fixed family of primitive/complex type
// codes.
func valueCompatibleWithTypeCode(v ast.Value, code string) bool {
	switch v.(type) {
	case ast.String, ast.DateTimeLiteral:
		return stringLikeTypeCodes[code]
	case ast.Number:
		return numberLikeTypeCodes[code]
	case ast.Bool:
		return code == "boolean"
	case ast.Code:
		return code == "code" || code == "Coding" || code == "CodeableConcept"
	case ast.Quantity:
		return quantityLikeTypeCodes[code]
	case ast.Ratio:
		return code == "Ratio" || code == "RatioRange"
	case ast.Reference:
		return code == "Reference"
	case ast.Canonical:
		return code == "canonical"
	default:
		return true
	}
}

// resolveElementTypes finds the type set the SD declares for a
// segmented assignment path, read-only: unlike sd.Resolver (whose
// mutating walk is meant for the SD Exporter's own private tree clone),
// this never adds a node to tree — a resolved Instance's Snapshot is
// shared by every Instance exported against that profile, so a type
// lookup here must not materialize the choice-specialization views the
// SD Exporter's path resolver creates. ambiguous reports a literal
// "[x]" path segment (the author targeted the choice base itself)
// whose element still carries more than one candidate type, which step
// 6 can't validate against a single type code.
func resolveElementTypes(tree *sd.Tree, segs []ast.Segment) (types []sd.TypeRef, ambiguous bool, resolved bool) {
	if tree == nil || len(tree.Nodes) == 0 || len(segs) == 0 {
		return nil, false, false
	}
	parent := tree.Root()
	path := tree.Get(parent).Path

	for i, seg := range segs {
		last := i == len(segs)-1
		childPath := path + "." + seg.Name

		switch {
		case seg.Choice:
			idx, ok := tree.ByPath(childPath + "[x]")
			if !ok {
				return nil, false, false
			}
			if last {
				el := tree.Get(idx)
				if len(el.Types) != 1 {
					return nil, true, true
				}
				return el.Types, false, true
			}
			parent, path = idx, childPath+"[x]"

		case seg.Slice != "":
			idx, ok := tree.ByID(childPath + ":" + seg.Slice)
			if !ok {
				return nil, false, false
			}
			if last {
				return tree.Get(idx).Types, false, true
			}
			// a slice's descendant element paths omit the slice suffix, the
			// same convention sd.Resolver's own step follows.
			parent, path = idx, childPath

		case seg.Index >= 0:
			idx, ok := tree.ByPath(childPath)
			if !ok {
				return nil, false, false
			}
			if last {
				return tree.Get(idx).Types, false, true
			}
			parent, path = idx, childPath

		default:
			if idx, ok := tree.ByPath(childPath); ok {
				if last {
					return tree.Get(idx).Types, false, true
				}
				parent, path = idx, childPath
				continue
			}
			idx, specializedPath, suffix, ok := matchChoiceChild(tree, parent, path, seg.Name)
			if !ok {
				return nil, false, false
			}
			if last {
				return []sd.TypeRef{{Code: choiceSuffixTypeCode(suffix)}}, false, true
			}
			parent, path = idx, specializedPath
		}
	}
	return nil, false, false
}

// primitiveChoiceSuffixes is the subset of sd.ChoiceTypeSuffixes naming a
// FHIR primitive type, whose actual type code is lowercase even though
// the choice suffix itself is capitalized (e.g. "valueString" ->
// suffix "String" -> type code "string").
var primitiveChoiceSuffixes = map[string]bool{
	"Base64Binary": true, "Boolean": true, "Canonical": true, "Code": true, "Date": true, "DateTime": true,
	"Decimal": true, "Id": true, "Instant": true, "Integer": true, "Integer64": true, "Markdown": true, "Oid": true,
	"PositiveInt": true, "String": true, "Time": true, "UnsignedInt": true, "Uri": true, "Url": true, "Uuid": true,
}

// choiceSuffixTypeCode converts a choice-suffix type name (always
// capitalized, per sd.ChoiceTypeSuffixes) to the FHIR type code a
// choice-specialized element's Types actually carries elsewhere in the
// tree.
func choiceSuffixTypeCode(suffix string) string {
	if primitiveChoiceSuffixes[suffix] {
		return sd.LowerFirst(suffix)
	}
	return suffix
}

// matchChoiceChild finds a "<base>[x]" child of parent whose base name
// is candidateName with a recognized type suffix trimmed off, mirroring
// sd.Resolver's own choice-base specialization (state (b) of the path
// resolver state machine) without adding a node to the arena.
func matchChoiceChild(tree *sd.Tree, parent int, parentPath, candidateName string) (idx int, specializedPath, suffix string, ok bool) {
	for _, childIdx := range tree.Get(parent).Children {
		child := tree.Get(childIdx)
		if !strings.HasSuffix(child.Path, "[x]") {
			continue
		}
		baseName := strings.TrimSuffix(strings.TrimPrefix(child.Path, parentPath+"."), "[x]")
		if s, matched := sd.MatchChoiceSuffix(candidateName, baseName); matched {
			return childIdx, parentPath + "." + candidateName, s, true
		}
	}
	return -1, "", "", false
}

// validateAssignmentValue implements step 6 of the Instance Exporter
// algorithm: it validates v against the type set tree declares at segs,
// returning a CompileError when the value is not a member of that set.
// A path the SD tree can't resolve, or an element with no tracked type
// set (e.g. a BackboneElement), is accepted without a type check —
// resolution failures here would only duplicate whatever the path
// writer/implied-value pass already reports for a truly bad path.
func validateAssignmentValue(tree *sd.Tree, segs []ast.Segment, v ast.Value) *compileerr.CompileError {
	types, ambiguous, resolved := resolveElementTypes(tree, segs)
	if !resolved {
		return nil
	}
	if ambiguous {
		return compileerr.New(compileerr.NoSingleType, "element has more than one candidate type; a choice element must be assigned by its type-suffixed name")
	}
	if len(types) == 0 {
		return nil
	}
	for _, t := range types {
		if valueCompatibleWithTypeCode(v, t.Code) {
			return nil
		}
	}
	codes := make([]string, len(types))
	for i, t := range types {
		codes[i] = t.Code
	}
	return compileerr.New(compileerr.MismatchedType, "value is not compatible with type(s) %s", strings.Join(codes, ", "))
}

// inlineOverride records that paths under prefix describe a nested
// inline resource's own data, to be validated against tree (that
// resource's own element tree) rather than the containing instance's.
type inlineOverride struct {
	prefix string
	tree   *sd.Tree
}

// inlineOverrides implements step 5 of the Instance Exporter algorithm:
// scanning rules for an assignment whose value is itself another named
// Instance (an inline resource, not a Reference to one), and recording
// a replacement instanceOf for every path under it.
func inlineOverrides(rules []ast.Rule, resolve InlineResolver) []inlineOverride {
	if resolve == nil {
		return nil
	}
	var out []inlineOverride
	for _, r := range rules {
		ar, ok := r.(ast.AssignmentRule)
		if !ok {
			continue
		}
		ref, ok := ar.Value.(ast.InstanceRef)
		if !ok {
			continue
		}
		_, tree, ok := resolve(ref.Name)
		if !ok || tree == nil {
			continue
		}
		out = append(out, inlineOverride{prefix: joinSegmentNames(ar.RulePath().Segments()), tree: tree})
	}
	return out
}

// overrideFor returns the most specific inline override that is a
// strict ancestor of segs' path, and segs re-rooted relative to that
// override's prefix (so the returned segments resolve against the
// nested resource's own tree starting from its own root).
func overrideFor(overrides []inlineOverride, segs []ast.Segment) (tree *sd.Tree, relSegs []ast.Segment, ok bool) {
	full := joinSegmentNames(segs)
	var best *inlineOverride
	for i := range overrides {
		o := &overrides[i]
		if !strings.HasPrefix(full, o.prefix+".") {
			continue
		}
		if best == nil || len(o.prefix) > len(best.prefix) {
			best = o
		}
	}
	if best == nil {
		return nil, nil, false
	}
	rel := strings.TrimPrefix(full, best.prefix+".")
	return best.tree, ast.Path(rel).Segments(), true
}
