// Package instance implements the Instance Exporter: turns an Instance
// entity plus its resolved instanceOf StructureDefinition into a
// JSON-shaped InstanceDefinition, applying assignment rules (after
// Insert/Mixin expansion), the SD's implied pattern/fixed values, and
// the cleanup and validation passes the algorithm describes.
package instance

import (
	"regexp"
	"strings"

	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/compileerr"
	"github.com/gofhir/fsh/diag"
	"github.com/gofhir/fsh/ruleexpand"
	"github.com/gofhir/fsh/sd"
)

// InstanceDefinition is the compiler's representation of one exported
// instance: the assembled JSON-shaped data tree plus the bookkeeping
// the Package Assembler needs for uniqueness and cross-referencing.
type InstanceDefinition struct {
	Name         string
	ResourceType string
	Id           string
	Usage        ast.Usage
	Data         map[string]any
}

// ReferenceResolver resolves an Instance-name token used inside
// Reference(Name)/Canonical(Name) to the string the wire format wants:
// "Type/id" for a sibling top-level instance, "#id" when the referent
// is already contained within the instance being built, or a canonical
// URL for Canonical(). containedIds holds the name of every instance the
// current instance's own rules have placed into its contained array, so the
// same referent can resolve to "#id" from one instance and "Type/id"
// from another depending on what each instance actually contains.
type ReferenceResolver func(name string, containedIds map[string]bool) (string, bool)

// CanonicalResolver resolves an Instance-name token used inside
// Canonical(Name) to its StructureDefinition's canonical URL.
type CanonicalResolver func(name string) (string, bool)

// InlineResolver looks up a named Instance's declared resourceType and
// the element tree of the SD its instanceOf resolves to (a base resource
// or a Profile/Extension) — the replacement instanceOf step 5 of the algorithm
// needs so a descendant assignment under an inline-resource path
// validates against the nested resource's own type, not the containing
// element's declared (generic) type.
type InlineResolver func(name string) (resourceType string, tree *sd.Tree, ok bool)

// Exporter holds the per-compilation collaborators the Instance
// Exporter needs.
type Exporter struct {
	Sink             *diag.Sink
	File             string
	ResolveRuleSet   ruleexpand.Resolver
	ResolveReference ReferenceResolver
	ResolveCanonical CanonicalResolver
	ResolveInline    InlineResolver
	// ReserveId records (resourceType, id) for the Package's uniqueness
	// invariant; it returns false if that pair was already reserved by
	// another non-inline instance.
	ReserveId func(resourceType, id string) bool
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9\-.]{1,64}$`)

// Export runs the Instance Exporter algorithm for inst against its
// already-resolved instanceOf StructureDefinition.
func (ex *Exporter) Export(inst *ast.Instance, resolved *sd.StructureDefinition) *InstanceDefinition {
	usage := inst.Usage
	isResource := resolved.Kind == sd.KindResource
	if !isResource && usage != ast.UsageInline {
		// usage != UsageInline here means the author either left Usage
		// unspecified (default UsageExample) or wrote something other than
		// Inline; either way they did not specify Inline, so the one-shot
		// warning fires regardless of inst.UsageExplicit.
		span := inst.Span
		ex.Sink.Warn(ex.File, &span, "instance of non-resource type %s forced to Inline usage", resolved.Type)
		usage = ast.UsageInline
	}

	id := inst.Id
	if id == "" {
		id = inst.Name
	}
	if strings.Contains(id, "_") {
		sanitized := strings.ReplaceAll(id, "_", "-")
		span := inst.Span
		ex.Sink.Warn(ex.File, &span, "instance id %q sanitized to %q", id, sanitized)
		id = sanitized
	}

	data := map[string]any{}
	if isResource {
		data["resourceType"] = resolved.Type
		data["id"] = id
	}
	if resolved.Derivation == sd.DerivationConstraint {
		data["meta"] = map[string]any{"profile": []any{resolved.URL}}
	}

	rules := ex.expandedRules(inst)
	containedIds := containedInstanceIds(rules)
	overrides := inlineOverrides(rules, ex.ResolveInline)

	w := newPathWriter()
	reached := reachedPaths(rules)
	applyImpliedValues(data, resolved.Snapshot, reached, w)

	for _, r := range rules {
		ar, ok := r.(ast.AssignmentRule)
		if !ok {
			continue
		}
		ex.applyAssignment(data, ar, w, resolved.Snapshot, overrides, containedIds, inst.Span)
	}

	clean(data)

	ex.validateRequired(resolved.Snapshot, resolved.Snapshot.Root(), data, inst.Span)

	if !idPattern.MatchString(id) {
		span := inst.Span
		ce := compileerr.New(compileerr.InvalidFHIRId, "instance id %q does not match [A-Za-z0-9-.]{1,64}", id).WithSpan(span)
		ex.Sink.Error(ex.File, &span, "%v", ce)
	}
	if isResource && usage != ast.UsageInline && ex.ReserveId != nil {
		if !ex.ReserveId(resolved.Type, id) {
			span := inst.Span
			ce := compileerr.New(compileerr.DuplicateInstanceId, "duplicate (resourceType, id) = (%s, %s)", resolved.Type, id).WithSpan(span)
			ex.Sink.Error(ex.File, &span, "%v", ce)
		}
	}

	return &InstanceDefinition{Name: inst.Name, ResourceType: resolved.Type, Id: id, Usage: usage, Data: data}
}

// expandedRules flattens the instance's mixins (in declaration order)
// followed by its own body rules, expanding Insert rules at their
// textual position within each — the resolution adopted for the
// mixin/insert precedence open question.
func (ex *Exporter) expandedRules(inst *ast.Instance) []ast.Rule {
	var all []ast.Rule
	for _, mixinName := range inst.Mixins {
		rs, ok := ex.ResolveRuleSet(mixinName)
		if !ok {
			span := inst.Span
			ex.Sink.Error(ex.File, &span, "mixin RuleSet not found: %s", mixinName)
			continue
		}
		all = append(all, ruleexpand.Expand(rs.Rules, ex.ResolveRuleSet, ex.Sink, ex.File, ruleexpand.TargetInstance)...)
	}
	all = append(all, ruleexpand.Expand(inst.Rules, ex.ResolveRuleSet, ex.Sink, ex.File, ruleexpand.TargetInstance)...)
	return all
}

// applyAssignment writes one assignment rule's value. Path normalization
// ("[0]", "[00]", ... all name the same address) is already handled by
// ast.Path.Segments, which parses every numeric bracket form to the same
// Segment.Index.
//
// Before writing, the value is checked against the target element's type
// set (step 6 of the algorithm): a path falling under an inline-resource
// override (step 5) is checked against the nested resource's own element
// tree instead of the containing instance's; a plain InstanceRef value
// (an inline resource itself, not data describable by a FHIR type code)
// skips this check entirely.
//
// When the target path already carries an SD-supplied pattern or fixed
// value, the two are reconciled per the conflict semantics: a primitive
// fixed value always wins over a disagreeing assignment; an element-typed
// pattern wins over a disagreeing assignment unless the assignment is a
// superset of the pattern, in which case the assignment (already the
// union) is stored.
func (ex *Exporter) applyAssignment(data map[string]any, r ast.AssignmentRule, w *pathWriter, tree *sd.Tree, overrides []inlineOverride, containedIds map[string]bool, span diag.Span) {
	value := ex.resolveValue(r.Value, containedIds)
	segs := r.RulePath().Segments()

	if _, isInline := r.Value.(ast.InstanceRef); !isInline {
		checkTree, checkSegs := tree, segs
		if ot, os, ok := overrideFor(overrides, segs); ok {
			checkTree, checkSegs = ot, os
		}
		if ce := validateAssignmentValue(checkTree, checkSegs, r.Value); ce != nil {
			ce = ce.WithSpan(span)
			ex.Sink.Error(ex.File, &span, "assignment at %q: %v", r.RulePath(), ce)
			return
		}
	}

	if implied, kind, conflict := impliedConflict(tree, segs, value); conflict {
		ce := compileerr.New(kind, "assignment at %q conflicts with the SD-supplied value", r.RulePath()).WithSpan(span)
		ex.Sink.Error(ex.File, &span, "%v", ce)
		_ = implied // already written to data by applyImpliedValues; the SD value is kept as-is
		return
	}

	w.Set(data, segs, value)
}

func (ex *Exporter) resolveValue(v ast.Value, containedIds map[string]bool) any {
	switch val := v.(type) {
	case ast.Reference:
		if ex.ResolveReference != nil {
			if ref, ok := ex.ResolveReference(val.Targets[0], containedIds); ok {
				return map[string]any{"reference": ref}
			}
		}
		return map[string]any{"reference": val.Targets[0]}
	case ast.Canonical:
		if ex.ResolveCanonical != nil {
			if url, ok := ex.ResolveCanonical(val.Target); ok {
				return url
			}
		}
		return val.Target
	case ast.InstanceRef:
		if ex.ResolveReference != nil {
			if ref, ok := ex.ResolveReference(val.Name, containedIds); ok {
				return map[string]any{"reference": ref}
			}
		}
		return val.Name
	default:
		return valueJSON(v)
	}
}

// containedInstanceIds collects the instance names this instance's own
// rules placed into its "contained" array. ResolveReference consults
// this per-instance set (not any global property of the referent) to
// choose "#id" over "Type/id" for the same referent, since the same
// Instance can be contained by one referencing instance and referenced
// as a sibling resource by another.
func containedInstanceIds(rules []ast.Rule) map[string]bool {
	out := map[string]bool{}
	for _, r := range rules {
		ar, ok := r.(ast.AssignmentRule)
		if !ok {
			continue
		}
		ref, ok := ar.Value.(ast.InstanceRef)
		if !ok {
			continue
		}
		segs := ar.RulePath().Segments()
		if len(segs) == 0 || segs[0].Name != "contained" {
			continue
		}
		out[ref.Name] = true
	}
	return out
}

// reachedPaths collects the dotted prefix of every assignment rule's
// path, so implied values only materialize where some rule actually
// instantiates the containing array or object.
func reachedPaths(rules []ast.Rule) map[string]bool {
	out := map[string]bool{}
	for _, r := range rules {
		ar, ok := r.(ast.AssignmentRule)
		if !ok {
			continue
		}
		segs := ar.RulePath().Segments()
		var prefix string
		for _, s := range segs {
			if prefix == "" {
				prefix = s.Name
			} else {
				prefix = prefix + "." + s.Name
			}
			out[prefix] = true
		}
	}
	return out
}
