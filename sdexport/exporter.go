// Package sdexport implements the StructureDefinition Exporter: turns a
// Profile or Extension entity, plus its already-resolved parent
// StructureDefinition, into a new StructureDefinition whose snapshot is
// the parent's tree narrowed by the entity's rules, and whose
// differential is exactly the set of nodes that narrowing touched.
//
// Parent resolution itself (Tank first, then the Definitions Cache,
// transitively to the base FHIR type) is the Package Assembler's job —
// this package takes the resolved *sd.StructureDefinition as an input so
// it never needs to import tank, keeping the re-entrant "fish through
// export" cycle confined to the assembler.
package sdexport

import (
	"fmt"
	"strings"

	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/compileerr"
	"github.com/gofhir/fsh/diag"
	"github.com/gofhir/fsh/discriminator"
	"github.com/gofhir/fsh/ruleexpand"
	"github.com/gofhir/fsh/sd"
)

// RuleSetResolver looks up a named RuleSet, the capability Insert rule
// expansion needs from the Tank.
type RuleSetResolver = ruleexpand.Resolver

// Exporter holds the per-compilation collaborators every entity export
// shares: where diagnostics land, which source file is being exported,
// how to look up a RuleSet by name for Insert expansion, and the
// canonical URL base new SDs are minted under.
type Exporter struct {
	Sink           *diag.Sink
	File           string
	ResolveRuleSet RuleSetResolver
	CanonicalBase  string

	// discriminators validates slicing discriminator path expressions
	// set via CaretValue rules against slicing.discriminator[n].path.
	discriminators *discriminator.Validator
}

// New builds an Exporter.
func New(sink *diag.Sink, file string, resolveRuleSet RuleSetResolver, canonicalBase string) *Exporter {
	return &Exporter{
		Sink: sink, File: file, ResolveRuleSet: resolveRuleSet, CanonicalBase: canonicalBase,
		discriminators: discriminator.NewValidator(),
	}
}

// ExportProfile exports p against its already-resolved parent.
func (ex *Exporter) ExportProfile(p *ast.Profile, parent *sd.StructureDefinition) *sd.StructureDefinition {
	out := ex.cloneBase(parent, p.EntityBase)
	out.Kind = parent.Kind
	rules := ruleexpand.Expand(p.Rules, ex.ResolveRuleSet, ex.Sink, ex.File, ruleexpand.TargetStructureDefinition)
	ex.applyRules(out, rules)
	return out
}

// ExportExtension exports e against its already-resolved parent,
// preserving the parent's extension contexts verbatim — the resolution
// adopted for the "does an Extension inherit its parent's context"
// open question.
func (ex *Exporter) ExportExtension(e *ast.Extension, parent *sd.StructureDefinition) *sd.StructureDefinition {
	out := ex.cloneBase(parent, e.EntityBase)
	out.Kind = sd.KindExtension
	out.ExtensionContexts = append([]sd.ExtensionContext(nil), parent.ExtensionContexts...)
	rules := ruleexpand.Expand(e.Rules, ex.ResolveRuleSet, ex.Sink, ex.File, ruleexpand.TargetStructureDefinition)
	ex.applyRules(out, rules)
	return out
}

func (ex *Exporter) cloneBase(parent *sd.StructureDefinition, base ast.EntityBase) *sd.StructureDefinition {
	tree := parent.Snapshot.Clone()
	tree.Reindex()

	id := base.Id
	if id == "" {
		id = base.Name
	}
	desc := base.Description
	if desc == "" {
		desc = parent.Description
	}

	return &sd.StructureDefinition{
		URL:            ex.urlFor(id),
		Id:             id,
		Name:           base.Name,
		Title:          base.Title,
		Description:    desc,
		Type:           parent.Type,
		BaseDefinition: parent.URL,
		Derivation:     sd.DerivationConstraint,
		FHIRVersion:    parent.FHIRVersion,
		Snapshot:       tree,
	}
}

func (ex *Exporter) urlFor(id string) string {
	base := ex.CanonicalBase
	if base == "" {
		base = "http://example.org/fhir"
	}
	return fmt.Sprintf("%s/StructureDefinition/%s", base, id)
}

// applyRules applies every already Insert-expanded constraint rule to
// out's snapshot in source order, reporting and skipping any rule that
// fails its own invariant rather than aborting the entity's export —
// per the "recoverable errors are reported and the offending rule...
// skipped; compilation proceeds" policy.
func (ex *Exporter) applyRules(out *sd.StructureDefinition, rules []ast.Rule) {
	resolver := sd.NewResolver(out.Snapshot, out.Type)
	for _, r := range rules {
		idx, err := resolver.Resolve(r.RulePath(), true)
		if err != nil {
			span := r.RuleSpan()
			ce := compileerr.Wrap(compileerr.CannotResolvePath, err, "%v", err).WithSpan(span)
			ex.Sink.Error(ex.File, &span, "%v", ce)
			continue
		}
		el := out.Snapshot.Get(idx)

		var applyErr error
		switch rule := r.(type) {
		case ast.CardRule:
			applyErr = applyCard(el, rule)
		case ast.FlagRule:
			applyErr = applyFlag(el, rule)
		case ast.ValueSetBindingRule:
			applyErr = applyBinding(el, rule)
		case ast.OnlyRule:
			applyErr = applyOnly(el, rule)
		case ast.ContainsRule:
			applyErr = applyContains(out.Snapshot, resolver, el, rule, ex)
		case ast.CaretValueRule:
			applyErr = applyCaret(el, rule)
			if applyErr == nil && ex.isDiscriminatorPathCaret(rule) {
				applyErr = ex.validateDiscriminatorCaret(rule)
			}
		case ast.FixedValueRule:
			applyErr = applyFixed(el, rule)
		default:
			applyErr = fmt.Errorf("rule type not valid on a StructureDefinition: %T", r)
		}
		if applyErr != nil {
			span := r.RuleSpan()
			ex.Sink.Error(ex.File, &span, "%s: %v", r.RulePath(), applyErr)
		}
	}
}

// isDiscriminatorPathCaret reports whether rule sets a slicing
// discriminator's path field (e.g. "slicing.discriminator[0].path").
func (ex *Exporter) isDiscriminatorPathCaret(rule ast.CaretValueRule) bool {
	return strings.Contains(rule.CaretPath, "discriminator") && strings.HasSuffix(rule.CaretPath, ".path")
}

// validateDiscriminatorCaret compiles the discriminator path as a
// FHIRPath expression, surfacing a malformed discriminator at compile
// time rather than at downstream IG-build time.
func (ex *Exporter) validateDiscriminatorCaret(rule ast.CaretValueRule) error {
	path, ok := rule.Value.(ast.String)
	if !ok {
		return nil
	}
	if verr := ex.discriminators.ValidatePath(path.Text); verr != nil {
		return compileerr.Wrap(compileerr.SlicingDefinitionError, verr, "%v", verr)
	}
	return nil
}
