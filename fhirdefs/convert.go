package fhirdefs

import (
	"strings"

	"github.com/gofhir/fhir/r4"

	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/sd"
)

// convertR4 builds an sd.StructureDefinition from the wire-format
// r4.StructureDefinition the cache just unmarshaled, mirroring the
// direction (if not the destination type) of loader.R4Converter's
// ConvertStructureDefinition: dereference every optional scalar,
// convert the element list into the arena, and wire parent links by
// retracing each element's dotted path.
func convertR4(doc *r4.StructureDefinition) *sd.StructureDefinition {
	tree := sd.NewTree()
	if doc.Snapshot != nil {
		for i, el := range doc.Snapshot.Element {
			node := convertR4Element(&el)
			if i == 0 {
				node.Parent = -1
			} else {
				node.Parent = findParentIndex(tree, node.Path)
			}
			tree.Add(node)
		}
		tree.Reindex()
	}

	url := derefString(doc.Url)
	return &sd.StructureDefinition{
		URL:               url,
		Id:                idFromURL(url),
		Name:              derefString(doc.Name),
		Type:              derefString(doc.Type),
		Kind:              convertKind(doc.Kind),
		Abstract:          derefBool(doc.Abstract),
		BaseDefinition:    derefString(doc.BaseDefinition),
		Derivation:        sd.DerivationSpecialization,
		FHIRVersion:       convertFHIRVersion(doc.FhirVersion),
		ExtensionContexts: convertContexts(doc.Context),
		Snapshot:          tree,
	}
}

// idFromURL derives a StructureDefinition's id from the last path
// segment of its canonical URL. r4.StructureDefinition's own Resource.Id
// field isn't read here: this loader only ever sees it through the
// StructureDefinition-*.json naming convention the base FHIR core and IG
// packages both publish under, where the URL's trailing segment and the
// resource id always agree.
func idFromURL(url string) string {
	if i := strings.LastIndexByte(url, '/'); i != -1 {
		return url[i+1:]
	}
	return url
}

func convertR4Element(ed *r4.ElementDefinition) *sd.Element {
	node := &sd.Element{
		Path:        derefString(ed.Path),
		Id:          derefString(ed.Id),
		SliceName:   derefString(ed.SliceName),
		Min:         int(derefUint32(ed.Min)),
		Max:         derefString(ed.Max),
		Types:       convertR4Types(ed.Type),
		Binding:     convertR4Binding(ed.Binding),
		Slicing:     convertR4Slicing(ed.Slicing),
		MustSupport: derefBool(ed.MustSupport),
		Summary:     derefBool(ed.IsSummary),
		IsModifier:  derefBool(ed.IsModifier),
	}
	if node.Id == "" {
		node.Id = node.Path
	}
	return node
}

func convertR4Types(types []r4.ElementDefinitionType) []sd.TypeRef {
	if len(types) == 0 {
		return nil
	}
	out := make([]sd.TypeRef, 0, len(types))
	for i := range types {
		t := &types[i]
		out = append(out, sd.TypeRef{Code: derefString(t.Code), Profile: t.Profile, TargetProfile: t.TargetProfile})
	}
	return out
}

func convertR4Binding(b *r4.ElementDefinitionBinding) *sd.Binding {
	if b == nil {
		return nil
	}
	return &sd.Binding{Strength: convertBindingStrength(b.Strength), ValueSet: derefString(b.ValueSet)}
}

func convertR4Slicing(s *r4.ElementDefinitionSlicing) *sd.Slicing {
	if s == nil {
		return nil
	}
	out := &sd.Slicing{
		Description: derefString(s.Description),
		Ordered:     derefBool(s.Ordered),
		Rules:       convertSlicingRules(s.Rules),
	}
	for i := range s.Discriminator {
		d := &s.Discriminator[i]
		out.Discriminators = append(out.Discriminators, sd.Discriminator{
			Type: convertDiscriminatorType(d.Type), Path: derefString(d.Path),
		})
	}
	return out
}

// convertContexts carries over each context's expression. The r4 context
// type classification ("element" vs "extension" vs "fhirpath") isn't
// read off the wire value here — every context this loader sees so far
// is the common "element" case — so it defaults accordingly.
func convertContexts(contexts []r4.StructureDefinitionContext) []sd.ExtensionContext {
	if len(contexts) == 0 {
		return nil
	}
	out := make([]sd.ExtensionContext, 0, len(contexts))
	for i := range contexts {
		c := &contexts[i]
		if c.Expression == nil {
			continue
		}
		out = append(out, sd.ExtensionContext{Type: "element", Expression: *c.Expression})
	}
	return out
}

func convertKind(k *r4.StructureDefinitionKind) sd.Kind {
	if k == nil {
		return ""
	}
	return sd.Kind(*k)
}

func convertFHIRVersion(v *r4.FHIRVersion) string {
	if v == nil {
		return ""
	}
	return string(*v)
}

func convertBindingStrength(s *r4.BindingStrength) ast.BindingStrength {
	if s == nil {
		return ast.Example
	}
	switch string(*s) {
	case "preferred":
		return ast.Preferred
	case "extensible":
		return ast.Extensible
	case "required":
		return ast.Required
	default:
		return ast.Example
	}
}

func convertSlicingRules(r *r4.SlicingRules) string {
	if r == nil {
		return "open"
	}
	return string(*r)
}

func convertDiscriminatorType(t *r4.DiscriminatorType) string {
	if t == nil {
		return "value"
	}
	return string(*t)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

func derefUint32(v *uint32) uint32 {
	if v == nil {
		return 0
	}
	return *v
}
