// Package pkgassembler implements the Package Assembler: it owns the
// re-entrant "fish through export" resolution the SD Exporter and
// Instance Exporter need (resolving a named parent/instanceOf that is
// itself an unexported FSH entity by exporting it on demand, with a
// cycle guard), and assembles every entity in a Tank into a Package.
package pkgassembler

import (
	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/compileerr"
	"github.com/gofhir/fsh/diag"
	"github.com/gofhir/fsh/instance"
	"github.com/gofhir/fsh/sd"
	"github.com/gofhir/fsh/sdexport"
	"github.com/gofhir/fsh/tank"
)

// Package holds every artifact produced from one Tank, indexed the way
// the Fishable port needs: by id for direct lookup, plus the raw slices
// for serialization in declaration order.
type Package struct {
	Profiles   map[string]*sd.StructureDefinition
	Extensions map[string]*sd.StructureDefinition
	Instances  []*instance.InstanceDefinition

	profileOrder   []string
	extensionOrder []string
}

// ProfileList returns exported profiles in declaration order.
func (p *Package) ProfileList() []*sd.StructureDefinition {
	out := make([]*sd.StructureDefinition, 0, len(p.profileOrder))
	for _, id := range p.profileOrder {
		out = append(out, p.Profiles[id])
	}
	return out
}

// ExtensionList returns exported extensions in declaration order.
func (p *Package) ExtensionList() []*sd.StructureDefinition {
	out := make([]*sd.StructureDefinition, 0, len(p.extensionOrder))
	for _, id := range p.extensionOrder {
		out = append(out, p.Extensions[id])
	}
	return out
}

// Kind mirrors tank.Kind for the Fishable port's kind-ordered lookup
// across exported artifacts (as opposed to tank.Kind, which looks up
// unexported FSH source entities).
type Kind = tank.Kind

// Assembler resolves parents/instanceOf across the Tank and the
// Definitions Cache, exporting each FSH entity exactly once.
type Assembler struct {
	Tank          *tank.Tank
	Defs          sd.Fetcher
	Sink          *diag.Sink
	CanonicalBase string

	exportedSD     map[string]*sd.StructureDefinition
	exportedInst   map[string]*instance.InstanceDefinition
	expansionStack map[string]bool
	reservedIds    map[string]bool
}

// New builds an Assembler over tnk, resolving external parents against
// defs and recording diagnostics to sink.
func New(tnk *tank.Tank, defs sd.Fetcher, sink *diag.Sink, canonicalBase string) *Assembler {
	return &Assembler{
		Tank: tnk, Defs: defs, Sink: sink, CanonicalBase: canonicalBase,
		exportedSD:     map[string]*sd.StructureDefinition{},
		exportedInst:   map[string]*instance.InstanceDefinition{},
		expansionStack: map[string]bool{},
		reservedIds:    map[string]bool{},
	}
}

// Assemble exports every Profile, Extension, and Instance in the Tank,
// in document order, into one Package.
func (a *Assembler) Assemble() *Package {
	pkg := &Package{Profiles: map[string]*sd.StructureDefinition{}, Extensions: map[string]*sd.StructureDefinition{}}

	for _, p := range a.Tank.AllProfiles() {
		out, err := a.fishSD(p.Name)
		if err != nil {
			a.reportResolution(p.Span, err)
			continue
		}
		pkg.Profiles[out.Id] = out
		pkg.profileOrder = append(pkg.profileOrder, out.Id)
	}

	for _, e := range a.Tank.AllExtensions() {
		out, err := a.fishSD(e.Name)
		if err != nil {
			a.reportResolution(e.Span, err)
			continue
		}
		pkg.Extensions[out.Id] = out
		pkg.extensionOrder = append(pkg.extensionOrder, out.Id)
	}

	for _, inst := range a.Tank.AllInstances() {
		resolved, err := a.fishSD(inst.InstanceOf)
		if err != nil {
			ce := compileerr.New(compileerr.InstanceOfNotDefined, "instanceOf not found: %s", inst.InstanceOf).WithSpan(inst.Span)
			a.Sink.Error(inst.Span.File, &inst.Span, "%v", ce)
			continue
		}
		iex := a.instanceExporter(inst.Span.File)
		out := iex.Export(inst, resolved)
		a.exportedInst[inst.Name] = out
		if out.Usage == ast.UsageInline {
			continue
		}
		pkg.Instances = append(pkg.Instances, out)
	}

	return pkg
}

// Fish implements the Fishable port: profiles and extensions are looked
// up by id, instances by name or id, preferring the first match in the
// given kind order.
func (p *Package) Fish(name string, kinds ...Kind) (any, Kind, bool) {
	if len(kinds) == 0 {
		kinds = []Kind{tank.KindProfile, tank.KindExtension, tank.KindInstance}
	}
	for _, k := range kinds {
		switch k {
		case tank.KindProfile:
			if sdv, ok := p.Profiles[name]; ok {
				return sdv, tank.KindProfile, true
			}
		case tank.KindExtension:
			if sdv, ok := p.Extensions[name]; ok {
				return sdv, tank.KindExtension, true
			}
		case tank.KindInstance:
			for _, i := range p.Instances {
				if i.Name == name || i.Id == name {
					return i, tank.KindInstance, true
				}
			}
		}
	}
	return nil, 0, false
}

func (a *Assembler) reportResolution(span diag.Span, err error) {
	a.Sink.Error(span.File, &span, "%v", err)
}

// fishSD resolves name to an exported StructureDefinition: first an
// already-exported result, then (re-entrantly, with a cycle guard) a
// Tank-authored Profile/Extension exported on demand, then the
// Definitions Cache by type or URL.
func (a *Assembler) fishSD(name string) (*sd.StructureDefinition, error) {
	if cached, ok := a.exportedSD[name]; ok {
		return cached, nil
	}
	if a.expansionStack[name] {
		return nil, compileerr.New(compileerr.ParentNotDefined, "cycle detected resolving parent %q", name)
	}

	ent, kind, ok := a.Tank.Fish(name, tank.KindProfile, tank.KindExtension)
	if ok {
		a.expansionStack[name] = true
		out, err := a.exportEntity(ent, kind)
		delete(a.expansionStack, name)
		if err != nil {
			return nil, err
		}
		a.exportedSD[name] = out
		return out, nil
	}

	if base, ok := a.Defs.FetchByType(name); ok {
		return base, nil
	}
	if base, ok := a.Defs.FetchByURL(name); ok {
		return base, nil
	}
	return nil, compileerr.New(compileerr.ParentNotDefined, "parent not defined: %s", name)
}

func (a *Assembler) exportEntity(ent any, kind tank.Kind) (*sd.StructureDefinition, error) {
	switch kind {
	case tank.KindProfile:
		p := ent.(*ast.Profile)
		parent, err := a.fishSD(p.Parent)
		if err != nil {
			return nil, err
		}
		ex := a.sdExporter(p.Span.File)
		return ex.ExportProfile(p, parent), nil
	case tank.KindExtension:
		e := ent.(*ast.Extension)
		parent, err := a.fishSD(e.Parent)
		if err != nil {
			return nil, err
		}
		ex := a.sdExporter(e.Span.File)
		return ex.ExportExtension(e, parent), nil
	default:
		return nil, compileerr.New(compileerr.ParentNotDefined, "not a StructureDefinition-producing entity")
	}
}

func (a *Assembler) sdExporter(file string) *sdexport.Exporter {
	return sdexport.New(a.Sink, file, a.Tank.RuleSet, a.CanonicalBase)
}

func (a *Assembler) instanceExporter(file string) *instance.Exporter {
	return &instance.Exporter{
		Sink:             a.Sink,
		File:             file,
		ResolveRuleSet:   a.Tank.RuleSet,
		ResolveReference: a.resolveReference,
		ResolveCanonical: a.resolveCanonical,
		ResolveInline:    a.resolveInline,
		ReserveId:        a.reserveId,
	}
}

// resolveReference resolves a Reference(Name)/InstanceRef token to its
// wire form. Whether the referent resolves to "#id" or "Type/id" is a
// fact about the *referencing* instance, not a global property of the
// referent: containedIds holds the name of every instance the current
// instance's own rules placed into its contained array, so the same instance can
// be contained by one referencing instance ("#id") and cited as a
// sibling resource by another ("Type/id").
func (a *Assembler) resolveReference(name string, containedIds map[string]bool) (string, bool) {
	out, ok := a.exportedInst[name]
	if !ok {
		return "", false
	}
	if containedIds[name] {
		return "#" + out.Id, true
	}
	return out.ResourceType + "/" + out.Id, true
}

// resolveInline looks up a named Instance's declared resourceType and
// the element tree of the SD its instanceOf resolves to (a base resource
// or a Profile/Extension), for the Instance Exporter's inline-resource
// path override (step 5). It resolves the instance's instanceOf SD
// directly rather than requiring the instance to already be exported,
// since an inline resource may be assigned before its own Instance
// entity is reached in document order.
func (a *Assembler) resolveInline(name string) (string, *sd.Tree, bool) {
	ent, kind, ok := a.Tank.Fish(name, tank.KindInstance)
	if !ok || kind != tank.KindInstance {
		return "", nil, false
	}
	inst := ent.(*ast.Instance)
	resolved, err := a.fishSD(inst.InstanceOf)
	if err != nil {
		return "", nil, false
	}
	return resolved.Type, resolved.Snapshot, true
}

func (a *Assembler) resolveCanonical(name string) (string, bool) {
	sdv, err := a.fishSD(name)
	if err != nil {
		return "", false
	}
	return sdv.URL, true
}

func (a *Assembler) reserveId(resourceType, id string) bool {
	key := resourceType + "/" + id
	if a.reservedIds[key] {
		return false
	}
	a.reservedIds[key] = true
	return true
}
