package instance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/diag"
	"github.com/gofhir/fsh/sd"
)

func basePatient() *sd.StructureDefinition {
	tree := sd.NewTree()
	root := tree.Add(&sd.Element{Path: "Patient", Id: "Patient", Min: 0, Max: "*", Parent: -1})
	name := &sd.Element{Path: "Patient.name", Id: "Patient.name", Min: 1, Max: "*", Parent: root,
		Types: []sd.TypeRef{{Code: "HumanName"}}}
	tree.Add(name)
	gender := &sd.Element{Path: "Patient.gender", Id: "Patient.gender", Min: 0, Max: "1", Parent: root,
		Types: []sd.TypeRef{{Code: "code"}}, Pattern: "unknown", PatternType: "code"}
	tree.Add(gender)
	tree.Reindex()

	return &sd.StructureDefinition{
		URL: "http://hl7.org/fhir/StructureDefinition/Patient", Id: "Patient", Name: "Patient",
		Type: "Patient", Kind: sd.KindResource, Derivation: sd.DerivationSpecialization,
		FHIRVersion: "4.0.1", Snapshot: tree,
	}
}

func basePatientWithFixedAndPattern() *sd.StructureDefinition {
	tree := sd.NewTree()
	root := tree.Add(&sd.Element{Path: "Patient", Id: "Patient", Min: 0, Max: "*", Parent: -1})
	name := &sd.Element{Path: "Patient.name", Id: "Patient.name", Min: 1, Max: "*", Parent: root,
		Types: []sd.TypeRef{{Code: "HumanName"}}}
	tree.Add(name)
	active := &sd.Element{Path: "Patient.active", Id: "Patient.active", Min: 0, Max: "1", Parent: root,
		Types: []sd.TypeRef{{Code: "boolean"}}, Fixed: true, FixedType: "boolean"}
	tree.Add(active)
	maritalStatus := &sd.Element{Path: "Patient.maritalStatus", Id: "Patient.maritalStatus", Min: 0, Max: "1", Parent: root,
		Types: []sd.TypeRef{{Code: "Coding"}}, PatternType: "Coding",
		Pattern: map[string]any{"system": "http://terminology.hl7.org/CodeSystem/v3-MaritalStatus", "code": "M"}}
	tree.Add(maritalStatus)
	tree.Reindex()

	return &sd.StructureDefinition{
		URL: "http://hl7.org/fhir/StructureDefinition/Patient", Id: "Patient", Name: "Patient",
		Type: "Patient", Kind: sd.KindResource, Derivation: sd.DerivationSpecialization,
		FHIRVersion: "4.0.1", Snapshot: tree,
	}
}

func newTestExporter() (*Exporter, *diag.Sink) {
	sink := diag.NewSink()
	ex := &Exporter{
		Sink:           sink,
		File:           "test.fsh",
		ResolveRuleSet: func(string) (*ast.RuleSet, bool) { return nil, false },
	}
	return ex, sink
}

func TestExport_AssignsValueAtIndexedPath(t *testing.T) {
	ex, sink := newTestExporter()
	parent := basePatient()

	inst := &ast.Instance{
		EntityBase: ast.EntityBase{Name: "ExamplePatient"},
		InstanceOf: "Patient",
		Rules: []ast.Rule{
			ast.AssignmentRule{Base: ast.Base{Path: "name[0].family"}, Value: ast.String{Text: "Smith"}},
		},
	}

	out := ex.Export(inst, parent)
	require.Empty(t, sink.All())
	require.Equal(t, "Patient", out.Data["resourceType"])
	require.Equal(t, "ExamplePatient", out.Id)

	names, ok := out.Data["name"].([]any)
	require.True(t, ok)
	require.Len(t, names, 1)
	nameObj := names[0].(map[string]any)
	require.Equal(t, "Smith", nameObj["family"])
}

func TestExport_FlagsDuplicateInstanceId(t *testing.T) {
	ex, sink := newTestExporter()
	reserved := map[string]bool{}
	ex.ReserveId = func(rt, id string) bool {
		key := rt + "/" + id
		if reserved[key] {
			return false
		}
		reserved[key] = true
		return true
	}
	parent := basePatient()

	mk := func(name string) *ast.Instance {
		return &ast.Instance{
			EntityBase: ast.EntityBase{Name: name, Id: "dup"},
			InstanceOf: "Patient",
			Rules: []ast.Rule{
				ast.AssignmentRule{Base: ast.Base{Path: "name[0].family"}, Value: ast.String{Text: "Smith"}},
			},
		}
	}

	ex.Export(mk("First"), parent)
	ex.Export(mk("Second"), parent)

	require.NotEmpty(t, sink.All())
}

func TestExport_SanitizesUnderscoreId(t *testing.T) {
	ex, sink := newTestExporter()
	parent := basePatient()
	inst := &ast.Instance{
		EntityBase: ast.EntityBase{Name: "weird_id"},
		InstanceOf: "Patient",
		Rules: []ast.Rule{
			ast.AssignmentRule{Base: ast.Base{Path: "name[0].family"}, Value: ast.String{Text: "Smith"}},
		},
	}

	out := ex.Export(inst, parent)
	require.Equal(t, "weird-id", out.Id)
	warned := false
	for _, d := range sink.All() {
		if d.Severity == diag.SeverityWarn {
			warned = true
		}
	}
	require.True(t, warned)
}

func TestExport_RequiredElementMissingIsReported(t *testing.T) {
	ex, sink := newTestExporter()
	parent := basePatient()
	inst := &ast.Instance{
		EntityBase: ast.EntityBase{Name: "NoName"},
		InstanceOf: "Patient",
	}

	ex.Export(inst, parent)
	foundError := false
	for _, d := range sink.All() {
		if d.Severity == diag.SeverityError {
			foundError = true
		}
	}
	require.True(t, foundError)
}

func TestExport_ConflictingAssignmentOnPrimitiveFixedIsRejected(t *testing.T) {
	ex, sink := newTestExporter()
	parent := basePatientWithFixedAndPattern()
	inst := &ast.Instance{
		EntityBase: ast.EntityBase{Name: "ExamplePatient"},
		InstanceOf: "Patient",
		Rules: []ast.Rule{
			ast.AssignmentRule{Base: ast.Base{Path: "name[0].family"}, Value: ast.String{Text: "Smith"}},
			ast.AssignmentRule{Base: ast.Base{Path: "active"}, Value: ast.Bool{Value: false}},
		},
	}

	out := ex.Export(inst, parent)
	require.True(t, sink.HasErrors())
	require.Equal(t, true, out.Data["active"], "the SD's fixed value must win over a disagreeing assignment")
}

func TestExport_MatchingAssignmentOnPrimitiveFixedIsNotAConflict(t *testing.T) {
	ex, sink := newTestExporter()
	parent := basePatientWithFixedAndPattern()
	inst := &ast.Instance{
		EntityBase: ast.EntityBase{Name: "ExamplePatient"},
		InstanceOf: "Patient",
		Rules: []ast.Rule{
			ast.AssignmentRule{Base: ast.Base{Path: "name[0].family"}, Value: ast.String{Text: "Smith"}},
			ast.AssignmentRule{Base: ast.Base{Path: "active"}, Value: ast.Bool{Value: true}},
		},
	}

	out := ex.Export(inst, parent)
	require.False(t, sink.HasErrors())
	require.Equal(t, true, out.Data["active"])
}

func TestExport_ConflictingAssignmentOnElementPatternIsRejected(t *testing.T) {
	ex, sink := newTestExporter()
	parent := basePatientWithFixedAndPattern()
	inst := &ast.Instance{
		EntityBase: ast.EntityBase{Name: "ExamplePatient"},
		InstanceOf: "Patient",
		Rules: []ast.Rule{
			ast.AssignmentRule{Base: ast.Base{Path: "name[0].family"}, Value: ast.String{Text: "Smith"}},
			ast.AssignmentRule{Base: ast.Base{Path: "maritalStatus"}, Value: ast.Code{System: "http://terminology.hl7.org/CodeSystem/v3-MaritalStatus", Code: "S"}},
		},
	}

	out := ex.Export(inst, parent)
	require.True(t, sink.HasErrors())
	status, ok := out.Data["maritalStatus"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "M", status["code"], "the SD's pattern must win over a non-superset conflicting assignment")
}

func baseHumanNameType() *sd.StructureDefinition {
	tree := sd.NewTree()
	root := tree.Add(&sd.Element{Path: "HumanName", Id: "HumanName", Min: 0, Max: "*", Parent: -1})
	tree.Add(&sd.Element{Path: "HumanName.family", Id: "HumanName.family", Min: 0, Max: "1", Parent: root,
		Types: []sd.TypeRef{{Code: "string"}}})
	tree.Reindex()
	return &sd.StructureDefinition{
		URL: "http://hl7.org/fhir/StructureDefinition/HumanName", Id: "HumanName", Name: "HumanName",
		Type: "HumanName", Kind: sd.KindComplexType, Derivation: sd.DerivationSpecialization,
		FHIRVersion: "4.0.1", Snapshot: tree,
	}
}

func TestExport_NonResourceInstanceOfWithUnspecifiedUsageWarnsAndForcesInline(t *testing.T) {
	ex, sink := newTestExporter()
	parent := baseHumanNameType()
	inst := &ast.Instance{
		EntityBase: ast.EntityBase{Name: "ExampleName"},
		InstanceOf: "HumanName",
		Rules: []ast.Rule{
			ast.AssignmentRule{Base: ast.Base{Path: "family"}, Value: ast.String{Text: "Smith"}},
		},
	}

	out := ex.Export(inst, parent)
	require.Equal(t, ast.UsageInline, out.Usage)
	warned := false
	for _, d := range sink.All() {
		if d.Severity == diag.SeverityWarn {
			warned = true
		}
	}
	require.True(t, warned, "leaving Usage unspecified on a non-resource instanceOf must still warn, not just a forced-usage-overridden-explicitly case")
}

func TestExport_NonResourceInstanceOfAlreadyInlineDoesNotWarn(t *testing.T) {
	ex, sink := newTestExporter()
	parent := baseHumanNameType()
	inst := &ast.Instance{
		EntityBase:    ast.EntityBase{Name: "ExampleName"},
		InstanceOf:    "HumanName",
		Usage:         ast.UsageInline,
		UsageExplicit: true,
		Rules: []ast.Rule{
			ast.AssignmentRule{Base: ast.Base{Path: "family"}, Value: ast.String{Text: "Smith"}},
		},
	}

	out := ex.Export(inst, parent)
	require.Equal(t, ast.UsageInline, out.Usage)
	require.Empty(t, sink.All())
}

func TestExport_MismatchedTypeAssignmentIsRejected(t *testing.T) {
	ex, sink := newTestExporter()
	parent := basePatient()
	inst := &ast.Instance{
		EntityBase: ast.EntityBase{Name: "ExamplePatient"},
		InstanceOf: "Patient",
		Rules: []ast.Rule{
			ast.AssignmentRule{Base: ast.Base{Path: "gender"}, Value: ast.Bool{Value: true}},
		},
	}

	ex.Export(inst, parent)
	require.True(t, sink.HasErrors())
}

func basePatientWithContained() *sd.StructureDefinition {
	tree := sd.NewTree()
	root := tree.Add(&sd.Element{Path: "Patient", Id: "Patient", Min: 0, Max: "*", Parent: -1})
	tree.Add(&sd.Element{Path: "Patient.contained", Id: "Patient.contained", Min: 0, Max: "*", Parent: root})
	tree.Reindex()
	return &sd.StructureDefinition{
		URL: "http://hl7.org/fhir/StructureDefinition/Patient", Id: "Patient", Name: "Patient",
		Type: "Patient", Kind: sd.KindResource, Derivation: sd.DerivationSpecialization,
		FHIRVersion: "4.0.1", Snapshot: tree,
	}
}

func baseOrganizationTree() *sd.Tree {
	tree := sd.NewTree()
	root := tree.Add(&sd.Element{Path: "Organization", Id: "Organization", Min: 0, Max: "*", Parent: -1})
	tree.Add(&sd.Element{Path: "Organization.active", Id: "Organization.active", Min: 0, Max: "1", Parent: root,
		Types: []sd.TypeRef{{Code: "boolean"}}})
	tree.Reindex()
	return tree
}

// TestExport_InlineResourcePathValidatesAgainstNestedType covers step 5
// of the algorithm: a descendant path under an inline-resource
// assignment must validate against that nested resource's own element
// types, not the containing instance's (generic, untyped) element.
func TestExport_InlineResourcePathValidatesAgainstNestedType(t *testing.T) {
	ex, sink := newTestExporter()
	ex.ResolveInline = func(name string) (string, *sd.Tree, bool) {
		if name == "OrgInst" {
			return "Organization", baseOrganizationTree(), true
		}
		return "", nil, false
	}
	parent := basePatientWithContained()
	inst := &ast.Instance{
		EntityBase: ast.EntityBase{Name: "ExamplePatient"},
		InstanceOf: "Patient",
		Rules: []ast.Rule{
			ast.AssignmentRule{Base: ast.Base{Path: "contained[0]"}, Value: ast.InstanceRef{Name: "OrgInst"}},
			ast.AssignmentRule{Base: ast.Base{Path: "contained[0].active"}, Value: ast.Bool{Value: true}},
		},
	}

	ex.Export(inst, parent)
	require.False(t, sink.HasErrors())
}

func TestExport_InlineResourcePathMismatchedTypeIsRejected(t *testing.T) {
	ex, sink := newTestExporter()
	ex.ResolveInline = func(name string) (string, *sd.Tree, bool) {
		if name == "OrgInst" {
			return "Organization", baseOrganizationTree(), true
		}
		return "", nil, false
	}
	parent := basePatientWithContained()
	inst := &ast.Instance{
		EntityBase: ast.EntityBase{Name: "ExamplePatient"},
		InstanceOf: "Patient",
		Rules: []ast.Rule{
			ast.AssignmentRule{Base: ast.Base{Path: "contained[0]"}, Value: ast.InstanceRef{Name: "OrgInst"}},
			ast.AssignmentRule{Base: ast.Base{Path: "contained[0].active"}, Value: ast.String{Text: "yes"}},
		},
	}

	ex.Export(inst, parent)
	require.True(t, sink.HasErrors())
}

func TestExport_SupersetAssignmentOnElementPatternIsAccepted(t *testing.T) {
	ex, sink := newTestExporter()
	parent := basePatientWithFixedAndPattern()
	inst := &ast.Instance{
		EntityBase: ast.EntityBase{Name: "ExamplePatient"},
		InstanceOf: "Patient",
		Rules: []ast.Rule{
			ast.AssignmentRule{Base: ast.Base{Path: "name[0].family"}, Value: ast.String{Text: "Smith"}},
			ast.AssignmentRule{Base: ast.Base{Path: "maritalStatus"}, Value: ast.Code{
				System: "http://terminology.hl7.org/CodeSystem/v3-MaritalStatus", Code: "M", HasDisplay: true, Display: "Married",
			}},
		},
	}

	out := ex.Export(inst, parent)
	require.False(t, sink.HasErrors())
	status, ok := out.Data["maritalStatus"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "M", status["code"])
	require.Equal(t, "Married", status["display"], "a superset assignment (adds display) must be stored in full")
}
