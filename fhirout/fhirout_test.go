package fhirout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/instance"
	"github.com/gofhir/fsh/sd"
)

func TestSDDocument_RendersSnapshotAndDifferential(t *testing.T) {
	tree := sd.NewTree()
	root := tree.Add(&sd.Element{Path: "Observation", Id: "Observation", Min: 0, Max: "*", Parent: -1})
	tree.Nodes[root].Parent = -1
	subject := &sd.Element{
		Path: "Observation.subject", Id: "Observation.subject", Min: 1, Max: "1", Parent: root, Changed: true,
		Types: []sd.TypeRef{{Code: "Reference", TargetProfile: []string{"http://hl7.org/fhir/StructureDefinition/Patient"}}},
	}
	tree.Add(subject)
	tree.Reindex()

	def := &sd.StructureDefinition{
		URL: "http://example.org/fhir/StructureDefinition/MyObs", Id: "MyObs", Name: "MyObs",
		Type: "Observation", Kind: sd.KindResource, BaseDefinition: "http://hl7.org/fhir/StructureDefinition/Observation",
		Derivation: sd.DerivationConstraint, FHIRVersion: "4.0.1", Snapshot: tree,
	}

	doc := SDDocument(def)
	require.Equal(t, "StructureDefinition", doc["resourceType"])
	require.Equal(t, "MyObs", doc["id"])
	require.Equal(t, "constraint", doc["derivation"])

	snapshot := doc["snapshot"].(map[string]any)
	elements := snapshot["element"].([]any)
	require.Len(t, elements, 2)

	differential := doc["differential"].(map[string]any)
	diffElements := differential["element"].([]any)
	require.Len(t, diffElements, 1)
	diffEl := diffElements[0].(map[string]any)
	require.Equal(t, "Observation.subject", diffEl["path"])
	require.Equal(t, 1, diffEl["min"])
}

func TestSDDocument_ExtensionKindSerializesAsComplexType(t *testing.T) {
	tree := sd.NewTree()
	tree.Add(&sd.Element{Path: "Extension", Id: "Extension", Parent: -1})
	def := &sd.StructureDefinition{Id: "my-ext", Kind: sd.KindExtension, Snapshot: tree}

	doc := SDDocument(def)
	require.Equal(t, "complex-type", doc["kind"])
}

func TestElementDoc_MergesCaretValuesOntoSlicing(t *testing.T) {
	el := &sd.Element{
		Path: "Observation.category", Id: "Observation.category", Min: 0, Max: "*",
		Slicing: &sd.Slicing{Rules: "open"},
		Caret: map[string]any{
			"slicing.discriminator[0].path": ast.String{Text: "coding.code"},
			"short":                         ast.String{Text: "categorized"},
		},
	}

	doc := elementDoc(el)
	slicing := doc["slicing"].(map[string]any)
	discs := slicing["discriminator"].([]any)
	require.Len(t, discs, 1)
	require.Equal(t, "coding.code", discs[0].(map[string]any)["path"])
	require.Equal(t, "categorized", doc["short"])
}

func TestInstanceDocument_ReturnsData(t *testing.T) {
	inst := &instance.InstanceDefinition{
		ResourceType: "Patient", Id: "pat1",
		Data: map[string]any{"resourceType": "Patient", "id": "pat1", "active": true},
	}
	doc := InstanceDocument(inst)
	require.Equal(t, true, doc["active"])
}
