package tank

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gofhir/fsh/ast"
)

func newTestTank() *Tank {
	doc1 := &ast.Document{
		File: "profiles.fsh",
		Profiles: []*ast.Profile{
			{EntityBase: ast.EntityBase{Name: "MyObservation", Id: "my-observation"}, Parent: "Observation"},
		},
		RuleSets: []*ast.RuleSet{
			{EntityBase: ast.EntityBase{Name: "CommonMeta"}},
		},
	}
	doc2 := &ast.Document{
		File: "instances.fsh",
		Extensions: []*ast.Extension{
			{EntityBase: ast.EntityBase{Name: "BirthPlace"}, Parent: "Extension"},
		},
		Instances: []*ast.Instance{
			{EntityBase: ast.EntityBase{Name: "PatientExample"}, InstanceOf: "Patient"},
		},
	}
	return New([]*ast.Document{doc1, doc2})
}

func TestNew_IndexesEntitiesByNameAndId(t *testing.T) {
	tnk := newTestTank()

	byName, ok := tnk.Profile("MyObservation")
	require.True(t, ok)
	require.Equal(t, "Observation", byName.Parent)

	byId, ok := tnk.Profile("my-observation")
	require.True(t, ok)
	require.Same(t, byName, byId)

	_, ok = tnk.Extension("BirthPlace")
	require.True(t, ok)
	_, ok = tnk.Instance("PatientExample")
	require.True(t, ok)
	_, ok = tnk.RuleSet("CommonMeta")
	require.True(t, ok)
}

func TestAllProfiles_PreservesDocumentOrder(t *testing.T) {
	tnk := newTestTank()
	all := tnk.AllProfiles()
	require.Len(t, all, 1)
	require.Equal(t, "MyObservation", all[0].Name)
}

func TestFish_PrefersFirstMatchingKindInGivenOrder(t *testing.T) {
	tnk := newTestTank()

	ent, kind, ok := tnk.Fish("BirthPlace", KindProfile, KindExtension)
	require.True(t, ok)
	require.Equal(t, KindExtension, kind)
	require.IsType(t, &ast.Extension{}, ent)
}

func TestFish_UnknownNameReportsNotFound(t *testing.T) {
	tnk := newTestTank()
	_, _, ok := tnk.Fish("DoesNotExist")
	require.False(t, ok)
}
