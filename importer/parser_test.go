package importer

import (
	"testing"

	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/diag"
	"github.com/stretchr/testify/require"
)

func TestParseCardinalityNarrowing(t *testing.T) {
	src := "Profile: Foo\n" +
		"Parent: Observation\n" +
		"* subject 1..1\n"

	sink := diag.NewSink()
	doc, err := New().Parse("foo.fsh", src, sink)
	require.NoError(t, err)
	require.False(t, sink.HasErrors())
	require.Len(t, doc.Profiles, 1)

	p := doc.Profiles[0]
	require.Equal(t, "Foo", p.Name)
	require.Equal(t, "Observation", p.Parent)
	require.Len(t, p.Rules, 1)

	card, ok := p.Rules[0].(ast.CardRule)
	require.True(t, ok)
	require.Equal(t, ast.Path("subject"), card.Path)
	require.Equal(t, 1, card.Min)
	require.Equal(t, "1", card.Max)
}

func TestParseChoiceNarrowingAndPatternLift(t *testing.T) {
	src := "Profile: Obs\n" +
		"Parent: Observation\n" +
		"* value[x] only Quantity\n" +
		"* valueQuantity = #foo from http://foo.com\n"

	sink := diag.NewSink()
	doc, err := New().Parse("obs.fsh", src, sink)
	require.NoError(t, err)
	require.Len(t, doc.Profiles, 1)

	rules := doc.Profiles[0].Rules
	require.Len(t, rules, 2)

	only, ok := rules[0].(ast.OnlyRule)
	require.True(t, ok)
	require.Equal(t, ast.Path("value[x]"), only.Path)
	require.Equal(t, []ast.TypeRef{{Name: "Quantity"}}, only.Types)

	fixed, ok := rules[1].(ast.FixedValueRule)
	require.True(t, ok)
	code, ok := fixed.Value.(ast.Code)
	require.True(t, ok)
	require.Equal(t, "foo", code.Code)
}

func TestAliasResolution(t *testing.T) {
	src := "Alias: LOINC = http://loinc.org\n" +
		"Profile: Foo\n" +
		"Parent: Observation\n" +
		"* code from LOINC\n"

	sink := diag.NewSink()
	doc, err := New().Parse("foo.fsh", src, sink)
	require.NoError(t, err)
	require.Len(t, doc.Profiles[0].Rules, 1)

	binding := doc.Profiles[0].Rules[0].(ast.ValueSetBindingRule)
	require.Equal(t, "http://loinc.org", binding.ValueSet)
}

func TestImporterIsSingleUse(t *testing.T) {
	imp := New()
	sink := diag.NewSink()
	_, err := imp.Parse("a.fsh", "Profile: Foo\nParent: Observation\n", sink)
	require.NoError(t, err)

	_, err = imp.Parse("a.fsh", "Profile: Bar\n", sink)
	require.Error(t, err)
	require.True(t, sink.HasErrors())
}

func TestUnsupportedRuleIsDroppedNotFatal(t *testing.T) {
	src := "Profile: Foo\n" +
		"Parent: Observation\n" +
		"* this is nonsense\n" +
		"* subject 1..1\n"

	sink := diag.NewSink()
	doc, err := New().Parse("foo.fsh", src, sink)
	require.NoError(t, err)
	require.True(t, sink.HasErrors() || len(sink.All()) > 0)
	require.Len(t, doc.Profiles[0].Rules, 1)
}
