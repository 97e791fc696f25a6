package fhirdefs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gofhir/fsh/sd"
)

const observationSD = `{
  "resourceType": "StructureDefinition",
  "url": "http://hl7.org/fhir/StructureDefinition/Observation",
  "name": "Observation",
  "type": "Observation",
  "kind": "resource",
  "abstract": false,
  "fhirVersion": "4.0.1",
  "snapshot": {
    "element": [
      {"id": "Observation", "path": "Observation", "min": 0, "max": "*"},
      {"id": "Observation.status", "path": "Observation.status", "min": 1, "max": "1",
       "type": [{"code": "code"}], "isSummary": true},
      {"id": "Observation.subject", "path": "Observation.subject", "min": 0, "max": "1",
       "type": [{"code": "Reference", "targetProfile": ["http://hl7.org/fhir/StructureDefinition/Patient"]}]},
      {"id": "Observation.category", "path": "Observation.category", "min": 0, "max": "*",
       "type": [{"code": "CodeableConcept"}],
       "slicing": {"discriminator": [{"type": "value", "path": "coding.code"}], "rules": "open"}}
    ]
  }
}`

func TestLoadJSON_IndexesByURLAndType(t *testing.T) {
	c := New()
	require.NoError(t, c.LoadJSON([]byte(observationSD)))
	require.Equal(t, 1, c.Count())

	byURL, ok := c.FetchByURL("http://hl7.org/fhir/StructureDefinition/Observation")
	require.True(t, ok)
	require.Equal(t, "Observation", byURL.Id)
	require.Equal(t, "4.0.1", byURL.FHIRVersion)

	byType, ok := c.FetchByType("Observation")
	require.True(t, ok)
	require.Same(t, byURL, byType)
}

func TestLoadJSON_ConvertsElementTreeAndSlicing(t *testing.T) {
	c := New()
	require.NoError(t, c.LoadJSON([]byte(observationSD)))

	def, _ := c.FetchByType("Observation")

	idx, ok := def.Snapshot.ByPath("Observation.subject")
	require.True(t, ok)
	subject := def.Snapshot.Get(idx)
	require.Equal(t, 0, subject.Min)
	require.Equal(t, "1", subject.Max)
	require.Len(t, subject.Types, 1)
	require.Equal(t, "Reference", subject.Types[0].Code)
	require.Equal(t, []string{"http://hl7.org/fhir/StructureDefinition/Patient"}, subject.Types[0].TargetProfile)

	statusIdx, ok := def.Snapshot.ByPath("Observation.status")
	require.True(t, ok)
	status := def.Snapshot.Get(statusIdx)
	require.Equal(t, 1, status.Min)
	require.True(t, status.Summary)

	catIdx, ok := def.Snapshot.ByPath("Observation.category")
	require.True(t, ok)
	cat := def.Snapshot.Get(catIdx)
	require.NotNil(t, cat.Slicing)
	require.Equal(t, "open", cat.Slicing.Rules)
	require.Equal(t, []sd.Discriminator{{Type: "value", Path: "coding.code"}}, cat.Slicing.Discriminators)
}

func TestLoadJSON_RejectsNonStructureDefinitionResource(t *testing.T) {
	c := New()
	err := c.LoadJSON([]byte(`{"resourceType": "Patient"}`))
	require.Error(t, err)
	require.Equal(t, 0, c.Count())
}

func TestLoadJSON_RejectsMalformedJSON(t *testing.T) {
	c := New()
	err := c.LoadJSON([]byte(`not json`))
	require.Error(t, err)
}
