package sd

import "strings"

// ChoiceTypeSuffixes lists the FHIR type names that may appear as a
// suffix on a choice element's specialized name (e.g. "valueQuantity"
// specializes "value[x]" to type "Quantity"), trimmed to the types
// that actually appear in base FHIR R4 choice elements.
var ChoiceTypeSuffixes = []string{
	"Base64Binary", "Boolean", "Canonical", "Code", "Date", "DateTime",
	"Decimal", "Id", "Instant", "Integer", "Integer64", "Markdown", "Oid",
	"PositiveInt", "String", "Time", "UnsignedInt", "Uri", "Url", "Uuid",
	"Address", "Age", "Annotation", "Attachment", "CodeableConcept",
	"CodeableReference", "Coding", "ContactPoint", "Count", "Distance",
	"Duration", "HumanName", "Identifier", "Money", "Period", "Quantity",
	"Range", "Ratio", "RatioRange", "Reference", "SampledData",
	"Signature", "Timing", "ContactDetail", "Contributor", "DataRequirement",
	"Expression", "ParameterDefinition", "RelatedArtifact", "TriggerDefinition",
	"UsageContext", "Dosage", "Meta",
}

// MatchChoiceSuffix reports whether candidateName is baseName followed
// by a known type suffix (e.g. candidateName="valueQuantity",
// baseName="value" -> suffix "Quantity", ok=true).
func MatchChoiceSuffix(candidateName, baseName string) (suffix string, ok bool) {
	if !strings.HasPrefix(candidateName, baseName) {
		return "", false
	}
	rest := candidateName[len(baseName):]
	for _, s := range ChoiceTypeSuffixes {
		if rest == s {
			return s, true
		}
	}
	return "", false
}

// LowerFirst lowercases the first rune, the inverse transform used when
// deriving a choice element's base name from its "[x]" path segment.
func LowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
