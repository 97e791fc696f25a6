// Package fhirout serializes the compiler's internal StructureDefinition
// and Instance representations into the FHIR resource JSON shape an IG
// Publisher build expects under input/resources, mirroring the field
// names loader.R4Converter reads off the wire in reverse.
package fhirout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gofhir/fsh/ast"
	"github.com/gofhir/fsh/instance"
	"github.com/gofhir/fsh/pkgassembler"
	"github.com/gofhir/fsh/sd"
)

// SDDocument renders a StructureDefinition as its FHIR JSON document.
func SDDocument(def *sd.StructureDefinition) map[string]any {
	doc := map[string]any{
		"resourceType": "StructureDefinition",
		"id":           def.Id,
		"url":          def.URL,
		"name":         def.Name,
		"status":       "draft",
		"kind":         resourceKind(def.Kind),
		"abstract":     def.Abstract,
		"type":         def.Type,
		"derivation":   string(def.Derivation),
	}
	if def.Title != "" {
		doc["title"] = def.Title
	}
	if def.Description != "" {
		doc["description"] = def.Description
	}
	if def.BaseDefinition != "" {
		doc["baseDefinition"] = def.BaseDefinition
	}
	if def.FHIRVersion != "" {
		doc["fhirVersion"] = def.FHIRVersion
	}
	if len(def.ExtensionContexts) > 0 {
		contexts := make([]any, 0, len(def.ExtensionContexts))
		for _, c := range def.ExtensionContexts {
			contexts = append(contexts, map[string]any{"type": c.Type, "expression": c.Expression})
		}
		doc["context"] = contexts
	}

	if def.Snapshot != nil {
		elements := make([]any, 0, len(def.Snapshot.Nodes))
		for _, n := range def.Snapshot.Nodes {
			elements = append(elements, elementDoc(n))
		}
		doc["snapshot"] = map[string]any{"element": elements}

		diffNodes := def.Snapshot.Differential()
		diffElements := make([]any, 0, len(diffNodes))
		for _, n := range diffNodes {
			diffElements = append(diffElements, elementDoc(n))
		}
		doc["differential"] = map[string]any{"element": diffElements}
	}
	return doc
}

// resourceKind maps the compiler's logical Extension kind back onto the
// "complex-type" kind FHIR actually serializes Extension SDs under.
func resourceKind(k sd.Kind) string {
	if k == sd.KindExtension {
		return string(sd.KindComplexType)
	}
	return string(k)
}

func elementDoc(e *sd.Element) map[string]any {
	m := map[string]any{
		"id":   e.Id,
		"path": e.Path,
		"min":  e.Min,
		"max":  e.Max,
	}
	if e.SliceName != "" {
		m["sliceName"] = e.SliceName
	}
	if len(e.Types) > 0 {
		types := make([]any, 0, len(e.Types))
		for _, t := range e.Types {
			tm := map[string]any{"code": t.Code}
			if len(t.Profile) > 0 {
				tm["profile"] = t.Profile
			}
			if len(t.TargetProfile) > 0 {
				tm["targetProfile"] = t.TargetProfile
			}
			types = append(types, tm)
		}
		m["type"] = types
	}
	if e.Binding != nil {
		m["binding"] = map[string]any{"strength": e.Binding.Strength.String(), "valueSet": e.Binding.ValueSet}
	}
	if e.Slicing != nil {
		discs := make([]any, 0, len(e.Slicing.Discriminators))
		for _, d := range e.Slicing.Discriminators {
			discs = append(discs, map[string]any{"type": d.Type, "path": d.Path})
		}
		sl := map[string]any{"discriminator": discs, "rules": e.Slicing.Rules, "ordered": e.Slicing.Ordered}
		if e.Slicing.Description != "" {
			sl["description"] = e.Slicing.Description
		}
		m["slicing"] = sl
	}
	if e.MustSupport {
		m["mustSupport"] = true
	}
	if e.Summary {
		m["isSummary"] = true
	}
	if e.IsModifier {
		m["isModifier"] = true
	}
	if e.ContentReference != "" {
		m["contentReference"] = e.ContentReference
	}
	if e.FixedType != "" {
		m["fixed"+e.FixedType] = e.Fixed
	}
	if e.PatternType != "" {
		m["pattern"+e.PatternType] = e.Pattern
	}
	for path, value := range e.Caret {
		if v, ok := value.(ast.Value); ok {
			setDotted(m, path, valueJSON(v))
		} else {
			setDotted(m, path, value)
		}
	}
	return m
}

var indexSeg = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9]*)\[(\d+)\]$`)

// setDotted writes value into m at the dotted caret path, creating
// intermediate maps and fixed-size arrays (for "foo[0]"-style segments)
// as needed — the reverse of how applyCaret records the path.
func setDotted(m map[string]any, dotted string, value any) {
	segs := strings.Split(dotted, ".")
	cur := m
	for i, seg := range segs {
		last := i == len(segs)-1
		if match := indexSeg.FindStringSubmatch(seg); match != nil {
			name := match[1]
			idx, _ := strconv.Atoi(match[2])
			arr, _ := cur[name].([]any)
			for len(arr) <= idx {
				arr = append(arr, map[string]any{})
			}
			cur[name] = arr
			if last {
				arr[idx] = value
				return
			}
			next, ok := arr[idx].(map[string]any)
			if !ok {
				next = map[string]any{}
				arr[idx] = next
			}
			cur = next
			continue
		}
		if last {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
}

// valueJSON converts a caret rule's literal ast.Value into its JSON-ready
// representation, mirroring instance.valueJSON for the subset of value
// kinds a CaretValue rule can carry.
func valueJSON(v ast.Value) any {
	switch val := v.(type) {
	case ast.String:
		return val.Text
	case ast.Number:
		return val.Float
	case ast.Bool:
		return val.Value
	case ast.DateTimeLiteral:
		return val.Text
	case ast.Code:
		m := map[string]any{"code": val.Code}
		if val.System != "" {
			m["system"] = val.System
		}
		return m
	default:
		return nil
	}
}

// InstanceDocument renders an exported instance as its FHIR JSON document.
// The resourceType/id the instance was exported with are already baked
// into Data by the Instance Exporter's Export step, so this mostly
// returns Data as-is.
func InstanceDocument(inst *instance.InstanceDefinition) map[string]any {
	return inst.Data
}

// WritePackage writes every profile, extension, and instance in pkg to
// outDir as one JSON file per resource, named the way the IG Publisher's
// input/resources convention expects: "<ResourceType>-<id>.json".
func WritePackage(pkg *pkgassembler.Package, outDir string) (int, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("create output directory %s: %w", outDir, err)
	}

	written := 0
	for _, def := range pkg.ProfileList() {
		if err := writeJSON(outDir, "StructureDefinition", def.Id, SDDocument(def)); err != nil {
			return written, err
		}
		written++
	}
	for _, def := range pkg.ExtensionList() {
		if err := writeJSON(outDir, "StructureDefinition", def.Id, SDDocument(def)); err != nil {
			return written, err
		}
		written++
	}
	for _, inst := range pkg.Instances {
		if err := writeJSON(outDir, inst.ResourceType, inst.Id, InstanceDocument(inst)); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func writeJSON(outDir, resourceType, id string, doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", resourceType, id, err)
	}
	path := filepath.Join(outDir, fmt.Sprintf("%s-%s.json", resourceType, id))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
