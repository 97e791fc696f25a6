// Package tank holds every entity imported across all source files for
// one compilation, indexed for name/id lookup. It is the in-memory
// "bag of documents" the Package Assembler batches Importer output into
// before the exporters run.
package tank

import "github.com/gofhir/fsh/ast"

// Kind selects which entity kinds a Fish lookup considers, in the order
// given — the first match in the requested kind order wins.
type Kind int

const (
	KindProfile Kind = iota
	KindExtension
	KindInstance
	KindRuleSet
	KindAlias
)

// Tank is the collection of all imported authoring documents for one
// compilation.
type Tank struct {
	Documents []*ast.Document

	profiles   map[string]*ast.Profile
	extensions map[string]*ast.Extension
	instances  map[string]*ast.Instance
	ruleSets   map[string]*ast.RuleSet
}

// New builds a Tank from a set of parsed documents, indexing every
// entity by name and, when present, by id.
func New(docs []*ast.Document) *Tank {
	t := &Tank{
		Documents:  docs,
		profiles:   map[string]*ast.Profile{},
		extensions: map[string]*ast.Extension{},
		instances:  map[string]*ast.Instance{},
		ruleSets:   map[string]*ast.RuleSet{},
	}
	for _, d := range docs {
		for _, p := range d.Profiles {
			t.profiles[p.Name] = p
			if p.Id != "" {
				t.profiles[p.Id] = p
			}
		}
		for _, e := range d.Extensions {
			t.extensions[e.Name] = e
			if e.Id != "" {
				t.extensions[e.Id] = e
			}
		}
		for _, i := range d.Instances {
			t.instances[i.Name] = i
			if i.Id != "" {
				t.instances[i.Id] = i
			}
		}
		for _, r := range d.RuleSets {
			t.ruleSets[r.Name] = r
		}
	}
	return t
}

// Profile looks up a Profile by name or id.
func (t *Tank) Profile(name string) (*ast.Profile, bool) {
	p, ok := t.profiles[name]
	return p, ok
}

// Extension looks up an Extension by name or id.
func (t *Tank) Extension(name string) (*ast.Extension, bool) {
	e, ok := t.extensions[name]
	return e, ok
}

// Instance looks up an Instance by name or id.
func (t *Tank) Instance(name string) (*ast.Instance, bool) {
	i, ok := t.instances[name]
	return i, ok
}

// RuleSet looks up a RuleSet by name.
func (t *Tank) RuleSet(name string) (*ast.RuleSet, bool) {
	r, ok := t.ruleSets[name]
	return r, ok
}

// AllProfiles returns every profile across the tank, in deterministic
// (insertion) document order.
func (t *Tank) AllProfiles() []*ast.Profile {
	var out []*ast.Profile
	for _, d := range t.Documents {
		out = append(out, d.Profiles...)
	}
	return out
}

// AllExtensions returns every extension across the tank, in document order.
func (t *Tank) AllExtensions() []*ast.Extension {
	var out []*ast.Extension
	for _, d := range t.Documents {
		out = append(out, d.Extensions...)
	}
	return out
}

// AllInstances returns every instance across the tank, in document order.
func (t *Tank) AllInstances() []*ast.Instance {
	var out []*ast.Instance
	for _, d := range t.Documents {
		out = append(out, d.Instances...)
	}
	return out
}

// Fish finds an entity by name, id, or (for Profile/Extension) its
// eventual canonical URL is not resolvable here — url lookup is the
// Definitions Cache's job. Fish matches by name/id across the Tank's
// FSH-authored entities only, preferring the first match in the given
// kind order.
func (t *Tank) Fish(name string, kinds ...Kind) (any, Kind, bool) {
	if len(kinds) == 0 {
		kinds = []Kind{KindProfile, KindExtension, KindInstance, KindRuleSet}
	}
	for _, k := range kinds {
		switch k {
		case KindProfile:
			if p, ok := t.profiles[name]; ok {
				return p, KindProfile, true
			}
		case KindExtension:
			if e, ok := t.extensions[name]; ok {
				return e, KindExtension, true
			}
		case KindInstance:
			if i, ok := t.instances[name]; ok {
				return i, KindInstance, true
			}
		case KindRuleSet:
			if r, ok := t.ruleSets[name]; ok {
				return r, KindRuleSet, true
			}
		}
	}
	return nil, 0, false
}
