package sd

// Element is one node in an element arena. Parent/Children are arena
// indices, not pointers, so a Tree can be deep-copied by copying its
// Nodes slice.
type Element struct {
	Path      string // dotted, type-qualified path, e.g. "Observation.value[x]"
	Id        string // unique id, slice-qualified: "Observation.category:niceSlice"
	SliceName string

	Min int
	Max string

	Types   []TypeRef
	Binding *Binding
	Slicing *Slicing

	MustSupport bool
	Summary     bool
	IsModifier  bool

	// Pattern/Fixed hold the attached value keyed by the FHIR type
	// suffix it was attached under (e.g. "Quantity" for patternQuantity).
	// Exactly one of Pattern/Fixed is non-nil at a time, per element.
	PatternType string
	Pattern     any
	FixedType   string
	Fixed       any

	// Caret holds arbitrary element-definition-level fields set by
	// CaretValue rules, keyed by the caret path (e.g. "slicing.rules").
	Caret map[string]any

	ContentReference string

	Parent   int // arena index, -1 for the root element
	Children []int

	// Changed marks a node mutated by the current export; only Changed
	// nodes are written to the differential.
	Changed bool
}

// Tree is an arena of Elements for one StructureDefinition.
type Tree struct {
	Nodes  []*Element
	byPath map[string]int
	byId   map[string]int
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{byPath: map[string]int{}, byId: map[string]int{}}
}

// Clone deep-copies the tree so mutations during one entity's export
// never affect the parent snapshot another entity clones from.
func (t *Tree) Clone() *Tree {
	out := NewTree()
	out.Nodes = make([]*Element, len(t.Nodes))
	for i, n := range t.Nodes {
		cp := *n
		cp.Types = append([]TypeRef(nil), n.Types...)
		cp.Children = append([]int(nil), n.Children...)
		if n.Binding != nil {
			b := *n.Binding
			cp.Binding = &b
		}
		if n.Slicing != nil {
			s := *n.Slicing
			s.Discriminators = append([]Discriminator(nil), n.Slicing.Discriminators...)
			cp.Slicing = &s
		}
		if n.Caret != nil {
			cp.Caret = make(map[string]any, len(n.Caret))
			for k, v := range n.Caret {
				cp.Caret[k] = v
			}
		}
		cp.Changed = false
		out.Nodes[i] = &cp
	}
	for k, v := range t.byPath {
		out.byPath[k] = v
	}
	for k, v := range t.byId {
		out.byId[k] = v
	}
	return out
}

// Add appends a node to the arena, indexing it by path and id, and
// returns its index.
func (t *Tree) Add(n *Element) int {
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, n)
	if n.Path != "" {
		// The last non-slice node for a given path wins the plain-path
		// index; a slice node takes it only when no node holds that path
		// yet, and slice elements are still reachable through byId.
		if _, exists := t.byPath[n.Path]; !exists || n.SliceName == "" {
			t.byPath[n.Path] = idx
		}
	}
	if n.Id != "" {
		t.byId[n.Id] = idx
	}
	if n.Parent >= 0 && n.Parent < len(t.Nodes) {
		parent := t.Nodes[n.Parent]
		parent.Children = append(parent.Children, idx)
	}
	return idx
}

// Get returns the node at idx.
func (t *Tree) Get(idx int) *Element { return t.Nodes[idx] }

// ByPath looks up a node by its plain (non-slice-qualified) path.
func (t *Tree) ByPath(path string) (int, bool) {
	idx, ok := t.byPath[path]
	return idx, ok
}

// ByID looks up a node by its full element id.
func (t *Tree) ByID(id string) (int, bool) {
	idx, ok := t.byId[id]
	return idx, ok
}

// Root returns the tree's root element index, or -1 if empty.
func (t *Tree) Root() int {
	if len(t.Nodes) == 0 {
		return -1
	}
	return 0
}

// Reindex rebuilds the path/id lookup tables after bulk structural
// changes (used by the differential snapshot clone).
func (t *Tree) Reindex() {
	t.byPath = make(map[string]int, len(t.Nodes))
	t.byId = make(map[string]int, len(t.Nodes))
	for i, n := range t.Nodes {
		if n.Path != "" {
			if _, exists := t.byPath[n.Path]; !exists || n.SliceName == "" {
				t.byPath[n.Path] = i
			}
		}
		if n.Id != "" {
			t.byId[n.Id] = i
		}
	}
}

// Differential returns the subset of nodes marked Changed, in arena
// order, matching the invariant that differential.element is a subset
// of snapshot.element and every entry names at least one changed field.
func (t *Tree) Differential() []*Element {
	var out []*Element
	for _, n := range t.Nodes {
		if n.Changed {
			out = append(out, n)
		}
	}
	return out
}
