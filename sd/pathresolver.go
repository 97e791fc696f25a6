package sd

import (
	"fmt"
	"strings"

	"github.com/gofhir/fsh/ast"
)

// Resolver walks a Tree following a dotted ast.Path, exactly the state
// machine described for element creation: at each segment, try (a) a
// direct child, (b) a choice-base specialization, (c) an existing slice,
// or (d) fail with CannotResolvePath. The SD Exporter calls Resolve with
// create=true (lazily materializing choice and slice elements); the
// Instance Exporter does not use it and resolves instance paths with
// its own read-only walk.
type Resolver struct {
	Tree         *Tree
	ResourceType string
}

// NewResolver builds a Resolver over tree, rooted at resourceType.
func NewResolver(tree *Tree, resourceType string) *Resolver {
	return &Resolver{Tree: tree, ResourceType: resourceType}
}

// ErrCannotResolvePath is returned (wrapped with the failing path) when
// no transition applies at some segment.
type ErrCannotResolvePath struct {
	Path    string
	Segment string
}

func (e *ErrCannotResolvePath) Error() string {
	return fmt.Sprintf("cannot resolve path %q at segment %q", e.Path, e.Segment)
}

// Resolve walks path from the tree's root, returning the arena index of
// the final node. A typed choice name (e.g. "valueQuantity") lazily
// creates its choice specialization whatever create says; when create
// is true, a missing slice node is also created, and the array element
// gets a default slicing if it has none. It never creates plain missing
// children — those must already exist in the cloned snapshot.
func (r *Resolver) Resolve(path ast.Path, create bool) (int, error) {
	segs := path.Segments()
	current := r.Tree.Root()
	if current == -1 {
		return -1, &ErrCannotResolvePath{Path: string(path), Segment: ""}
	}
	currentPath := r.Tree.Get(current).Path

	for _, seg := range segs {
		next, nextPath, err := r.step(current, currentPath, seg, create)
		if err != nil {
			return -1, err
		}
		current, currentPath = next, nextPath
	}
	return current, nil
}

func (r *Resolver) step(current int, currentPath string, seg ast.Segment, create bool) (int, string, error) {
	childPath := currentPath + "." + seg.Name

	switch {
	case seg.Choice:
		// (b) choice-base: the path literally names "x[x]"; it must
		// already exist on the cloned snapshot.
		choicePath := childPath + "[x]"
		if idx, ok := r.Tree.ByPath(choicePath); ok {
			return idx, choicePath, nil
		}
		return -1, "", &ErrCannotResolvePath{Path: childPath, Segment: seg.Name}

	case seg.Slice != "":
		// (c) sliced array entry.
		id := childPath + ":" + seg.Slice
		if idx, ok := r.Tree.ByID(id); ok {
			return idx, childPath, nil
		}
		if !create {
			return -1, "", &ErrCannotResolvePath{Path: childPath, Segment: seg.Name}
		}
		baseIdx, ok := r.Tree.ByPath(childPath)
		if !ok {
			return -1, "", &ErrCannotResolvePath{Path: childPath, Segment: seg.Name}
		}
		idx := r.createSlice(baseIdx, seg.Slice)
		return idx, childPath, nil

	case seg.Index >= 0:
		// numeric indices address an occurrence of the same element node;
		// the arena holds one node per repeating element, not per item.
		if idx, ok := r.Tree.ByPath(childPath); ok {
			return idx, childPath, nil
		}
		return -1, "", &ErrCannotResolvePath{Path: childPath, Segment: seg.Name}

	default:
		// (a) direct child.
		if idx, ok := r.Tree.ByPath(childPath); ok {
			return idx, childPath, nil
		}
		// (b) choice-base specialization reached via a typed name, e.g.
		// "valueQuantity" where "value[x]" exists on the parent.
		if idx, newPath, ok := r.materializeChoice(current, currentPath, seg.Name); ok {
			return idx, newPath, nil
		}
		return -1, "", &ErrCannotResolvePath{Path: childPath, Segment: seg.Name}
	}
}

// materializeChoice looks for a "<base>[x]" child of current whose
// base name is a prefix of candidateName with a recognized type suffix,
// and creates (or reuses) a type-specialized view node for it.
func (r *Resolver) materializeChoice(parent int, parentPath, candidateName string) (int, string, bool) {
	for _, childIdx := range r.Tree.Get(parent).Children {
		child := r.Tree.Get(childIdx)
		if !strings.HasSuffix(child.Path, "[x]") {
			continue
		}
		baseName := strings.TrimSuffix(strings.TrimPrefix(child.Path, parentPath+"."), "[x]")
		suffix, ok := MatchChoiceSuffix(candidateName, baseName)
		if !ok {
			continue
		}
		specializedPath := parentPath + "." + candidateName
		if idx, exists := r.Tree.ByPath(specializedPath); exists {
			return idx, specializedPath, true
		}
		view := *child
		view.Path = specializedPath
		view.Id = specializedPath
		view.Types = []TypeRef{{Code: suffix}}
		view.Parent = parent
		view.Children = nil
		idx := r.Tree.Add(&view)
		return idx, specializedPath, true
	}
	return -1, "", false
}

// createSlice clones baseIdx's element as a new named slice under the
// same array element, per "(c) sliced array entry refers to an existing
// slice -> descend into slice; nascent slice: create it".
func (r *Resolver) createSlice(baseIdx int, sliceName string) int {
	base := r.Tree.Get(baseIdx)
	clone := *base
	clone.SliceName = sliceName
	clone.Id = base.Path + ":" + sliceName
	clone.Slicing = nil
	clone.Children = nil
	clone.Changed = true
	idx := r.Tree.Add(&clone)

	if base.Slicing == nil {
		base.Slicing = &Slicing{
			Discriminators: []Discriminator{{Type: "value", Path: "$this"}},
			Rules:          "open",
		}
		base.Changed = true
	}
	return idx
}
