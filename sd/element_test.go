package sd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildBasicTree() *Tree {
	t := NewTree()
	root := t.Add(&Element{Path: "Observation", Id: "Observation", Parent: -1})
	t.Add(&Element{Path: "Observation.status", Id: "Observation.status", Parent: root})
	t.Add(&Element{Path: "Observation.value[x]", Id: "Observation.value[x]", Parent: root})
	return t
}

func TestAdd_IndexesNodesByPathAndId(t *testing.T) {
	tree := buildBasicTree()

	idx, ok := tree.ByPath("Observation.status")
	require.True(t, ok)
	require.Equal(t, "Observation.status", tree.Get(idx).Path)

	idx, ok = tree.ByID("Observation.value[x]")
	require.True(t, ok)
	require.Equal(t, "Observation.value[x]", tree.Get(idx).Id)

	require.Equal(t, 0, tree.Root())
}

func TestAdd_LinksChildrenToParent(t *testing.T) {
	tree := buildBasicTree()
	root := tree.Get(tree.Root())
	require.Len(t, root.Children, 2)
}

func TestAdd_SlicedPathKeepsBasePathIndexButIndexesById(t *testing.T) {
	tree := NewTree()
	root := tree.Add(&Element{Path: "Observation", Parent: -1})
	base := tree.Add(&Element{Path: "Observation.category", Parent: root})
	tree.Add(&Element{Path: "Observation.category", Id: "Observation.category:niceSlice", SliceName: "niceSlice", Parent: root})

	idx, ok := tree.ByPath("Observation.category")
	require.True(t, ok)
	require.Equal(t, base, idx, "plain path index should still resolve to the unsliced base element")

	sliceIdx, ok := tree.ByID("Observation.category:niceSlice")
	require.True(t, ok)
	require.Equal(t, "niceSlice", tree.Get(sliceIdx).SliceName)
}

func TestClone_IsIndependentOfSource(t *testing.T) {
	tree := buildBasicTree()
	clone := tree.Clone()

	idx, ok := clone.ByPath("Observation.status")
	require.True(t, ok)
	clone.Get(idx).MustSupport = true

	origIdx, _ := tree.ByPath("Observation.status")
	require.False(t, tree.Get(origIdx).MustSupport, "mutating the clone must not affect the source tree")
}

func TestClone_ResetsChangedFlag(t *testing.T) {
	tree := buildBasicTree()
	idx, _ := tree.ByPath("Observation.status")
	tree.Get(idx).Changed = true

	clone := tree.Clone()
	cloneIdx, _ := clone.ByPath("Observation.status")
	require.False(t, clone.Get(cloneIdx).Changed)
}

func TestDifferential_ReturnsOnlyChangedNodes(t *testing.T) {
	tree := buildBasicTree()
	idx, _ := tree.ByPath("Observation.status")
	tree.Get(idx).Changed = true

	diff := tree.Differential()
	require.Len(t, diff, 1)
	require.Equal(t, "Observation.status", diff[0].Path)
}

func TestReindex_RebuildsLookupTablesAfterBulkMutation(t *testing.T) {
	tree := buildBasicTree()
	tree.Nodes[1].Path = "Observation.status.renamed"

	tree.Reindex()

	_, ok := tree.ByPath("Observation.status")
	require.False(t, ok)
	idx, ok := tree.ByPath("Observation.status.renamed")
	require.True(t, ok)
	require.Equal(t, 1, idx)
}

func TestRoot_EmptyTreeReturnsNegativeOne(t *testing.T) {
	tree := NewTree()
	require.Equal(t, -1, tree.Root())
}
