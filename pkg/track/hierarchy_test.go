package track

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rdawcore/pkg/object"
	"rdawcore/pkg/rdawerr"
)

func newHarness() (*object.Storage[Track], *Manager, *[]HierarchyEvent) {
	storage := object.NewStorage[Track]()
	events := &[]HierarchyEvent{}
	mgr := NewManager(storage, func(keys []Id, event HierarchyEvent) {
		*events = append(*events, event)
	})
	return storage, mgr, events
}

func insertTrack(s *object.Storage[Track], name string) Id {
	return s.Insert(object.Metadata{UUID: uuid.New()}, *New(name))
}

func TestAppendChildBuildsParentChildLinkAndAncestors(t *testing.T) {
	storage, mgr, _ := newHarness()
	root := insertTrack(storage, "root")
	child := insertTrack(storage, "child")

	require.NoError(t, mgr.AppendChild(root, child))

	rootTrack, _ := storage.Get(root)
	assert.Equal(t, []Id{child}, rootTrack.Links.Children)

	childTrack, _ := storage.Get(child)
	assert.True(t, childTrack.Links.DirectAncestors.Contains(root.Raw()))
	assert.True(t, childTrack.Links.Ancestors.Contains(root.Raw()))
}

func TestInsertChildAtIndexOutOfBounds(t *testing.T) {
	storage, mgr, _ := newHarness()
	root := insertTrack(storage, "root")
	child := insertTrack(storage, "child")

	err := mgr.InsertChild(root, child, 5)
	require.Error(t, err)
	var rdErr *rdawerr.Error
	require.ErrorAs(t, err, &rdErr)
	assert.Equal(t, rdawerr.IndexOutOfBounds, rdErr.Kind())
}

func TestInsertChildRejectsSelfParenting(t *testing.T) {
	storage, mgr, _ := newHarness()
	root := insertTrack(storage, "root")

	err := mgr.InsertChild(root, root, 0)
	require.Error(t, err)
	var rdErr *rdawerr.Error
	require.ErrorAs(t, err, &rdErr)
	assert.Equal(t, rdawerr.RecursiveTrack, rdErr.Kind())
}

func TestInsertChildRejectsCycleThroughGrandparent(t *testing.T) {
	storage, mgr, _ := newHarness()
	grandparent := insertTrack(storage, "grandparent")
	parent := insertTrack(storage, "parent")
	child := insertTrack(storage, "child")

	require.NoError(t, mgr.AppendChild(grandparent, parent))
	require.NoError(t, mgr.AppendChild(parent, child))

	// Attempting to make the grandparent a child of its own grandchild
	// must fail and must not mutate the hierarchy.
	err := mgr.InsertChild(child, grandparent, 0)
	require.Error(t, err)
	var rdErr *rdawerr.Error
	require.ErrorAs(t, err, &rdErr)
	assert.Equal(t, rdawerr.RecursiveTrack, rdErr.Kind())

	childTrack, _ := storage.Get(child)
	assert.Empty(t, childTrack.Links.Children)
}

func TestRemoveChildClearsAncestorsWhenNoOtherPathRemains(t *testing.T) {
	storage, mgr, _ := newHarness()
	root := insertTrack(storage, "root")
	child := insertTrack(storage, "child")
	require.NoError(t, mgr.AppendChild(root, child))

	require.NoError(t, mgr.RemoveChild(root, 0))

	rootTrack, _ := storage.Get(root)
	assert.Empty(t, rootTrack.Links.Children)

	childTrack, _ := storage.Get(child)
	assert.False(t, childTrack.Links.Ancestors.Contains(root.Raw()))
}

func TestMoveTrackWithinParentReordersChildren(t *testing.T) {
	storage, mgr, _ := newHarness()
	root := insertTrack(storage, "root")
	a := insertTrack(storage, "a")
	b := insertTrack(storage, "b")
	c := insertTrack(storage, "c")
	require.NoError(t, mgr.AppendChild(root, a))
	require.NoError(t, mgr.AppendChild(root, b))
	require.NoError(t, mgr.AppendChild(root, c))

	require.NoError(t, mgr.MoveTrack(root, 0, root, 2))

	rootTrack, _ := storage.Get(root)
	assert.Equal(t, []Id{b, c, a}, rootTrack.Links.Children)
}

func TestMoveTrackBetweenParentsUpdatesAncestorsOnBothSides(t *testing.T) {
	storage, mgr, _ := newHarness()
	parentA := insertTrack(storage, "parentA")
	parentB := insertTrack(storage, "parentB")
	child := insertTrack(storage, "child")
	require.NoError(t, mgr.AppendChild(parentA, child))

	require.NoError(t, mgr.MoveTrack(parentA, 0, parentB, 0))

	pa, _ := storage.Get(parentA)
	assert.Empty(t, pa.Links.Children)
	pb, _ := storage.Get(parentB)
	assert.Equal(t, []Id{child}, pb.Links.Children)

	childTrack, _ := storage.Get(child)
	assert.False(t, childTrack.Links.Ancestors.Contains(parentA.Raw()))
	assert.True(t, childTrack.Links.Ancestors.Contains(parentB.Raw()))
}

func TestMoveTrackBetweenParentsRejectsCycle(t *testing.T) {
	storage, mgr, _ := newHarness()
	grandparent := insertTrack(storage, "grandparent")
	parent := insertTrack(storage, "parent")
	child := insertTrack(storage, "child")
	require.NoError(t, mgr.AppendChild(grandparent, parent))
	require.NoError(t, mgr.AppendChild(parent, child))

	// Moving "parent" to become a child of its own grandchild would
	// create a cycle through grandparent -> parent -> child -> parent.
	err := mgr.MoveTrack(grandparent, 0, child, 0)
	require.Error(t, err)
}

func TestGetHierarchyReturnsPreOrderWithLevels(t *testing.T) {
	storage, mgr, _ := newHarness()
	root := insertTrack(storage, "root")
	left := insertTrack(storage, "left")
	right := insertTrack(storage, "right")
	leftChild := insertTrack(storage, "left-child")

	require.NoError(t, mgr.AppendChild(root, left))
	require.NoError(t, mgr.AppendChild(root, right))
	require.NoError(t, mgr.AppendChild(left, leftChild))

	h, err := mgr.GetHierarchy(root)
	require.NoError(t, err)

	require.Equal(t, []Id{root, left, leftChild, right}, h.Ids)
	assert.Equal(t, []int{0, 1, 2, 1}, h.Levels)
	assert.Equal(t, []bool{false, true, true, true}, h.HasParent)
	assert.Equal(t, left, h.Parents[2])
}

func TestAppendChildNotifiesMutatedTrackAndAncestors(t *testing.T) {
	storage, mgr, events := newHarness()
	grandparent := insertTrack(storage, "grandparent")
	parent := insertTrack(storage, "parent")
	child := insertTrack(storage, "child")

	require.NoError(t, mgr.AppendChild(grandparent, parent))
	*events = nil

	require.NoError(t, mgr.AppendChild(parent, child))
	require.Len(t, *events, 1)
	assert.Equal(t, parent, (*events)[0].Id)
	assert.Equal(t, []Id{child}, (*events)[0].NewChildren)
}
