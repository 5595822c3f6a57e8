package track

import (
	"github.com/RoaringBitmap/roaring/v2"

	"rdawcore/pkg/object"
	"rdawcore/pkg/rdawerr"
)

// HierarchyEvent is emitted on every successful mutation (spec §4.E),
// delivered to subscribers of the mutated track and of every one of its
// ancestors.
type HierarchyEvent struct {
	Id          Id
	NewChildren []Id
}

// Manager owns the track storage and applies hierarchy mutations,
// grounded on Backend's track ops in rdaw-backend/src/track/ops.rs.
// Notify is called once per successful mutation with the full set of
// keys (the mutated track plus every ancestor) that must see the event —
// pkg/backend wires this to a callback that converts the event into a
// TrackEvent on its rpc.Subscribers[track.Id, TrackEvent].
type Manager struct {
	Tracks *object.Storage[Track]
	Notify func(keys []Id, event HierarchyEvent)
}

// NewManager creates a hierarchy manager over tracks. notify may be nil
// in tests that don't care about event delivery.
func NewManager(tracks *object.Storage[Track], notify func([]Id, HierarchyEvent)) *Manager {
	if notify == nil {
		notify = func([]Id, HierarchyEvent) {}
	}
	return &Manager{Tracks: tracks, Notify: notify}
}

func (m *Manager) get(id Id) (*Track, error) {
	t, ok := m.Tracks.Get(id)
	if !ok {
		return nil, rdawerr.New(rdawerr.InvalidId, "track not found")
	}
	return t, nil
}

func (m *Manager) notifyChildrenChanged(id Id) {
	t, err := m.get(id)
	if err != nil {
		return
	}

	keys := make([]Id, 0, t.Links.Ancestors.GetCardinality()+1)
	it := t.Links.Ancestors.Iterator()
	for it.HasNext() {
		idx := it.Next()
		if aid, ok := m.Tracks.IdAt(idx); ok {
			keys = append(keys, aid)
		}
	}
	keys = append(keys, id)

	event := HierarchyEvent{Id: id, NewChildren: append([]Id(nil), t.Links.Children...)}
	m.Notify(keys, event)
}

// dfs visits root and every descendant, calling fn on each. Unlike the
// original's std::mem::take dance (needed there only to satisfy the
// borrow checker while re-entering the same storage mutably), Go has no
// aliasing restriction here: storage is a plain slice-backed slot-map, so a
// straightforward recursive walk over a snapshot of each node's children
// is both simpler and behaviorally identical.
func (m *Manager) dfs(root Id, fn func(id Id)) {
	fn(root)

	t, ok := m.Tracks.Get(root)
	if !ok {
		return
	}
	children := append([]Id(nil), t.Links.Children...)

	for _, child := range children {
		m.dfs(child, fn)
	}
}

// recomputeAncestors rebuilds the transitive ancestor set of root and
// every descendant of root, top-down in DFS pre-order so each parent is
// rebuilt before its children (spec §4.E: "the DFS
// may temporarily move the children vector out... the original is
// restored at the end of each frame" — the Go analogue of that dance is
// simply not needed, see dfs's doc comment).
func (m *Manager) recomputeAncestors(root Id) {
	m.dfs(root, func(id Id) {
		t, ok := m.Tracks.Get(id)
		if !ok {
			return
		}

		ancestors := roaring.New()
		it := t.Links.DirectAncestors.Iterator()
		for it.HasNext() {
			idx := it.Next()
			ancestors.Add(idx)

			aid, ok := m.Tracks.IdAt(idx)
			if !ok {
				continue
			}
			ancestor, ok := m.Tracks.Get(aid)
			if !ok {
				continue
			}
			ancestors.Or(ancestor.Links.Ancestors)
		}

		t.Links.Ancestors = ancestors
	})
}

func (m *Manager) addAncestor(trackID, ancestorID Id) {
	t, ok := m.Tracks.Get(trackID)
	if !ok {
		return
	}
	t.Links.DirectAncestors.Add(ancestorID.Raw())
	m.recomputeAncestors(trackID)
}

func (m *Manager) removeAncestor(trackID, ancestorID Id) {
	t, ok := m.Tracks.Get(trackID)
	if !ok {
		return
	}
	t.Links.DirectAncestors.Remove(ancestorID.Raw())
	m.recomputeAncestors(trackID)
}

// AppendChild inserts child at the end of parent's children.
func (m *Manager) AppendChild(parent, child Id) error {
	t, err := m.get(parent)
	if err != nil {
		return err
	}
	return m.InsertChild(parent, child, len(t.Links.Children))
}

// InsertChild inserts child into parent's children at index, failing
// RecursiveTrack if parent == child or child is already an ancestor of
// parent (spec §3.3, §8 property 2).
func (m *Manager) InsertChild(parent, child Id, index int) error {
	if !m.Tracks.Has(parent) || !m.Tracks.Has(child) {
		return rdawerr.New(rdawerr.InvalidId, "track not found")
	}
	if parent == child {
		return rdawerr.New(rdawerr.RecursiveTrack, "a track cannot be its own child")
	}

	p, _ := m.get(parent)
	if index > len(p.Links.Children) {
		return rdawerr.New(rdawerr.IndexOutOfBounds, "child index out of range")
	}
	if p.Links.Ancestors.Contains(child.Raw()) {
		return rdawerr.New(rdawerr.RecursiveTrack, "child is already an ancestor of parent")
	}

	children := append(p.Links.Children, Id{})
	copy(children[index+1:], children[index:])
	children[index] = child
	p.Links.Children = children

	m.addAncestor(child, parent)
	m.notifyChildrenChanged(parent)
	return nil
}

// RemoveChild removes the child at index from parent.
func (m *Manager) RemoveChild(parent Id, index int) error {
	p, err := m.get(parent)
	if err != nil {
		return err
	}
	if index >= len(p.Links.Children) {
		return rdawerr.New(rdawerr.IndexOutOfBounds, "child index out of range")
	}

	child := p.Links.Children[index]
	p.Links.Children = append(p.Links.Children[:index], p.Links.Children[index+1:]...)

	if !containsId(p.Links.Children, child) {
		m.removeAncestor(child, parent)
	}

	m.notifyChildrenChanged(parent)
	return nil
}

// MoveTrack relocates the child at (oldParent, oldIndex) to (newParent,
// newIndex), reducing to a same-parent reorder when oldParent == newParent.
func (m *Manager) MoveTrack(oldParent Id, oldIndex int, newParent Id, newIndex int) error {
	if oldParent == newParent {
		return m.moveWithinParent(oldParent, oldIndex, newIndex)
	}
	return m.moveBetweenParents(oldParent, oldIndex, newParent, newIndex)
}

func (m *Manager) moveWithinParent(parent Id, oldIndex, newIndex int) error {
	p, err := m.get(parent)
	if err != nil {
		return err
	}
	if oldIndex >= len(p.Links.Children) || newIndex >= len(p.Links.Children) {
		return rdawerr.New(rdawerr.IndexOutOfBounds, "child index out of range")
	}

	child := p.Links.Children[oldIndex]
	children := append(p.Links.Children[:oldIndex], p.Links.Children[oldIndex+1:]...)
	children = append(children, Id{})
	copy(children[newIndex+1:], children[newIndex:])
	children[newIndex] = child
	p.Links.Children = children

	m.notifyChildrenChanged(parent)
	return nil
}

func (m *Manager) moveBetweenParents(oldParent Id, oldIndex int, newParent Id, newIndex int) error {
	op, err := m.get(oldParent)
	if err != nil {
		return err
	}
	if oldIndex >= len(op.Links.Children) {
		return rdawerr.New(rdawerr.IndexOutOfBounds, "child index out of range")
	}
	child := op.Links.Children[oldIndex]

	if child == oldParent || child == newParent {
		return rdawerr.New(rdawerr.RecursiveTrack, "move would create a cycle")
	}

	np, err := m.get(newParent)
	if err != nil {
		return err
	}
	if newIndex > len(np.Links.Children) {
		return rdawerr.New(rdawerr.IndexOutOfBounds, "child index out of range")
	}
	if np.Links.Ancestors.Contains(child.Raw()) {
		return rdawerr.New(rdawerr.RecursiveTrack, "child is already an ancestor of new parent")
	}

	op.Links.Children = append(op.Links.Children[:oldIndex], op.Links.Children[oldIndex+1:]...)

	children := append(np.Links.Children, Id{})
	copy(children[newIndex+1:], children[newIndex:])
	children[newIndex] = child
	np.Links.Children = children

	if !containsId(op.Links.Children, child) {
		m.removeAncestor(child, oldParent)
	}
	m.addAncestor(child, newParent)

	m.notifyChildrenChanged(oldParent)
	m.notifyChildrenChanged(newParent)
	return nil
}

func containsId(ids []Id, target Id) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

// RebuildLinks recomputes DirectAncestors and Ancestors for every track from
// each track's Children list. Used once after bulk-loading a hierarchy
// (e.g. document deserialization, where Children are restored directly
// rather than built up incrementally via InsertChild) so ancestor sets
// don't have to be reconstructed edge-by-edge in arrival order. Unlike
// recomputeAncestors (a single rooted DFS, correct only once the tree below
// root is already consistent), this iterates to a fixed point since
// deserialization order gives no guarantee a track's ancestors were already
// rebuilt before it is visited.
func (m *Manager) RebuildLinks() {
	m.Tracks.Iter(func(_ Id, _ object.Metadata, t *Track) bool {
		t.Links.DirectAncestors = roaring.New()
		t.Links.Ancestors = roaring.New()
		return true
	})

	m.Tracks.Iter(func(id Id, _ object.Metadata, t *Track) bool {
		for _, child := range t.Links.Children {
			if ct, ok := m.Tracks.Get(child); ok {
				ct.Links.DirectAncestors.Add(id.Raw())
			}
		}
		return true
	})

	for changed := true; changed; {
		changed = false
		m.Tracks.Iter(func(_ Id, _ object.Metadata, t *Track) bool {
			ancestors := roaring.New()
			it := t.Links.DirectAncestors.Iterator()
			for it.HasNext() {
				idx := it.Next()
				ancestors.Add(idx)
				if aid, ok := m.Tracks.IdAt(idx); ok {
					if a, ok := m.Tracks.Get(aid); ok {
						ancestors.Or(a.Links.Ancestors)
					}
				}
			}
			if !ancestors.Equals(t.Links.Ancestors) {
				t.Links.Ancestors = ancestors
				changed = true
			}
			return true
		})
	}
}

// Hierarchy is the DFS-ordered snapshot returned by GetHierarchy.
type Hierarchy struct {
	Root     Id
	Ids      []Id
	Parents  []Id // Parents[i] is the parent of Ids[i], or the zero Id for the root
	HasParent []bool
	Levels   []int
}

// GetHierarchy walks the subtree rooted at root in DFS (pre-order)
// matching spec §8 scenario S3's expected traversal.
func (m *Manager) GetHierarchy(root Id) (*Hierarchy, error) {
	if !m.Tracks.Has(root) {
		return nil, rdawerr.New(rdawerr.InvalidId, "track not found")
	}

	h := &Hierarchy{Root: root}

	type frame struct {
		id     Id
		parent Id
		has    bool
		level  int
	}
	stack := []frame{{id: root, level: 0}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		t, ok := m.Tracks.Get(f.id)
		if !ok {
			return nil, rdawerr.New(rdawerr.InvalidId, "track not found")
		}

		h.Ids = append(h.Ids, f.id)
		h.Parents = append(h.Parents, f.parent)
		h.HasParent = append(h.HasParent, f.has)
		h.Levels = append(h.Levels, f.level)

		children := t.Links.Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: children[i], parent: f.id, has: true, level: f.level + 1})
		}
	}

	return h, nil
}
