package backend

import "rdawcore/pkg/track"

// AppendChild inserts child at the end of parent's children (spec §4.E).
func (b *Backend) AppendChild(parent, child track.Id) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hub.Hierarchy.AppendChild(parent, child)
}

// InsertChild inserts child into parent's children at index, failing
// RecursiveTrack on a self-parent or cycle (spec §8 properties 1-2,
// scenarios S3-S4).
func (b *Backend) InsertChild(parent, child track.Id, index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hub.Hierarchy.InsertChild(parent, child, index)
}

// RemoveChild removes the child at index from parent.
func (b *Backend) RemoveChild(parent track.Id, index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hub.Hierarchy.RemoveChild(parent, index)
}

// MoveTrack relocates a child between (or within) parents.
func (b *Backend) MoveTrack(oldParent track.Id, oldIndex int, newParent track.Id, newIndex int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hub.Hierarchy.MoveTrack(oldParent, oldIndex, newParent, newIndex)
}

// GetTrackHierarchy returns the DFS-ordered subtree rooted at root (spec §8
// scenario S3).
func (b *Backend) GetTrackHierarchy(root track.Id) (*track.Hierarchy, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hub.Hierarchy.GetHierarchy(root)
}
