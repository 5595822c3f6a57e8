package object

import "rdawcore/pkg/rdawerr"

type slot[T any] struct {
	gen      uint32
	occupied bool
	metadata Metadata
	object   *T // nil between PrepareInsert and FinishInsert
}

// Storage is a generational slot-map from Id[T] to (Metadata, *T),
// supporting the two-phase insert original objects need while
// deserializing a cyclic graph: PrepareInsert reserves an id and records
// its UUID before the object's own fields (which may reference that same
// id back) are known, and FinishInsert fills the object in once decoded.
type Storage[T any] struct {
	slots []slot[T]
	free  []uint32
}

// NewStorage creates an empty Storage.
func NewStorage[T any]() *Storage[T] {
	return &Storage[T]{}
}

func (s *Storage[T]) alloc(metadata Metadata) Id[T] {
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		sl := &s.slots[idx]
		sl.occupied = true
		sl.metadata = metadata
		sl.object = nil
		return Id[T]{index: idx, gen: sl.gen}
	}

	idx := uint32(len(s.slots))
	s.slots = append(s.slots, slot[T]{gen: 1, occupied: true, metadata: metadata})
	return Id[T]{index: idx, gen: 1}
}

// PrepareInsert reserves a slot for an object whose fields aren't known
// yet (e.g. because it cyclically references itself), recording only its
// Metadata up front.
func (s *Storage[T]) PrepareInsert(metadata Metadata) Id[T] {
	return s.alloc(metadata)
}

// FinishInsert fills in the object for a previously reserved id.
func (s *Storage[T]) FinishInsert(id Id[T], obj T) {
	sl := s.lookup(id)
	if sl == nil {
		return
	}
	sl.object = &obj
}

// Insert adds a fully-formed object in one step.
func (s *Storage[T]) Insert(metadata Metadata, obj T) Id[T] {
	id := s.alloc(metadata)
	s.FinishInsert(id, obj)
	return id
}

// Remove deletes id's slot, returning whether it was present, and makes
// its index eligible for reuse under a bumped generation.
func (s *Storage[T]) Remove(id Id[T]) bool {
	sl := s.lookup(id)
	if sl == nil {
		return false
	}
	sl.occupied = false
	sl.object = nil
	sl.gen++
	s.free = append(s.free, id.index)
	return true
}

func (s *Storage[T]) lookup(id Id[T]) *slot[T] {
	if int(id.index) >= len(s.slots) {
		return nil
	}
	sl := &s.slots[id.index]
	if !sl.occupied || sl.gen != id.gen {
		return nil
	}
	return sl
}

// Has reports whether id refers to a fully-inserted (not merely prepared) object.
func (s *Storage[T]) Has(id Id[T]) bool {
	sl := s.lookup(id)
	return sl != nil && sl.object != nil
}

// ContainsId reports whether id refers to any live slot, finished or not.
func (s *Storage[T]) ContainsId(id Id[T]) bool {
	return s.lookup(id) != nil
}

// Get returns the object for id.
func (s *Storage[T]) Get(id Id[T]) (*T, bool) {
	sl := s.lookup(id)
	if sl == nil || sl.object == nil {
		return nil, false
	}
	return sl.object, true
}

// GetOrErr is Get translated into the engine's error taxonomy (NotFound).
func (s *Storage[T]) GetOrErr(id Id[T]) (*T, error) {
	obj, ok := s.Get(id)
	if !ok {
		return nil, rdawerr.New(rdawerr.NotFound, "object not found")
	}
	return obj, nil
}

// Metadata returns the Metadata recorded for id, even if the object
// itself hasn't been FinishInsert-ed yet.
func (s *Storage[T]) Metadata(id Id[T]) (Metadata, bool) {
	sl := s.lookup(id)
	if sl == nil {
		return Metadata{}, false
	}
	return sl.metadata, true
}

// Iter calls fn for every fully-inserted object, in slot order.
func (s *Storage[T]) Iter(fn func(id Id[T], metadata Metadata, obj *T) bool) {
	for i := range s.slots {
		sl := &s.slots[i]
		if !sl.occupied || sl.object == nil {
			continue
		}
		id := Id[T]{index: uint32(i), gen: sl.gen}
		if !fn(id, sl.metadata, sl.object) {
			return
		}
	}
}

// IdAt reconstructs the live Id at a raw slot index (see Id.Raw), failing
// if that slot is currently unoccupied.
func (s *Storage[T]) IdAt(index uint32) (Id[T], bool) {
	if int(index) >= len(s.slots) {
		return Id[T]{}, false
	}
	sl := &s.slots[index]
	if !sl.occupied {
		return Id[T]{}, false
	}
	return Id[T]{index: index, gen: sl.gen}, true
}

// Len returns the number of fully-inserted objects.
func (s *Storage[T]) Len() int {
	n := 0
	s.Iter(func(Id[T], Metadata, *T) bool { n++; return true })
	return n
}
