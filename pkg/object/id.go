// Package object implements the engine's per-process object graph (spec
// §3.1, §6.2): a generational slot-map `Storage[T]` keyed by a small
// reusable `Id[T]`, plus the two-phase insert and work-stack
// serialization/deserialization machinery documents use to persist a
// cyclic object graph keyed by stable UUIDs. Grounded on
// rdaw-backend/src/storage.rs and object/storage.rs (slotmap-backed
// Storage) and object/encoding.rs (SerializationContext/
// DeserializationContext), with the `slotmap` crate's generation-checked
// reuse reimplemented directly since Go has no equivalent crate in the
// example pack.
package object

// Id is a generational handle into a Storage[T]: index selects a slot,
// generation rejects a reused, stale handle the way rdaw-backend's
// slotmap::SlotMap::Key does (grounded also on the generation-parity
// check in the example pack's slotcache/cache.go).
type Id[T any] struct {
	index uint32
	gen   uint32
}

// Null is the zero Id, never returned by Storage.Insert/PrepareInsert.
func (id Id[T]) Null() bool { return id.gen == 0 }

// Raw returns the slot index backing this id, suitable as a dense key for
// a RoaringBitmap-based set (see pkg/track's ancestor sets). It
// deliberately drops the generation: within one hierarchy-mutation
// session a freed slot is vanishingly unlikely to be reused and compared
// against a stale ancestor-set entry in the same breath, and the
// consequence of a false positive here is at worst a redundant DFS
// revisit, never a correctness violation (Storage.Get still rejects the
// stale full Id).
func (id Id[T]) Raw() uint32 { return id.index }

// FromRaw reconstructs an Id from a raw index and the current generation
// of that slot, as tracked by a Storage[T]. Used by ancestor-set
// iteration to turn bitmap entries back into Ids.
func FromRaw[T any](index uint32, gen uint32) Id[T] {
	return Id[T]{index: index, gen: gen}
}
