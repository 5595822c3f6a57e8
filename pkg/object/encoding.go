package object

import (
	"github.com/google/uuid"

	"rdawcore/pkg/rdawerr"
)

// Dep identifies one object graph dependency by its stable type tag and
// UUID, the unit the serialize/deserialize work stack operates on.
type Dep struct {
	Type ObjectType
	UUID uuid.UUID
}

// Serializer encodes the object identified by uuid to bytes, registering
// any further dependencies it references via ctx.AddDep.
type Serializer func(ctx *SerializeCtx, uuid uuid.UUID) ([]byte, error)

// Deserializer decodes data into the object identified by uuid and wires
// it into storage (typically via Storage[T].FinishInsert), registering
// further dependencies via ctx.AddDep.
type Deserializer func(ctx *DeserializeCtx, uuid uuid.UUID, data []byte) error

// Registry maps each ObjectType to the domain package's (de)serializer,
// built once by the backend at startup so pkg/object never has to import
// concrete domain types (spec §6.2's cross-entity references are UUIDs
// precisely so this dispatch table can stay generic).
type Registry struct {
	Serializers   map[ObjectType]Serializer
	Deserializers map[ObjectType]Deserializer
}

func NewRegistry() *Registry {
	return &Registry{
		Serializers:   make(map[ObjectType]Serializer),
		Deserializers: make(map[ObjectType]Deserializer),
	}
}

// BlobSink is the subset of a Document a SerializeCtx needs to
// park each serialized object's bytes under its own content-addressed
// blob (spec §6.1).
type BlobSink interface {
	WriteObject(objectUUID uuid.UUID, data []byte) error
}

// BlobSource is the read counterpart used during deserialization.
type BlobSource interface {
	ReadObject(objectUUID uuid.UUID) ([]byte, bool, error)
}

// SerializeCtx accumulates pending dependencies during a serialize pass.
type SerializeCtx struct {
	registry *Registry
	sink     BlobSink
	deps     []Dep
	visited  map[uuid.UUID]bool
}

// AddDep registers a dependency to be (re)serialized before the pass
// completes, returning its UUID for convenience when embedding a
// reference in the caller's own encoded form.
func (ctx *SerializeCtx) AddDep(ty ObjectType, id uuid.UUID) uuid.UUID {
	ctx.deps = append(ctx.deps, Dep{Type: ty, UUID: id})
	return id
}

// Serialize walks the object graph reachable from root, depth-first via
// an explicit work stack (not recursion, so a cycle back to an
// already-queued object is just a duplicate stack entry rather than
// unbounded recursion), serializing each object exactly once into sink.
// Grounded on object/encoding.rs's SerializationContext::serialize_loop.
func Serialize(registry *Registry, sink BlobSink, root Dep) error {
	ctx := &SerializeCtx{registry: registry, sink: sink, visited: make(map[uuid.UUID]bool)}
	ctx.deps = append(ctx.deps, root)

	for len(ctx.deps) > 0 {
		d := ctx.deps[len(ctx.deps)-1]
		ctx.deps = ctx.deps[:len(ctx.deps)-1]

		if ctx.visited[d.UUID] {
			continue
		}
		ctx.visited[d.UUID] = true

		fn, ok := registry.Serializers[d.Type]
		if !ok {
			return rdawerr.Newf(rdawerr.NotSupported, "no serializer registered for %s", d.Type)
		}

		data, err := fn(ctx, d.UUID)
		if err != nil {
			return rdawerr.Wrap(err, rdawerr.Serialization, "serializing "+d.Type.String())
		}

		if err := sink.WriteObject(d.UUID, data); err != nil {
			return err
		}
	}

	return nil
}

// DeserializeCtx accumulates pending dependencies during a deserialize
// pass and exposes the source to pull each one's encoded bytes from.
type DeserializeCtx struct {
	registry *Registry
	source   BlobSource
	deps     []Dep
	visited  map[uuid.UUID]bool
}

// AddDep registers a dependency to be resolved before the pass completes.
// Because the referenced object may not exist as a concrete Go value yet
// (it may itself reference the caller, breaking the cycle the same way
// Storage.PrepareInsert does), callers typically call this before they
// have anything but the UUID in hand.
func (ctx *DeserializeCtx) AddDep(ty ObjectType, id uuid.UUID) {
	ctx.deps = append(ctx.deps, Dep{Type: ty, UUID: id})
}

// Deserialize walks the dependency graph reachable from root, decoding
// every object exactly once via the registered Deserializer, which is
// expected to use two-phase insert (PrepareInsert before recursing into
// its own fields, FinishInsert once they're decoded) to break cycles.
// Grounded on object/encoding.rs's DeserializationContext::deserialize_loop.
func Deserialize(registry *Registry, source BlobSource, root Dep) error {
	ctx := &DeserializeCtx{registry: registry, source: source, visited: make(map[uuid.UUID]bool)}
	ctx.deps = append(ctx.deps, root)

	for len(ctx.deps) > 0 {
		d := ctx.deps[len(ctx.deps)-1]
		ctx.deps = ctx.deps[:len(ctx.deps)-1]

		if ctx.visited[d.UUID] {
			continue
		}
		ctx.visited[d.UUID] = true

		fn, ok := registry.Deserializers[d.Type]
		if !ok {
			return rdawerr.Newf(rdawerr.NotSupported, "no deserializer registered for %s", d.Type)
		}

		data, found, err := source.ReadObject(d.UUID)
		if err != nil {
			return err
		}
		if !found {
			return rdawerr.Newf(rdawerr.InvalidUuid, "object %s doesn't exist in the document", d.UUID)
		}

		if err := fn(ctx, d.UUID, data); err != nil {
			return rdawerr.Wrap(err, rdawerr.Deserialization, "deserializing "+d.Type.String())
		}
	}

	return nil
}
