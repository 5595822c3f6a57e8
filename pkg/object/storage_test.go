package object

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type thing struct{ name string }

func TestStorageInsertGet(t *testing.T) {
	s := NewStorage[thing]()

	id := s.Insert(Metadata{UUID: uuid.New()}, thing{name: "a"})
	obj, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, "a", obj.name)
}

func TestStorageTwoPhaseInsertBreaksCycle(t *testing.T) {
	s := NewStorage[thing]()

	id := s.PrepareInsert(Metadata{UUID: uuid.New()})
	assert.False(t, s.Has(id))
	assert.True(t, s.ContainsId(id))

	s.FinishInsert(id, thing{name: "b"})
	obj, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, "b", obj.name)
}

func TestStorageRemoveInvalidatesStaleId(t *testing.T) {
	s := NewStorage[thing]()

	id := s.Insert(Metadata{UUID: uuid.New()}, thing{name: "a"})
	require.True(t, s.Remove(id))

	_, ok := s.Get(id)
	assert.False(t, ok)

	reused := s.Insert(Metadata{UUID: uuid.New()}, thing{name: "c"})
	assert.Equal(t, id.index, reused.index)
	assert.NotEqual(t, id.gen, reused.gen)

	_, staleOk := s.Get(id)
	assert.False(t, staleOk, "a handle from before removal must not resolve to the reused slot")
}

func TestStorageIterSkipsUnfinished(t *testing.T) {
	s := NewStorage[thing]()
	s.PrepareInsert(Metadata{UUID: uuid.New()})
	s.Insert(Metadata{UUID: uuid.New()}, thing{name: "done"})

	count := 0
	s.Iter(func(id Id[thing], md Metadata, obj *thing) bool {
		count++
		return true
	})
	assert.Equal(t, 1, count)
}

func TestSerializeDeserializeRoundTripsThroughRegistryAndMemorySink(t *testing.T) {
	registry := NewRegistry()
	sink := newMemSink()

	leafUUID := uuid.New()
	rootUUID := uuid.New()

	registry.Serializers[ObjectTrack] = func(ctx *SerializeCtx, id uuid.UUID) ([]byte, error) {
		if id == rootUUID {
			ctx.AddDep(ObjectTrack, leafUUID)
			return []byte("root->" + leafUUID.String()), nil
		}
		return []byte("leaf"), nil
	}

	err := Serialize(registry, sink, Dep{Type: ObjectTrack, UUID: rootUUID})
	require.NoError(t, err)
	assert.Len(t, sink.data, 2)
	assert.Equal(t, []byte("leaf"), sink.data[leafUUID])

	var decodedLeaf, decodedRoot bool
	registry.Deserializers[ObjectTrack] = func(ctx *DeserializeCtx, id uuid.UUID, data []byte) error {
		if id == rootUUID {
			decodedRoot = true
			ctx.AddDep(ObjectTrack, leafUUID)
		} else {
			decodedLeaf = true
		}
		return nil
	}

	require.NoError(t, Deserialize(registry, sink, Dep{Type: ObjectTrack, UUID: rootUUID}))
	assert.True(t, decodedRoot)
	assert.True(t, decodedLeaf)
}

type memSink struct{ data map[uuid.UUID][]byte }

func newMemSink() *memSink { return &memSink{data: make(map[uuid.UUID][]byte)} }

func (m *memSink) WriteObject(id uuid.UUID, data []byte) error {
	m.data[id] = data
	return nil
}

func (m *memSink) ReadObject(id uuid.UUID) ([]byte, bool, error) {
	d, ok := m.data[id]
	return d, ok, nil
}
