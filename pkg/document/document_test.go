package document

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentHasFreshUUIDAndNoMainArrangement(t *testing.T) {
	doc, err := New()
	require.NoError(t, err)
	defer doc.Close()

	assert.NotEqual(t, uuid.Nil, doc.UUID())
	assert.Nil(t, doc.Metadata().MainArrangementUUID)
}

func TestSaveAppendsRevision(t *testing.T) {
	doc, err := New()
	require.NoError(t, err)
	defer doc.Close()

	require.NoError(t, doc.Save(NewRevision(5*time.Second)))

	revs, err := doc.Revisions()
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, uint64(5), revs[0].Revision.TimeSpentSecs)
}

func TestBlobWriterRoundTripsThroughReader(t *testing.T) {
	doc, err := New()
	require.NoError(t, err)
	defer doc.Close()

	w, err := doc.CreateBlob(CompressionZstd)
	require.NoError(t, err)

	payload := make([]byte, chunkSize*2+13)
	for i := range payload {
		payload[i] = byte(i)
	}
	_, err = w.Write(payload)
	require.NoError(t, err)

	hash, err := w.Save(nil)
	require.NoError(t, err)

	reader, ok, err := doc.OpenBlobByHash(hash)
	require.NoError(t, err)
	require.True(t, ok)

	out := make([]byte, len(payload))
	total := 0
	for total < len(out) {
		n, err := reader.Read(out[total:])
		require.NoError(t, err)
		if n == 0 {
			break
		}
		total += n
	}
	assert.Equal(t, payload, out[:total])
}

func TestWriteObjectReadObjectRoundTrip(t *testing.T) {
	doc, err := New()
	require.NoError(t, err)
	defer doc.Close()

	id := uuid.New()
	require.NoError(t, doc.WriteObject(id, []byte("hello object graph")))

	data, ok, err := doc.ReadObject(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello object graph", string(data))

	_, ok, err = doc.ReadObject(uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveCopyProducesIndependentDocument(t *testing.T) {
	doc, err := New()
	require.NoError(t, err)
	defer doc.Close()

	require.NoError(t, doc.Save(NewRevision(time.Second)))

	dest := filepath.Join(t.TempDir(), "copy.rdaw")
	copyDoc, err := doc.SaveCopy(dest, NewRevision(2*time.Second))
	require.NoError(t, err)
	defer copyDoc.Close()

	assert.Equal(t, doc.UUID(), copyDoc.UUID())
	assert.Equal(t, dest, copyDoc.Path())

	revs, err := copyDoc.Revisions()
	require.NoError(t, err)
	assert.Len(t, revs, 2)
}

func TestDiffMetadataMentionsChangedArrangement(t *testing.T) {
	id := uuid.New()
	a := Metadata{UUID: id}
	arrangement := uuid.New()
	b := Metadata{UUID: id, MainArrangementUUID: &arrangement}

	diff := DiffMetadata(a, b)
	assert.Contains(t, diff, arrangement.String())
}
