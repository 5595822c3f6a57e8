package object

import "github.com/google/uuid"

// ObjectType tags which domain type an object graph dependency refers to,
// so the work-stack traversal in SerializeCtx/DeserializeCtx
// can dispatch without importing every domain package (that dispatch lives
// in the Registry the backend builds at startup).
type ObjectType int

const (
	ObjectArrangement ObjectType = iota
	ObjectAsset
	ObjectAudioItem
	ObjectAudioSource
	ObjectTrack
	ObjectTempoMap
	ObjectBlob
)

func (t ObjectType) String() string {
	switch t {
	case ObjectArrangement:
		return "Arrangement"
	case ObjectAsset:
		return "Asset"
	case ObjectAudioItem:
		return "AudioItem"
	case ObjectAudioSource:
		return "AudioSource"
	case ObjectTrack:
		return "Track"
	case ObjectTempoMap:
		return "TempoMap"
	case ObjectBlob:
		return "Blob"
	default:
		return "Unknown"
	}
}

// DocumentId identifies the document an object's persisted form lives in.
type DocumentId uint64

// Metadata is recorded for every object the moment it is reserved in a
// Storage, independent of whether its fields have been decoded yet.
type Metadata struct {
	UUID       uuid.UUID
	DocumentID DocumentId
}
