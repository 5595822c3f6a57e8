package backend

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"rdawcore/pkg/document"
	"rdawcore/pkg/object"
	"rdawcore/pkg/rdawerr"
	"rdawcore/pkg/slug"
	"rdawcore/pkg/tempo"
)

// AssetId, AudioSourceId and AudioItemId identify their respective entities
// in the hub (spec §3.2).
type AssetId = object.Id[Asset]
type AudioSourceId = object.Id[AudioSource]
type AudioItemId = object.Id[AudioItem]

// Asset is either an external file (tracked by path, for which
// pkg/assethistory can additionally surface a git commit history) or an
// embedded blob living inside the document itself.
type Asset struct {
	External bool
	Path     string // set when External
	Hash     [32]byte
	Size     uint64
}

// AudioSource is one imported audio file's sampling metadata plus the blob
// holding its decoded samples.
type AudioSource struct {
	BlobHash   [32]byte
	Channels   int
	SampleRate uint32
	Format     string
	Duration   tempo.RealTime
}

// AudioItem is a TrackItem's inner payload: a reference to the
// AudioSource it plays (spec §3.2).
type AudioItem struct {
	Source AudioSourceId
}

// CreateExternalAsset records an asset backed by a file on disk, identified
// by its content hash and size (spec §3.2 "create_external_asset").
func (b *Backend) CreateExternalAsset(path string, hash [32]byte, size uint64) AssetId {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hub.Assets.Insert(object.Metadata{UUID: uuid.New()}, Asset{External: true, Path: path, Hash: hash, Size: size})
}

// CreateEmbeddedAsset writes data into the document as a new blob and
// records an embedded asset pointing at it (spec §3.2
// "create_embedded_asset").
func (b *Backend) CreateEmbeddedAsset(data []byte) (AssetId, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, err := b.doc.CreateBlob(document.CompressionZstd)
	if err != nil {
		return AssetId{}, err
	}
	if _, err := w.Write(data); err != nil {
		w.Discard()
		return AssetId{}, err
	}
	hash, err := w.Save(nil)
	if err != nil {
		w.Discard()
		return AssetId{}, err
	}

	id := b.hub.Assets.Insert(object.Metadata{UUID: uuid.New()}, Asset{Hash: hash, Size: uint64(len(data))})
	return id, nil
}

// ImportAudioSource registers an AudioSource over an already-created asset's
// blob, recording the sampling metadata needed to place it on a timeline.
func (b *Backend) ImportAudioSource(assetID AssetId, channels int, sampleRate uint32, format string, duration tempo.RealTime) (AudioSourceId, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	asset, err := b.hub.Assets.GetOrErr(assetID)
	if err != nil {
		return AudioSourceId{}, err
	}

	id := b.hub.AudioSources.Insert(object.Metadata{UUID: uuid.New()}, AudioSource{
		BlobHash:   asset.Hash,
		Channels:   channels,
		SampleRate: sampleRate,
		Format:     format,
		Duration:   duration,
	})
	return id, nil
}

// CreateAudioItem creates an AudioItem referencing source, the Inner value
// a TrackItem places on a track's timeline.
func (b *Backend) CreateAudioItem(source AudioSourceId) (AudioItemId, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.hub.AudioSources.Has(source) {
		return AudioItemId{}, rdawerr.New(rdawerr.InvalidId, "audio source not found")
	}
	return b.hub.AudioItems.Insert(object.Metadata{UUID: uuid.New()}, AudioItem{Source: source}), nil
}

// ExportEmbeddedAsset writes an embedded asset's blob back out to a real
// file under dir, deriving a filesystem-safe name from suggestedName
// (e.g. an arrangement or track name) via pkg/slug, and returns the path
// written. Fails with InvalidType if id names an external asset, since
// those already live at their own Path.
func (b *Backend) ExportEmbeddedAsset(id AssetId, suggestedName, dir string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	asset, err := b.hub.Assets.GetOrErr(id)
	if err != nil {
		return "", err
	}
	if asset.External {
		return "", rdawerr.New(rdawerr.InvalidType, "asset is external, already a file on disk")
	}

	reader, found, err := b.doc.OpenBlobByHash(asset.Hash)
	if err != nil {
		return "", err
	}
	if !found {
		return "", rdawerr.New(rdawerr.NotFound, "blob not found for asset")
	}

	name := slug.Generate(suggestedName)
	path := filepath.Join(dir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", rdawerr.Wrap(err, rdawerr.Io, "create export file")
	}
	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		return "", rdawerr.Wrap(err, rdawerr.Io, "write export file")
	}
	if err := out.Close(); err != nil {
		return "", rdawerr.Wrap(err, rdawerr.Io, "close export file")
	}

	return path, nil
}
