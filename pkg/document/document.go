// Package document implements the engine's persisted document file (spec
// §4.C, §6.1): an embedded relational store (metadata/revisions/blobs/
// blob_chunks/objects tables) plus a chunked, content-addressed,
// BLAKE3-hashed, optionally Zstd-compressed blob engine, all behind a
// versioned binary encoding. Grounded on
// rdaw-backend/src/document/{mod,database,blob,metadata,compression}.rs,
// rebuilt on database/sql + modernc.org/sqlite (pure Go, no cgo sqlite
// driver needed) plus klauspost/compress/zstd and lukechampine.com/blake3
// from the broader example pack.
package document

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"rdawcore/pkg/object"
	"rdawcore/pkg/rdawerr"
	"rdawcore/pkg/slug"
)

// Document is one open document file (or an as-yet-unsaved in-memory one).
type Document struct {
	metadata Metadata
	db       *database
	path     string // empty when unsaved
}

// New creates a fresh, unsaved document backed by a temp file.
func New() (*Document, error) {
	metadata := Metadata{UUID: uuid.New()}

	tmp, err := os.CreateTemp("", ".rdaw-unsaved-*")
	if err != nil {
		return nil, rdawerr.Wrap(err, rdawerr.Io, "create temp file")
	}
	tmpPath := tmp.Name()
	tmp.Close()
	os.Remove(tmpPath)

	db, err := newDatabase(tmpPath, metadata)
	if err != nil {
		return nil, err
	}

	return &Document{metadata: metadata, db: db}, nil
}

// Open loads an existing document file.
func Open(path string) (*Document, error) {
	db, metadata, err := openDatabase(path)
	if err != nil {
		return nil, err
	}
	return &Document{metadata: metadata, db: db, path: path}, nil
}

func (d *Document) UUID() uuid.UUID { return d.metadata.UUID }

// Path returns the document's backing file path, or "" if unsaved.
func (d *Document) Path() string { return d.path }

func (d *Document) Metadata() Metadata { return d.metadata }

func (d *Document) SetMainArrangement(id uuid.UUID) error {
	d.metadata.MainArrangementUUID = &id
	return d.db.rewriteMetadata(d.metadata)
}

// Save appends a revision and flushes the store.
func (d *Document) Save(revision Revision) error {
	return d.db.save(revision)
}

// SaveCopy performs a server-side logical copy of the document into path
// and returns the freshly-opened copy (spec §4.C).
func (d *Document) SaveCopy(path string, revision Revision) (*Document, error) {
	db, err := d.db.saveCopy(path, revision, d.metadata)
	if err != nil {
		return nil, err
	}
	return &Document{metadata: d.metadata, db: db, path: path}, nil
}

// Revisions returns the append-only revision history in order.
func (d *Document) Revisions() ([]struct {
	Id       RevisionId
	Revision Revision
}, error) {
	return d.db.revisions()
}

// Close releases the underlying store handle.
func (d *Document) Close() error {
	return d.db.close()
}

// CreateBlob opens a writer for a new content-addressed blob.
func (d *Document) CreateBlob(compression Compression) (*BlobWriter, error) {
	return newBlobWriter(d.db, compression)
}

// OpenBlobByHash opens a reader for a previously-saved blob.
func (d *Document) OpenBlobByHash(hash [32]byte) (*BlobReader, bool, error) {
	id, info, ok, err := d.db.blobByHash(hash)
	if err != nil || !ok {
		return nil, ok, err
	}
	return newBlobReader(d.db, id, info), true, nil
}

// WriteObject implements object.BlobSink: it stores data as a new
// uncompressed blob and records uuid → blob_hash in the objects table,
// per spec §4.D's serialization traversal.
func (d *Document) WriteObject(id uuid.UUID, data []byte) error {
	w, err := d.CreateBlob(CompressionNone)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Discard()
		return err
	}
	hash, err := w.Save(nil)
	if err != nil {
		w.Discard()
		return err
	}

	if _, err := d.db.db.Exec(
		"INSERT OR REPLACE INTO objects (uuid, blob_hash) VALUES (?, ?)",
		id[:], hash[:],
	); err != nil {
		return rdawerr.Wrap(err, rdawerr.Sql, "record object blob mapping")
	}
	return nil
}

// ReadObject implements object.BlobSource: looks up uuid's blob hash and
// reads the full decoded payload back out.
func (d *Document) ReadObject(id uuid.UUID) ([]byte, bool, error) {
	row := d.db.db.QueryRow("SELECT blob_hash FROM objects WHERE uuid = ?", id[:])
	var hashBytes []byte
	if err := row.Scan(&hashBytes); err != nil {
		return nil, false, nil
	}

	var hash [32]byte
	copy(hash[:], hashBytes)

	reader, ok, err := d.OpenBlobByHash(hash)
	if err != nil || !ok {
		return nil, false, err
	}

	buf := make([]byte, reader.info.TotalLen)
	total := 0
	for total < len(buf) {
		n, err := reader.Read(buf[total:])
		if n == 0 {
			break
		}
		total += n
		if err != nil {
			return nil, false, err
		}
	}

	return buf[:total], true, nil
}

var _ object.BlobSink = (*Document)(nil)
var _ object.BlobSource = (*Document)(nil)

// DefaultPath returns the conventional file path for a document named
// name inside dir, using pkg/slug to keep it filesystem-safe.
func DefaultPath(dir, name string) string {
	return filepath.Join(dir, slug.Generate(name)+".rdaw")
}

// NewRevision stamps a Revision with the current time; split out so
// callers that need a deterministic CreatedAt in tests can build one
// directly instead.
func NewRevision(timeSpent time.Duration) Revision {
	return Revision{CreatedAt: time.Now().UTC(), TimeSpentSecs: uint64(timeSpent.Seconds())}
}
