package document

import (
	"database/sql"

	"lukechampine.com/blake3"

	"rdawcore/pkg/rdawerr"
)

const chunkSize = 8192

// BlobId identifies one row of the blobs table.
type BlobId int64

// BlobWriter streams bytes into a new blob, chunking at chunkSize
// boundaries and hashing the uncompressed stream with BLAKE3 as it goes
// (spec §4.C). Grounded on rdaw-backend/src/document/blob.rs.
type BlobWriter struct {
	db          *database
	id          BlobId
	hasher      *blake3.Hasher
	compression Compression
	offset      int64
	buffer      []byte
	saved       bool
}

func newBlobWriter(db *database, compression Compression) (*BlobWriter, error) {
	res, err := db.db.Exec(
		"INSERT INTO blobs (hash, total_len, compression, deps, finalized) VALUES (NULL, 0, ?, NULL, 0)",
		compression.Byte(),
	)
	if err != nil {
		return nil, rdawerr.Wrap(err, rdawerr.Sql, "insert pending blob row")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, rdawerr.Wrap(err, rdawerr.Sql, "read pending blob id")
	}

	return &BlobWriter{
		db:          db,
		id:          BlobId(id),
		hasher:      blake3.New(32, nil),
		compression: compression,
		buffer:      make([]byte, 0, chunkSize),
	}, nil
}

// Write appends buf to the blob stream.
func (w *BlobWriter) Write(buf []byte) (int, error) {
	w.hasher.Write(buf)
	w.buffer = append(w.buffer, buf...)

	if err := w.flushChunks(false); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (w *BlobWriter) flushChunks(flushAll bool) error {
	for len(w.buffer) > 0 && (len(w.buffer) >= chunkSize || flushAll) {
		n := chunkSize
		if n > len(w.buffer) {
			n = len(w.buffer)
		}

		compressed, err := w.compression.Compress(w.buffer[:n])
		if err != nil {
			return rdawerr.Wrap(err, rdawerr.Io, "compress blob chunk")
		}

		if _, err := w.db.db.Exec(
			"INSERT INTO blob_chunks (blob_id, offset, len, data) VALUES (?, ?, ?, ?)",
			w.id, w.offset, n, compressed,
		); err != nil {
			return rdawerr.Wrap(err, rdawerr.Sql, "insert blob chunk")
		}

		w.buffer = w.buffer[n:]
		w.offset += int64(n)
	}
	return nil
}

// Save flushes any remaining buffered bytes, finalizes the hash, and
// promotes the blob row to finalized, recording deps.
func (w *BlobWriter) Save(deps [][32]byte) ([32]byte, error) {
	var hash [32]byte
	sum := w.hasher.Sum(nil)
	copy(hash[:], sum)

	if err := w.flushChunks(true); err != nil {
		return hash, err
	}

	depsBlob := encodeHashList(deps)

	if _, err := w.db.db.Exec(
		"UPDATE blobs SET hash = ?, total_len = ?, deps = ?, finalized = 1 WHERE id = ?",
		hash[:], w.offset, depsBlob, w.id,
	); err != nil {
		return hash, rdawerr.Wrap(err, rdawerr.Sql, "finalize blob")
	}

	w.saved = true
	return hash, nil
}

// Discard removes the unsaved blob's rows, mirroring the original's
// drop-without-save cleanup (best-effort, not automatic in Go — callers
// must call this explicitly on an error path since Go has no Drop).
func (w *BlobWriter) Discard() error {
	if w.saved {
		return nil
	}
	if _, err := w.db.db.Exec("DELETE FROM blob_chunks WHERE blob_id = ?", w.id); err != nil {
		return rdawerr.Wrap(err, rdawerr.Sql, "discard blob chunks")
	}
	if _, err := w.db.db.Exec("DELETE FROM blobs WHERE id = ?", w.id); err != nil {
		return rdawerr.Wrap(err, rdawerr.Sql, "discard blob row")
	}
	return nil
}

func encodeHashList(hashes [][32]byte) []byte {
	out := make([]byte, 0, len(hashes)*32)
	for _, h := range hashes {
		out = append(out, h[:]...)
	}
	return out
}

func decodeHashList(data []byte) [][32]byte {
	n := len(data) / 32
	out := make([][32]byte, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], data[i*32:(i+1)*32])
	}
	return out
}

// blobInfo is the finalized row for one blob.
type blobInfo struct {
	Hash        [32]byte
	TotalLen    uint64
	Compression Compression
	Deps        [][32]byte
}

func (d *database) blobByHash(hash [32]byte) (BlobId, blobInfo, bool, error) {
	row := d.db.QueryRow(
		"SELECT id, total_len, compression, deps FROM blobs WHERE hash = ? AND finalized = 1",
		hash[:],
	)

	var id int64
	var totalLen int64
	var compression int
	var deps []byte
	err := row.Scan(&id, &totalLen, &compression, &deps)
	if err == sql.ErrNoRows {
		return 0, blobInfo{}, false, nil
	}
	if err != nil {
		return 0, blobInfo{}, false, rdawerr.Wrap(err, rdawerr.Sql, "lookup blob by hash")
	}

	c, ok := CompressionFromByte(byte(compression))
	if !ok {
		return 0, blobInfo{}, false, rdawerr.New(rdawerr.Deserialization, "unknown compression tag in blob row")
	}

	return BlobId(id), blobInfo{Hash: hash, TotalLen: uint64(totalLen), Compression: c, Deps: decodeHashList(deps)}, true, nil
}

// BlobReader streams a finalized blob back out, decompressing chunks on
// demand and buffering partial reads across Read calls.
type BlobReader struct {
	db     *database
	id     BlobId
	info   blobInfo
	offset uint64
	buffer []byte
}

func newBlobReader(db *database, id BlobId, info blobInfo) *BlobReader {
	return &BlobReader{db: db, id: id, info: info, buffer: make([]byte, 0, chunkSize)}
}

func (r *BlobReader) Read(buf []byte) (int, error) {
	n := len(buf)
	if n > len(r.buffer) {
		n = len(r.buffer)
	}
	copy(buf[:n], r.buffer[:n])
	r.buffer = r.buffer[n:]

	remaining := buf[n:]
	if len(remaining) == 0 || r.offset >= r.info.TotalLen {
		return n, nil
	}

	row := r.db.db.QueryRow(
		"SELECT offset, len, data FROM blob_chunks WHERE blob_id = ? AND offset = ?",
		r.id, r.offset,
	)
	var offset, length int64
	var data []byte
	if err := row.Scan(&offset, &length, &data); err != nil {
		if err == sql.ErrNoRows {
			return n, nil
		}
		return n, rdawerr.Wrap(err, rdawerr.Sql, "read blob chunk")
	}

	decoded, err := r.info.Compression.Decompress(int(length), data)
	if err != nil {
		return n, rdawerr.Wrap(err, rdawerr.Io, "decompress blob chunk")
	}

	r.buffer = append(r.buffer, decoded...)
	r.offset += uint64(length)

	extra := len(remaining)
	if extra > len(r.buffer) {
		extra = len(r.buffer)
	}
	copy(remaining[:extra], r.buffer[:extra])
	r.buffer = r.buffer[extra:]

	return n + extra, nil
}
