package document

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"rdawcore/pkg/rdawerr"
)

const schemaVersion = 1

const createSchemaSQL = `
CREATE TABLE metadata (
	data BLOB
);

CREATE TABLE revisions (
	id INTEGER PRIMARY KEY ASC,
	created_at TEXT,
	time_spent INTEGER
);

CREATE TABLE blobs (
	id INTEGER PRIMARY KEY ASC,
	hash BLOB,
	total_len INTEGER,
	compression INTEGER,
	deps BLOB,
	finalized INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE blob_chunks (
	blob_id INTEGER,
	offset INTEGER,
	len INTEGER,
	data BLOB
);

CREATE TABLE objects (
	uuid BLOB PRIMARY KEY,
	blob_hash BLOB
);
`

// database wraps the embedded relational store backing one Document
// (spec §4.C, §6.1). Grounded on rdaw-backend/src/document/database.rs,
// rebuilt on database/sql + modernc.org/sqlite rather than a cgo sqlite
// driver, per the rest of the example pack's pure-Go posture.
type database struct {
	db *sql.DB
}

// RevisionId identifies one row of the revisions table.
type RevisionId int64

// Revision is one append-only history entry.
type Revision struct {
	CreatedAt     time.Time
	TimeSpentSecs uint64
}

func openRaw(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, rdawerr.Wrap(err, rdawerr.Sql, "open database")
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// newDatabase creates a fresh store at path (typically inside a temp
// directory for an unsaved, in-memory-like Document) and writes its
// initial schema/version/metadata.
func newDatabase(path string, metadata Metadata) (*database, error) {
	db, err := openRaw(path)
	if err != nil {
		return nil, err
	}

	d := &database{db: db}
	if err := d.createSchema(); err != nil {
		return nil, err
	}
	if err := d.writeVersion(schemaVersion); err != nil {
		return nil, err
	}
	if err := d.writeMetadata(metadata); err != nil {
		return nil, err
	}

	return d, nil
}

// openDatabase opens an existing store at path and validates its version.
func openDatabase(path string) (*database, Metadata, error) {
	db, err := openRaw(path)
	if err != nil {
		return nil, Metadata{}, err
	}

	d := &database{db: db}

	version, err := d.readVersion()
	if err != nil {
		return nil, Metadata{}, err
	}
	if version != schemaVersion {
		return nil, Metadata{}, rdawerr.Newf(rdawerr.UnknownVersion, "document schema version %d unsupported", version)
	}

	metadata, err := d.readMetadata()
	if err != nil {
		return nil, Metadata{}, err
	}

	return d, metadata, nil
}

func (d *database) createSchema() error {
	if _, err := d.db.Exec(createSchemaSQL); err != nil {
		return rdawerr.Wrap(err, rdawerr.Sql, "create schema")
	}
	return nil
}

func (d *database) readVersion() (int, error) {
	row := d.db.QueryRow("PRAGMA user_version")
	var version int
	if err := row.Scan(&version); err != nil {
		return 0, rdawerr.Wrap(err, rdawerr.Sql, "read user_version")
	}
	return version, nil
}

func (d *database) writeVersion(version int) error {
	if _, err := d.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return rdawerr.Wrap(err, rdawerr.Sql, "write user_version")
	}
	return nil
}

func (d *database) readMetadata() (Metadata, error) {
	row := d.db.QueryRow("SELECT data FROM metadata LIMIT 1")
	var data []byte
	if err := row.Scan(&data); err != nil {
		return Metadata{}, rdawerr.Wrap(err, rdawerr.Sql, "read metadata")
	}
	return decodeMetadata(data)
}

func (d *database) writeMetadata(metadata Metadata) error {
	data := metadata.encode()
	if _, err := d.db.Exec("INSERT INTO metadata (data) VALUES (?)", data); err != nil {
		return rdawerr.Wrap(err, rdawerr.Sql, "write metadata")
	}
	return nil
}

// rewriteMetadata replaces the single metadata row, used by save_copy.
func (d *database) rewriteMetadata(metadata Metadata) error {
	if _, err := d.db.Exec("DELETE FROM metadata"); err != nil {
		return rdawerr.Wrap(err, rdawerr.Sql, "clear metadata")
	}
	return d.writeMetadata(metadata)
}

func (d *database) save(revision Revision) error {
	if err := d.addRevision(revision); err != nil {
		return err
	}
	// database/sql + modernc.org/sqlite has no direct cache_flush
	// equivalent; WAL checkpoint plays the same role of forcing pages to
	// durable storage before considering the save complete.
	if _, err := d.db.Exec("PRAGMA wal_checkpoint(FULL)"); err != nil {
		return rdawerr.Wrap(err, rdawerr.Sql, "checkpoint")
	}
	return nil
}

func (d *database) addRevision(revision Revision) error {
	_, err := d.db.Exec(
		"INSERT INTO revisions (created_at, time_spent) VALUES (?, ?)",
		revision.CreatedAt.UTC().Format(time.RFC3339Nano),
		revision.TimeSpentSecs,
	)
	if err != nil {
		return rdawerr.Wrap(err, rdawerr.Sql, "insert revision")
	}
	return nil
}

func (d *database) revisions() ([]struct {
	Id       RevisionId
	Revision Revision
}, error) {
	rows, err := d.db.Query("SELECT id, created_at, time_spent FROM revisions ORDER BY id ASC")
	if err != nil {
		return nil, rdawerr.Wrap(err, rdawerr.Sql, "query revisions")
	}
	defer rows.Close()

	var out []struct {
		Id       RevisionId
		Revision Revision
	}

	for rows.Next() {
		var id int64
		var createdAt string
		var timeSpent uint64
		if err := rows.Scan(&id, &createdAt, &timeSpent); err != nil {
			return nil, rdawerr.Wrap(err, rdawerr.Sql, "scan revision")
		}

		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, rdawerr.Wrap(err, rdawerr.Deserialization, "invalid revision timestamp")
		}

		out = append(out, struct {
			Id       RevisionId
			Revision Revision
		}{Id: RevisionId(id), Revision: Revision{CreatedAt: t, TimeSpentSecs: timeSpent}})
	}

	return out, rows.Err()
}

func (d *database) close() error {
	return d.db.Close()
}

// saveCopy performs a logical copy of d into a fresh store at path: since
// modernc.org/sqlite has no VACUUM INTO, this replays every row through
// plain INSERT statements on the destination, one statement at a time and
// without a wrapping transaction, rather than a single-statement native copy.
func (d *database) saveCopy(path string, revision Revision, metadata Metadata) (*database, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".rdaw-temp-*")
	if err != nil {
		return nil, rdawerr.Wrap(err, rdawerr.Io, "create temp file")
	}
	tmpPath := tmp.Name()
	tmp.Close()
	os.Remove(tmpPath)

	dst, err := newDatabase(tmpPath, metadata)
	if err != nil {
		return nil, err
	}

	if err := d.copyInto(dst); err != nil {
		dst.close()
		os.Remove(tmpPath)
		return nil, err
	}

	if err := dst.addRevision(revision); err != nil {
		dst.close()
		os.Remove(tmpPath)
		return nil, err
	}

	if err := dst.close(); err != nil {
		return nil, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return nil, rdawerr.Wrap(err, rdawerr.Io, "rename temp file over destination")
	}

	newDB, _, err := openDatabase(path)
	return newDB, err
}

func (d *database) copyInto(dst *database) error {
	revs, err := d.revisions()
	if err != nil {
		return err
	}
	for _, r := range revs {
		if err := dst.addRevision(r.Revision); err != nil {
			return err
		}
	}

	rows, err := d.db.Query("SELECT id, hash, total_len, compression, deps, finalized FROM blobs")
	if err != nil {
		return rdawerr.Wrap(err, rdawerr.Sql, "query blobs")
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var hash, deps []byte
		var totalLen int64
		var compression int
		var finalized int
		if err := rows.Scan(&id, &hash, &totalLen, &compression, &deps, &finalized); err != nil {
			return rdawerr.Wrap(err, rdawerr.Sql, "scan blob")
		}

		if _, err := dst.db.Exec(
			"INSERT INTO blobs (id, hash, total_len, compression, deps, finalized) VALUES (?, ?, ?, ?, ?, ?)",
			id, hash, totalLen, compression, deps, finalized,
		); err != nil {
			return rdawerr.Wrap(err, rdawerr.Sql, "copy blob row")
		}

		chunkRows, err := d.db.Query("SELECT offset, len, data FROM blob_chunks WHERE blob_id = ?", id)
		if err != nil {
			return rdawerr.Wrap(err, rdawerr.Sql, "query blob chunks")
		}
		for chunkRows.Next() {
			var offset, length int64
			var data []byte
			if err := chunkRows.Scan(&offset, &length, &data); err != nil {
				chunkRows.Close()
				return rdawerr.Wrap(err, rdawerr.Sql, "scan blob chunk")
			}
			if _, err := dst.db.Exec(
				"INSERT INTO blob_chunks (blob_id, offset, len, data) VALUES (?, ?, ?, ?)",
				id, offset, length, data,
			); err != nil {
				chunkRows.Close()
				return rdawerr.Wrap(err, rdawerr.Sql, "copy blob chunk")
			}
		}
		chunkRows.Close()
	}

	objRows, err := d.db.Query("SELECT uuid, blob_hash FROM objects")
	if err != nil {
		return rdawerr.Wrap(err, rdawerr.Sql, "query objects")
	}
	defer objRows.Close()
	for objRows.Next() {
		var uuidBytes, hash []byte
		if err := objRows.Scan(&uuidBytes, &hash); err != nil {
			return rdawerr.Wrap(err, rdawerr.Sql, "scan object")
		}
		if _, err := dst.db.Exec("INSERT INTO objects (uuid, blob_hash) VALUES (?, ?)", uuidBytes, hash); err != nil {
			return rdawerr.Wrap(err, rdawerr.Sql, "copy object row")
		}
	}

	return nil
}
