package document

import (
	"encoding/binary"

	"github.com/google/uuid"

	"rdawcore/pkg/rdawerr"
)

const metadataVersionLatest uint32 = 1

// Metadata is the single-row payload every Document carries (spec §6.1):
// its own identity and, once one exists, the UUID of its main Arrangement.
type Metadata struct {
	UUID                uuid.UUID
	MainArrangementUUID *uuid.UUID
}

// encode produces the versioned on-disk form: a 4-byte LE version prefix
// followed by a fixed-layout encoding of the fields. The example pack has
// no Go equivalent of postcard, so this hand-rolled binary layout plays
// the same role: a stable, explicit-version wire format for one small
// fixed-shape struct, which encoding/binary expresses directly without
// pulling in a general-purpose serialization library for a single call
// site.
func (m Metadata) encode() []byte {
	buf := make([]byte, 4+16+1+16)
	binary.LittleEndian.PutUint32(buf[0:4], metadataVersionLatest)
	copy(buf[4:20], m.UUID[:])

	if m.MainArrangementUUID != nil {
		buf[20] = 1
		copy(buf[21:37], m.MainArrangementUUID[:])
	}

	return buf
}

func decodeMetadata(data []byte) (Metadata, error) {
	if len(data) < 4 {
		return Metadata{}, rdawerr.New(rdawerr.Deserialization, "metadata blob too short")
	}

	version := binary.LittleEndian.Uint32(data[0:4])
	if version != metadataVersionLatest {
		return Metadata{}, rdawerr.Newf(rdawerr.UnknownVersion, "unsupported metadata version %d", version)
	}

	body := data[4:]
	if len(body) < 17 {
		return Metadata{}, rdawerr.New(rdawerr.Deserialization, "metadata body truncated")
	}

	var m Metadata
	copy(m.UUID[:], body[0:16])

	if body[16] == 1 {
		if len(body) < 33 {
			return Metadata{}, rdawerr.New(rdawerr.Deserialization, "metadata body truncated")
		}
		var arr uuid.UUID
		copy(arr[:], body[17:33])
		m.MainArrangementUUID = &arr
	}

	return m, nil
}
