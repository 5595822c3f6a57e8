package document

import (
	"github.com/klauspost/compress/zstd"

	"rdawcore/pkg/rdawerr"
)

// Compression tags how a blob chunk's bytes are stored on disk (spec §6.1).
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
)

func CompressionFromByte(b byte) (Compression, bool) {
	switch Compression(b) {
	case CompressionNone, CompressionZstd:
		return Compression(b), true
	default:
		return 0, false
	}
}

func (c Compression) Byte() byte { return byte(c) }

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	// Level 0 (SpeedDefault) matches the original's zstd::bulk::compress
	// with a level of 0, which libzstd treats as its default level.
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
}

// Compress returns data encoded under c.
func (c Compression) Compress(data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	default:
		return nil, rdawerr.New(rdawerr.Other, "unknown compression tag")
	}
}

// Decompress inverts Compress. uncompressedLen only sizes the output
// buffer's initial capacity; the decoded length is not checked against it.
func (c Compression) Decompress(uncompressedLen int, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(data, make([]byte, 0, uncompressedLen))
		if err != nil {
			return nil, rdawerr.Wrap(err, rdawerr.Io, "zstd decompress failed")
		}
		return out, nil
	default:
		return nil, rdawerr.New(rdawerr.Other, "unknown compression tag")
	}
}
