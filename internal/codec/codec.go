// Package codec implements the posting-list compression schemes an index
// can declare in its header. Every scheme turns a sequence of delta-encoded
// document ids into an opaque byte payload and back; the searcher only ever
// sees the decoded deltas.
package codec

import (
	"fmt"
	"strings"
)

// Compression identifies a posting-list encoding. The numeric value is what
// the index header stores.
type Compression uint32

const (
	// CompressionVarint stores each delta as an unsigned LEB128 varint.
	CompressionVarint Compression = 0
	// CompressionLZ4 stores an LZ4 block of the varint stream (fast, hot data).
	CompressionLZ4 Compression = 1
	// CompressionZSTD stores a zstd frame of the varint stream (better ratio).
	CompressionZSTD Compression = 2
	// CompressionRoaring stores the running sums as a roaring bitmap.
	CompressionRoaring Compression = 3
)

var compressionNames = map[Compression]string{
	CompressionVarint:  "varint",
	CompressionLZ4:     "lz4",
	CompressionZSTD:    "zstd",
	CompressionRoaring: "roaring",
}

// String returns the config-file name of the scheme.
func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("compression(%d)", uint32(c))
}

// ParseCompression maps a config-file name to a Compression.
func ParseCompression(name string) (Compression, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range compressionNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown compression %q (want varint, lz4, zstd or roaring)", name)
}

// Codec encodes and decodes one posting-list payload.
//
// Encode receives deltas exactly as they must come back out of Decode.
// Decode appends to dst and returns the extended slice.
type Codec interface {
	Compression() Compression
	Encode(deltas []uint32) ([]byte, error)
	Decode(payload []byte, dst []uint32) ([]uint32, error)
}

// New returns the codec for a compression id read from an index header.
func New(c Compression) (Codec, error) {
	switch c {
	case CompressionVarint:
		return varintCodec{}, nil
	case CompressionLZ4:
		return lz4Codec{}, nil
	case CompressionZSTD:
		return newZstdCodec()
	case CompressionRoaring:
		return roaringCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported compression id %d", uint32(c))
	}
}
