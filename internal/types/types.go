package types

import (
	"fmt"
	"math"
)

// Common system-wide constants
const (
	// TriCount is the number of distinct byte trigrams (256³).
	TriCount = 1 << 24

	// OffsetSize is the on-disk width of every data-file offset.
	OffsetSize = 8

	// HeaderSize covers the compression id and the document count.
	HeaderSize = 8

	// ChunkMarkerSize is the width of the chunk-number marker preceding each chunk.
	ChunkMarkerSize = 4

	// ChunkTableSize is the trigram offset table plus its one-entry trailer.
	ChunkTableSize = (TriCount + 1) * OffsetSize

	// DefaultMaxFileSize bounds what the index builder will read into memory.
	DefaultMaxFileSize = 10 * 1024 * 1024
	// Rationale: generated and vendored blobs above this size are rarely
	// useful grep targets and dominate posting-list size.

	// BinaryPreCheckBytes is how much of a file is sniffed for NUL bytes.
	BinaryPreCheckBytes = 512
)

// DocID is a dense document index into the document offset table.
type DocID uint32

// DocsEnd is the end-of-stream sentinel returned by query nodes.
const DocsEnd DocID = math.MaxUint32

// Offset addresses a byte in the data file.
type Offset uint64

// Trigram is a 3-byte substring packed big-endian into the low 24 bits.
type Trigram uint32

// NewTrigram packs three bytes into a Trigram.
func NewTrigram(a, b, c byte) Trigram {
	return Trigram(uint32(a)<<16 | uint32(b)<<8 | uint32(c))
}

// TrigramOf returns the trigram for s[0:3]. s must be at least 3 bytes long.
func TrigramOf(s string) Trigram {
	return NewTrigram(s[0], s[1], s[2])
}

// Valid reports whether t fits the trigram offset table.
func (t Trigram) Valid() bool {
	return t < TriCount
}

// Bytes unpacks the trigram.
func (t Trigram) Bytes() [3]byte {
	return [3]byte{byte(t >> 16), byte(t >> 8), byte(t)}
}

// String renders printable trigrams as-is and anything else escaped.
func (t Trigram) String() string {
	b := t.Bytes()
	return fmt.Sprintf("%q", string(b[:]))
}
