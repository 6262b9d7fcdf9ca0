// Package indexfile reads and writes the on-disk trigram index.
//
// An index is a pair of files. The index file has the form:
//
//	compression id   [4]
//	document count N [4]
//	document offsets [8] × N
//	chunk...
//
// and every chunk has the form:
//
//	chunk number     [4]
//	trigram offsets  [8] × 256³
//	trailer          [8]
//
// Trigram offsets address the data file. Offsets i and i+1 bound trigram i's
// posting payload for the chunk; the trailer closes the range of the last
// trigram and equals the end of the chunk's posting data. A trigram whose
// range is empty (or inverted) has no postings in the chunk.
//
// The data file is a flat blob holding posting payloads, decoded by the
// codec named in the header, and filename records of the form:
//
//	length [8]
//	bytes  [length]
//
// Posting payloads decode to deltas. The first delta of a trigram in a chunk
// is relative to the last document that trigram contributed in any earlier
// chunk (0 if none), so a reader must carry that running base across chunks.
//
// All integers are little-endian.
package indexfile

import (
	"github.com/standardbeagle/trigrep/internal/codec"
	"github.com/standardbeagle/trigrep/internal/types"
)

// MaxPayloadLength bounds one trigram's posting payload within a chunk. A
// default chunk's longest list encodes to well under a megabyte.
const MaxPayloadLength = 1 << 28

// MaxFilenameLength guards the resolver against reading a corrupt length prefix
// as a multi-gigabyte allocation.
const MaxFilenameLength = 1 << 16

// Header is the fixed prefix of an index file.
type Header struct {
	Compression codec.Compression
	DocCount    uint32
}

// DocTableOffset is where the document offset table starts.
func (h Header) DocTableOffset() int64 {
	return types.HeaderSize
}

// DocEntryOffset is the index-file position of document id's data offset.
func (h Header) DocEntryOffset(id types.DocID) int64 {
	return h.DocTableOffset() + int64(id)*types.OffsetSize
}

// FirstChunkOffset is the position of the first chunk marker.
func (h Header) FirstChunkOffset() int64 {
	return h.DocEntryOffset(types.DocID(h.DocCount))
}

// TrigramEntryOffset is the index-file position of trigram t's start offset
// in the chunk whose table begins at tableBase.
func TrigramEntryOffset(tableBase int64, t types.Trigram) int64 {
	return tableBase + int64(t)*types.OffsetSize
}

// TrailerOffset is the position of the chunk trailer for a table at tableBase.
func TrailerOffset(tableBase int64) int64 {
	return TrigramEntryOffset(tableBase, types.TriCount)
}

// NextChunkOffset is the position of the marker following the chunk whose
// table begins at tableBase.
func NextChunkOffset(tableBase int64) int64 {
	return tableBase + types.ChunkTableSize
}
