package fixtures

import (
	"bytes"

	"github.com/standardbeagle/trigrep/internal/codec"
	"github.com/standardbeagle/trigrep/internal/indexfile"
	"github.com/standardbeagle/trigrep/internal/types"
)

// Chunk lists the absolute document ids per trigram for one index chunk.
type Chunk map[types.Trigram][]types.DocID

// Index is an index/data file pair held in memory.
type Index struct {
	Index *SparseFile
	Data  *bytes.Reader
}

// BuildIndex writes filenames and chunks through the real index writer.
func BuildIndex(comp codec.Compression, filenames []string, chunks ...Chunk) (*Index, error) {
	cd, err := codec.New(comp)
	if err != nil {
		return nil, err
	}
	idx := NewSparseFile()
	var dat bytes.Buffer
	w := indexfile.NewWriter(idx, &dat, cd)
	if err := w.WriteHeader(filenames); err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if err := w.WriteChunk(c); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return &Index{Index: idx, Data: bytes.NewReader(dat.Bytes())}, nil
}

// Tri is shorthand for types.TrigramOf.
func Tri(s string) types.Trigram {
	return types.TrigramOf(s)
}

// Docs is shorthand for a document id list.
func Docs(ids ...uint32) []types.DocID {
	out := make([]types.DocID, len(ids))
	for i, id := range ids {
		out[i] = types.DocID(id)
	}
	return out
}
