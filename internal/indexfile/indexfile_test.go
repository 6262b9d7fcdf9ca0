package indexfile_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/trigrep/internal/codec"
	tgerrors "github.com/standardbeagle/trigrep/internal/errors"
	"github.com/standardbeagle/trigrep/internal/indexfile"
	"github.com/standardbeagle/trigrep/internal/testing/fixtures"
	"github.com/standardbeagle/trigrep/internal/types"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	fx, err := fixtures.BuildIndex(codec.CompressionVarint,
		[]string{"a.go", "b.go", "c.go", "d.go"},
		fixtures.Chunk{
			fixtures.Tri("abc"): fixtures.Docs(0, 1),
			fixtures.Tri("xyz"): fixtures.Docs(1),
		},
		fixtures.Chunk{
			fixtures.Tri("abc"): fixtures.Docs(3),
		},
	)
	require.NoError(t, err)

	idx := indexfile.NewReader(fx.Index, "index")
	dat := indexfile.NewReader(fx.Data, "data")

	h, err := idx.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, codec.CompressionVarint, h.Compression)
	assert.Equal(t, uint32(4), h.DocCount)

	for id, want := range []string{"a.go", "b.go", "c.go", "d.go"} {
		off, err := idx.ReadDocOffset(h, types.DocID(id))
		require.NoError(t, err)
		name, err := dat.ReadFilename(off)
		require.NoError(t, err)
		assert.Equal(t, want, name)
	}

	cd, err := codec.New(h.Compression)
	require.NoError(t, err)

	pos := h.FirstChunkOffset()
	for chunk, want := range [][]uint32{{0, 1}, {2}} {
		number, ok, err := idx.ReadChunkMarker(pos)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint32(chunk), number)

		base := pos + types.ChunkMarkerSize
		start, end, err := idx.TrigramRange(base, fixtures.Tri("abc"))
		require.NoError(t, err)
		require.Greater(t, end, start)

		payload, err := dat.ReadPayload(start, end)
		require.NoError(t, err)
		deltas, err := cd.Decode(payload, nil)
		require.NoError(t, err)
		// chunk 1 stores doc 3 relative to doc 1 from chunk 0
		assert.Equal(t, want, deltas)

		start, end, err = idx.TrigramRange(base, fixtures.Tri("qqq"))
		require.NoError(t, err)
		assert.LessOrEqual(t, end, start)

		_, err = idx.ReadTrailer(base)
		require.NoError(t, err)
		pos = indexfile.NextChunkOffset(base)
	}

	_, ok, err := idx.ReadChunkMarker(pos)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, fx.Index.Size(), pos)
}

func TestReader_TruncatedChunk(t *testing.T) {
	fx, err := fixtures.BuildIndex(codec.CompressionVarint, []string{"a"},
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(0)})
	require.NoError(t, err)
	fx.Index.Truncate(fx.Index.Size() - 3)

	idx := indexfile.NewReader(fx.Index, "index")
	h, err := idx.ReadHeader()
	require.NoError(t, err)

	base := h.FirstChunkOffset() + types.ChunkMarkerSize
	_, err = idx.ReadTrailer(base)
	var fe *tgerrors.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "index", fe.File)
	assert.Equal(t, indexfile.TrailerOffset(base), fe.Offset)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReader_PartialMarker(t *testing.T) {
	r := indexfile.NewReader(bytes.NewReader([]byte{1, 2}), "index")
	_, ok, err := r.ReadChunkMarker(0)
	assert.False(t, ok)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReader_ShortHeader(t *testing.T) {
	r := indexfile.NewReader(bytes.NewReader([]byte{0, 0, 0, 0, 1}), "index")
	_, err := r.ReadHeader()
	var fe *tgerrors.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, int64(4), fe.Offset)
}

func TestReader_DocOutOfRange(t *testing.T) {
	fx, err := fixtures.BuildIndex(codec.CompressionVarint, []string{"a"})
	require.NoError(t, err)
	idx := indexfile.NewReader(fx.Index, "index")
	h, err := idx.ReadHeader()
	require.NoError(t, err)

	_, err = idx.ReadDocOffset(h, 1)
	assert.Error(t, err)
}

func TestReader_FilenameLengthGuard(t *testing.T) {
	rec := []byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0}
	r := indexfile.NewReader(bytes.NewReader(rec), "data")
	_, err := r.ReadFilename(0)
	assert.Error(t, err)
}

func TestReader_PayloadRangeGuard(t *testing.T) {
	r := indexfile.NewReader(bytes.NewReader(make([]byte, 64)), "data")

	tests := []struct {
		name       string
		start, end types.Offset
	}{
		{"does not fit an int", 0, 1<<63 + 16},
		{"above the payload limit", 0, indexfile.MaxPayloadLength + 1},
		{"past the end of the file", 32, 1 << 20},
		{"inverted", 40, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ReadPayload(tt.start, tt.end)
			var fe *tgerrors.FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, "read posting payload", fe.Operation)
		})
	}

	p, err := r.ReadPayload(8, 16)
	require.NoError(t, err)
	assert.Len(t, p, 8)
}

func TestWriter_Validation(t *testing.T) {
	cd, err := codec.New(codec.CompressionVarint)
	require.NoError(t, err)

	newWriter := func() *indexfile.Writer {
		w := indexfile.NewWriter(io.Discard, io.Discard, cd)
		require.NoError(t, w.WriteHeader([]string{"a", "b", "c"}))
		return w
	}

	t.Run("chunk before header", func(t *testing.T) {
		w := indexfile.NewWriter(io.Discard, io.Discard, cd)
		assert.Error(t, w.WriteChunk(nil))
	})

	t.Run("header twice", func(t *testing.T) {
		w := newWriter()
		assert.Error(t, w.WriteHeader([]string{"x"}))
	})

	t.Run("doc out of range", func(t *testing.T) {
		w := newWriter()
		assert.Error(t, w.WriteChunk(fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(3)}))
	})

	t.Run("not ascending", func(t *testing.T) {
		w := newWriter()
		assert.Error(t, w.WriteChunk(fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(2, 1)}))
	})

	t.Run("overlapping chunks", func(t *testing.T) {
		w := newWriter()
		require.NoError(t, w.WriteChunk(fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(1)}))
		assert.Error(t, w.WriteChunk(fixtures.Chunk{fixtures.Tri("xyz"): fixtures.Docs(1)}))
	})

	t.Run("empty chunk", func(t *testing.T) {
		w := newWriter()
		require.NoError(t, w.WriteChunk(fixtures.Chunk{}))
		assert.Equal(t, uint32(1), w.Chunks())
	})
}
