package search

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/trigrep/internal/codec"
	"github.com/standardbeagle/trigrep/internal/debug"
	tgerrors "github.com/standardbeagle/trigrep/internal/errors"
	"github.com/standardbeagle/trigrep/internal/grep"
	"github.com/standardbeagle/trigrep/internal/indexfile"
	"github.com/standardbeagle/trigrep/internal/query"
	"github.com/standardbeagle/trigrep/internal/testing/fixtures"
	"github.com/standardbeagle/trigrep/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var allCompressions = []codec.Compression{
	codec.CompressionVarint,
	codec.CompressionLZ4,
	codec.CompressionZSTD,
	codec.CompressionRoaring,
}

func term(s string) *query.Term {
	return query.NewTerm(fixtures.Tri(s))
}

func matcher(t *testing.T, pattern string) grep.Matcher {
	t.Helper()
	m, err := grep.NewRegexpMatcher(pattern, false)
	require.NoError(t, err)
	return m
}

// writeFiles creates name→content files under a temp dir and returns their
// paths in the given order.
func writeFiles(t *testing.T, files ...[2]string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(dir, f[0])
		if f[1] != "" {
			require.NoError(t, os.WriteFile(paths[i], []byte(f[1]), 0o644))
		}
	}
	return paths
}

func run(t *testing.T, fx *fixtures.Index, opts Options, root query.Node, m grep.Matcher) (string, Stats, error) {
	t.Helper()
	var out bytes.Buffer
	stats, err := New(opts).Search(fx.Index, fx.Data, root, m, &out)
	return out.String(), stats, err
}

func TestSearch_SingleChunkFilter(t *testing.T) {
	fx, err := fixtures.BuildIndex(codec.CompressionVarint, []string{"f0", "f1", "f2"},
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(0, 2)})
	require.NoError(t, err)

	out, stats, err := run(t, fx, Options{JustFilter: true}, term("abc"), nil)
	require.NoError(t, err)
	assert.Equal(t, "f0\nf2\n", out)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 2, stats.Candidates)
	assert.Equal(t, 0, stats.FilesOpened)
}

func TestSearch_SingleChunkGrep(t *testing.T) {
	paths := writeFiles(t,
		[2]string{"a.txt", "abc here\nnothing\n"},
		[2]string{"b.txt", "no match\n"},
		[2]string{"c.txt", "one\nxabcx\n"},
	)
	fx, err := fixtures.BuildIndex(codec.CompressionVarint, paths,
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(0, 2)})
	require.NoError(t, err)

	out, stats, err := run(t, fx, Options{PrintLineNumbers: true}, term("abc"), matcher(t, "abc"))
	require.NoError(t, err)
	assert.Equal(t, paths[0]+":1:abc here\n"+paths[2]+":2:xabcx\n", out)
	assert.Equal(t, 2, stats.FilesOpened)
	assert.Equal(t, 2, stats.Matches)
}

func TestSearch_CrossChunkRunningBase(t *testing.T) {
	names := []string{"d0", "d1", "d2", "d3", "d4", "d5"}
	for _, comp := range allCompressions {
		t.Run(comp.String(), func(t *testing.T) {
			fx, err := fixtures.BuildIndex(comp, names,
				fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(1)},
				fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(5)},
			)
			require.NoError(t, err)

			idx := indexfile.NewReader(fx.Index, "index")
			dat := indexfile.NewReader(fx.Data, "data")
			h, err := idx.ReadHeader()
			require.NoError(t, err)
			cd, err := codec.New(h.Compression)
			require.NoError(t, err)

			var stats Stats
			found, err := New(Options{}).scan(idx, dat, h, cd, term("abc"), &stats)
			require.NoError(t, err)
			assert.Equal(t, []types.DocID{1, 5}, found.ids())
			assert.Equal(t, []types.DocID{1, 4}, found.deltas)
			assert.Equal(t, 2, stats.Chunks)

			out, _, err := run(t, fx, Options{JustFilter: true}, term("abc"), nil)
			require.NoError(t, err)
			assert.Equal(t, "d1\nd5\n", out)
		})
	}
}

func TestSearch_DisjointAndOpensNothing(t *testing.T) {
	paths := writeFiles(t,
		[2]string{"a", "abc"}, [2]string{"b", "xyz"}, [2]string{"c", "abc"}, [2]string{"d", "xyz"},
	)
	fx, err := fixtures.BuildIndex(codec.CompressionVarint, paths,
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(0), fixtures.Tri("xyz"): fixtures.Docs(1)},
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(2), fixtures.Tri("xyz"): fixtures.Docs(3)},
	)
	require.NoError(t, err)

	out, stats, err := run(t, fx, Options{}, query.NewAnd(term("abc"), term("xyz")), matcher(t, "abc.*xyz"))
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, stats.Candidates)
	assert.Equal(t, 0, stats.FilesOpened)
	assert.Equal(t, 0, stats.SkippedFiles)
}

func TestSearch_JustFilterNeverReadsFiles(t *testing.T) {
	// none of these paths exist, so any attempt to grep would be skipped
	// and counted
	names := []string{"/nonexistent/trigrep/a", "/nonexistent/trigrep/b"}
	fx, err := fixtures.BuildIndex(codec.CompressionVarint, names,
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(0, 1)})
	require.NoError(t, err)

	out, stats, err := run(t, fx, Options{JustFilter: true}, term("abc"), matcher(t, "abc"))
	require.NoError(t, err)
	assert.Equal(t, "/nonexistent/trigrep/a\n/nonexistent/trigrep/b\n", out)
	assert.Equal(t, 0, stats.FilesOpened)
	assert.Equal(t, 0, stats.SkippedFiles)
}

func TestSearch_MissingFileSkipped(t *testing.T) {
	paths := writeFiles(t,
		[2]string{"a", "abc one\n"},
		[2]string{"gone", ""},
		[2]string{"c", "abc three\n"},
	)
	fx, err := fixtures.BuildIndex(codec.CompressionVarint, paths,
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(0, 1, 2)})
	require.NoError(t, err)

	out, stats, err := run(t, fx, Options{}, term("abc"), matcher(t, "abc"))
	require.NoError(t, err)
	assert.Equal(t, paths[0]+":abc one\n"+paths[2]+":abc three\n", out)
	assert.Equal(t, 2, stats.FilesOpened)
	assert.Equal(t, 1, stats.SkippedFiles)
}

func TestSearch_DecodeOncePerTrigramAndChunk(t *testing.T) {
	fx, err := fixtures.BuildIndex(codec.CompressionVarint, []string{"a", "b", "c", "d"},
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(0, 1), fixtures.Tri("bcd"): fixtures.Docs(1)},
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(3)},
	)
	require.NoError(t, err)

	// abc appears three times, bcd twice, xyz never
	root := query.NewOr(
		query.NewAnd(term("abc"), query.NewOr(term("bcd"), term("abc"))),
		query.NewAnd(term("abc"), query.NewOr(term("bcd"), term("xyz"))),
	)
	out, stats, err := run(t, fx, Options{JustFilter: true}, root, nil)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nd\n", out)
	// chunk 0 decodes abc and bcd, chunk 1 decodes abc only
	assert.Equal(t, 3, stats.Decodes)
}

func TestChunkCache_RunningBaseSurvivesChunks(t *testing.T) {
	fx, err := fixtures.BuildIndex(codec.CompressionVarint, []string{"0", "1", "2", "3", "4", "5", "6", "7"},
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(0, 2)},
		fixtures.Chunk{fixtures.Tri("xyz"): fixtures.Docs(4)},
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(7)},
	)
	require.NoError(t, err)

	idx := indexfile.NewReader(fx.Index, "index")
	dat := indexfile.NewReader(fx.Data, "data")
	h, err := idx.ReadHeader()
	require.NoError(t, err)
	cd, err := codec.New(h.Compression)
	require.NoError(t, err)
	cache := newChunkCache(idx, dat, cd, h.DocCount)

	tm := term("abc")
	var bases []types.DocID
	var lists [][]types.DocID
	pos := h.FirstChunkOffset()
	for {
		number, ok, err := idx.ReadChunkMarker(pos)
		require.NoError(t, err)
		if !ok {
			break
		}
		base := pos + types.ChunkMarkerSize
		cache.startChunk(number, base)
		require.NoError(t, query.Bind(tm, cache))

		var got []types.DocID
		for d := tm.Next(); d != types.DocsEnd; d = tm.Next() {
			got = append(got, d)
		}
		lists = append(lists, got)

		cache.endChunk()
		e := cache.entries[fixtures.Tri("abc")]
		assert.Nil(t, e.list)
		assert.False(t, e.loaded)
		bases = append(bases, e.runningBase)
		pos = indexfile.NextChunkOffset(base)
	}

	assert.Equal(t, [][]types.DocID{{0, 2}, nil, {7}}, lists)
	assert.Equal(t, []types.DocID{2, 2, 7}, bases)
	assert.Equal(t, 2, cache.decodes)
}

func TestSearch_EmptyIndex(t *testing.T) {
	fx, err := fixtures.BuildIndex(codec.CompressionVarint, []string{"a", "b"})
	require.NoError(t, err)

	out, stats, err := run(t, fx, Options{}, term("abc"), matcher(t, "abc"))
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, Stats{Duration: stats.Duration}, stats)
}

func TestSearch_UnknownCompression(t *testing.T) {
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header, 42)
	_, err := New(Options{}).Search(bytes.NewReader(header), bytes.NewReader(nil), term("abc"), nil, &bytes.Buffer{})

	var fe *tgerrors.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "index", fe.File)
}

func TestSearch_TruncatedChunk(t *testing.T) {
	fx, err := fixtures.BuildIndex(codec.CompressionVarint, []string{"a", "b"},
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(0)},
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(1)},
	)
	require.NoError(t, err)
	fx.Index.Truncate(fx.Index.Size() - 3)

	out, stats, err := run(t, fx, Options{JustFilter: true}, term("abc"), nil)
	var fe *tgerrors.FormatError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, int64(1), fe.Chunk)
	assert.Empty(t, out)
	// both chunks decoded abc before the trailer check failed
	assert.Equal(t, 2, stats.Decodes)
	assert.True(t, stats.Duration > 0, "duration not recorded")
}

// patchedReaderAt overlays patch at off on top of an existing file.
type patchedReaderAt struct {
	io.ReaderAt
	off   int64
	patch []byte
}

func (p *patchedReaderAt) ReadAt(b []byte, off int64) (int, error) {
	n, err := p.ReaderAt.ReadAt(b, off)
	for i := 0; i < n; i++ {
		if pos := off + int64(i) - p.off; pos >= 0 && pos < int64(len(p.patch)) {
			b[i] = p.patch[pos]
		}
	}
	return n, err
}

// withTrigramRange rewrites the table entries bounding tri in chunk number
// chunk so its payload range becomes [start, end).
func withTrigramRange(t *testing.T, fx *fixtures.Index, chunk int, tri types.Trigram, start, end uint64) io.ReaderAt {
	t.Helper()
	h, err := indexfile.NewReader(fx.Index, "index").ReadHeader()
	require.NoError(t, err)
	tableBase := h.FirstChunkOffset() + types.ChunkMarkerSize
	for i := 0; i < chunk; i++ {
		tableBase = indexfile.NextChunkOffset(tableBase) + types.ChunkMarkerSize
	}
	patch := make([]byte, 2*types.OffsetSize)
	binary.LittleEndian.PutUint64(patch, start)
	binary.LittleEndian.PutUint64(patch[types.OffsetSize:], end)
	return &patchedReaderAt{ReaderAt: fx.Index, off: indexfile.TrigramEntryOffset(tableBase, tri), patch: patch}
}

func TestSearch_CorruptPayloadRange(t *testing.T) {
	fx, err := fixtures.BuildIndex(codec.CompressionVarint, []string{"a"},
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(0)})
	require.NoError(t, err)

	tests := []struct {
		name       string
		start, end uint64
	}{
		{"end beyond int64", 0, 1<<63 + 16},
		{"end beyond data file", 0, 1 << 20},
		{"longer than any posting list", 0, indexfile.MaxPayloadLength + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := withTrigramRange(t, fx, 0, fixtures.Tri("abc"), tt.start, tt.end)

			var out bytes.Buffer
			stats, err := New(Options{JustFilter: true}).Search(index, fx.Data, term("abc"), nil, &out)
			var fe *tgerrors.FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, "data", fe.File)
			assert.Equal(t, "read posting payload", fe.Operation)
			assert.Equal(t, int64(0), fe.Chunk)
			assert.Zero(t, stats.Decodes)
			assert.Empty(t, out.String())
		})
	}
}

func TestChunkCache_InvertedRangeIsAbsent(t *testing.T) {
	fx, err := fixtures.BuildIndex(codec.CompressionVarint, []string{"0", "1", "2", "3"},
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(0, 1)},
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(3)},
	)
	require.NoError(t, err)
	index := withTrigramRange(t, fx, 1, fixtures.Tri("abc"), 100, 40)

	idx := indexfile.NewReader(index, "index")
	dat := indexfile.NewReader(fx.Data, "data")
	h, err := idx.ReadHeader()
	require.NoError(t, err)
	cd, err := codec.New(h.Compression)
	require.NoError(t, err)
	cache := newChunkCache(idx, dat, cd, h.DocCount)

	tm := term("abc")
	var lists [][]types.DocID
	var bases []types.DocID
	pos := h.FirstChunkOffset()
	for {
		number, ok, err := idx.ReadChunkMarker(pos)
		require.NoError(t, err)
		if !ok {
			break
		}
		base := pos + types.ChunkMarkerSize
		cache.startChunk(number, base)
		require.NoError(t, query.Bind(tm, cache))

		var got []types.DocID
		for d := tm.Next(); d != types.DocsEnd; d = tm.Next() {
			got = append(got, d)
		}
		lists = append(lists, got)
		bases = append(bases, cache.entries[fixtures.Tri("abc")].runningBase)
		cache.endChunk()
		pos = indexfile.NextChunkOffset(base)
	}

	assert.Equal(t, [][]types.DocID{{0, 1}, nil}, lists)
	assert.Equal(t, []types.DocID{1, 1}, bases)
	assert.Equal(t, 1, cache.decodes)

	var out bytes.Buffer
	stats, err := New(Options{JustFilter: true}).Search(index, fx.Data, term("abc"), nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "0\n1\n", out.String())
	assert.Equal(t, 1, stats.Decodes)
}

func TestSearch_PartialChunkMarker(t *testing.T) {
	fx, err := fixtures.BuildIndex(codec.CompressionVarint, []string{"a"},
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(0)})
	require.NoError(t, err)
	fx.Index.Write([]byte{1, 0})

	_, _, err = run(t, fx, Options{JustFilter: true}, term("abc"), nil)
	var fe *tgerrors.FormatError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, "read chunk marker", fe.Operation)
}

func TestSearch_VerboseTrace(t *testing.T) {
	var trace bytes.Buffer
	debug.SetVerbose(true)
	debug.SetDebugOutput(&trace)
	t.Cleanup(func() {
		debug.SetVerbose(false)
		debug.SetDebugOutput(nil)
	})

	fx, err := fixtures.BuildIndex(codec.CompressionVarint, []string{"a"},
		fixtures.Chunk{fixtures.Tri("abc"): fixtures.Docs(0)})
	require.NoError(t, err)
	_, _, err = run(t, fx, Options{JustFilter: true}, term("abc"), nil)
	require.NoError(t, err)

	assert.Contains(t, trace.String(), "chunk 0: 1 candidates")
	assert.Contains(t, trace.String(), `"abc"`)
	assert.Contains(t, trace.String(), "document 0: a")
}

func TestResults_RoundTrip(t *testing.T) {
	var r results
	want := []types.DocID{0, 3, 4, 100, 1 << 20}
	for _, id := range want {
		require.NoError(t, r.add(id))
	}
	assert.Equal(t, want, r.ids())
	assert.Equal(t, []types.DocID{0, 3, 1, 96, 1<<20 - 100}, r.deltas)

	assert.Error(t, r.add(1<<20))
	assert.Error(t, r.add(5))
}
