// Package search scans a chunked trigram index for the documents a query
// tree accepts and greps the files they name.
//
// The scan is single-threaded. For each chunk the query tree is bound to that
// chunk's posting lists through a chunk cache, drained in ascending document
// order, and the ids are appended to a result list that stays delta-encoded
// across the whole scan. Resolution then turns the list back into ids, ids
// into filenames, and filenames into printed matches.
package search

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/standardbeagle/trigrep/internal/codec"
	"github.com/standardbeagle/trigrep/internal/config"
	"github.com/standardbeagle/trigrep/internal/debug"
	tgerrors "github.com/standardbeagle/trigrep/internal/errors"
	"github.com/standardbeagle/trigrep/internal/grep"
	"github.com/standardbeagle/trigrep/internal/indexfile"
	"github.com/standardbeagle/trigrep/internal/query"
	"github.com/standardbeagle/trigrep/internal/types"
)

// Options controls how results are printed.
type Options struct {
	// JustFilter prints candidate filenames without reading the files.
	JustFilter bool
	// PrintLineNumbers prefixes each matching line with its line number.
	PrintLineNumbers bool
	// MaxCount limits matching lines per file; zero means no limit.
	MaxCount int
}

// OptionsFromConfig copies the search section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		JustFilter:       cfg.Search.JustFilter,
		PrintLineNumbers: cfg.Search.PrintLineNumbers,
		MaxCount:         cfg.Search.MaxCount,
	}
}

// Stats describes one search.
type Stats struct {
	Chunks       int // Chunks scanned
	Decodes      int // Posting lists decoded
	Candidates   int // Documents accepted by the query tree
	FilesOpened  int // Candidates actually read by grep
	SkippedFiles int // Candidates that could not be read
	Matches      int // Lines printed, or filenames in filter mode
	Duration     time.Duration
}

// Searcher runs queries against an index/data file pair.
type Searcher struct {
	opts Options
}

func New(opts Options) *Searcher {
	return &Searcher{opts: opts}
}

// Search scans index and data for root and prints results for m to out.
// Any malformed index or data read aborts the search with a
// *errors.FormatError; there is no partial recovery.
func (s *Searcher) Search(index, data io.ReaderAt, root query.Node, m grep.Matcher, out io.Writer) (stats Stats, err error) {
	started := time.Now()
	defer func() { stats.Duration = time.Since(started) }()

	idx := indexfile.NewReader(index, "index")
	dat := indexfile.NewReader(data, "data")

	h, err := idx.ReadHeader()
	if err != nil {
		return stats, err
	}
	cd, err := codec.New(h.Compression)
	if err != nil {
		return stats, tgerrors.NewFormatError("index", "select codec", 0, err)
	}
	debug.LogSearch("index holds %d documents, compression %s\n", h.DocCount, h.Compression)
	if w := debug.Writer(); w != nil {
		query.Print(w, root)
	}

	found, err := s.scan(idx, dat, h, cd, root, &stats)
	if err != nil {
		return stats, err
	}

	bw := bufio.NewWriter(out)
	err = s.resolve(idx, dat, h, found, m, bw, &stats)
	if ferr := bw.Flush(); err == nil {
		err = ferr
	}
	return stats, err
}

// scan walks every chunk and collects the accepted documents.
func (s *Searcher) scan(idx, dat *indexfile.Reader, h indexfile.Header, cd codec.Codec, root query.Node, stats *Stats) (*results, error) {
	cache := newChunkCache(idx, dat, cd, h.DocCount)
	defer func() { stats.Decodes = cache.decodes }()
	found := &results{}

	pos := h.FirstChunkOffset()
	for {
		number, ok, err := idx.ReadChunkMarker(pos)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		tableBase := pos + types.ChunkMarkerSize
		cache.startChunk(number, tableBase)

		if err := query.Bind(root, cache); err != nil {
			return nil, err
		}
		if _, err := idx.ReadTrailer(tableBase); err != nil {
			return nil, withChunk(err, number)
		}
		pos = indexfile.NextChunkOffset(tableBase)

		before := found.len()
		for id := root.Next(); id != types.DocsEnd; id = root.Next() {
			if err := found.add(id); err != nil {
				return nil, tgerrors.NewFormatError("index", "merge chunk results", tableBase, err).WithChunk(int64(number))
			}
		}
		cache.endChunk()

		stats.Chunks++
		debug.LogSearch("chunk %d: %d candidates\n", number, found.len()-before)
	}

	stats.Candidates = found.len()
	return found, nil
}

// resolve maps every found document to its filename and prints it, or
// greps it.
func (s *Searcher) resolve(idx, dat *indexfile.Reader, h indexfile.Header, found *results, m grep.Matcher, out *bufio.Writer, stats *Stats) error {
	grepOpts := grep.Options{LineNumbers: s.opts.PrintLineNumbers, MaxCount: s.opts.MaxCount}

	for _, id := range found.ids() {
		off, err := idx.ReadDocOffset(h, id)
		if err != nil {
			return err
		}
		name, err := dat.ReadFilename(off)
		if err != nil {
			return err
		}
		debug.LogSearch("document %d: %s\n", id, name)

		if s.opts.JustFilter {
			if _, err := fmt.Fprintln(out, name); err != nil {
				return err
			}
			stats.Matches++
			continue
		}

		res, err := grep.File(name, m, out, grepOpts)
		if err != nil {
			return err
		}
		if res.Opened {
			stats.FilesOpened++
		} else {
			stats.SkippedFiles++
		}
		stats.Matches += res.Matches
	}
	return nil
}
