// Package indexing builds index/data file pairs from a directory tree.
//
// A build runs in two passes over the files that survive path filtering.
// The first pass sniffs content for binary data (and hashes it when
// duplicate skipping is on) to settle the final document list, which the
// index header needs up front. The second pass reads the kept documents one
// chunk at a time, extracts their trigrams and writes the chunk. Both passes
// read files concurrently; ids and chunk contents follow sorted path order
// regardless of which read finishes first.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/trigrep/internal/codec"
	"github.com/standardbeagle/trigrep/internal/config"
	"github.com/standardbeagle/trigrep/internal/debug"
	tgerrors "github.com/standardbeagle/trigrep/internal/errors"
	"github.com/standardbeagle/trigrep/internal/indexfile"
	"github.com/standardbeagle/trigrep/internal/types"
)

// Stats describes one build.
type Stats struct {
	FilesSeen     int // Regular files reached by the walk
	Excluded      int // Rejected by include/exclude patterns
	SkippedLarge  int // Larger than max_file_size
	SkippedBinary int // Binary by extension or content
	SkippedUnread int // Could not be read in the first pass
	Duplicates    int // Identical to an earlier document
	Documents     int
	Chunks        int
	Postings      int // Sum of posting list lengths over all chunks
	Duration      time.Duration

	// ReadErrors holds one FileError per file that failed to read, in
	// path order. Those files are skipped, or indexed as empty when the
	// failure comes after their id was assigned.
	ReadErrors []error
}

// ReadError folds ReadErrors into one error, nil when every file was read.
func (s Stats) ReadError() error {
	return tgerrors.NewMultiError(s.ReadErrors).ErrOrNil()
}

// Builder writes an index for a directory tree.
type Builder struct {
	cfg   config.Index
	codec codec.Codec
}

// New returns a builder for a validated index config.
func New(cfg config.Index) (*Builder, error) {
	comp, err := codec.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, tgerrors.NewConfigError("index.compression", cfg.Compression, err)
	}
	cd, err := codec.New(comp)
	if err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ChunkDocs <= 0 {
		return nil, tgerrors.NewConfigError("index.chunk_docs", fmt.Sprint(cfg.ChunkDocs), errors.New("must be positive"))
	}
	return &Builder{cfg: cfg, codec: cd}, nil
}

// Build indexes root and writes the index and data files. Filenames are
// recorded as root joined with the path found under it.
func (b *Builder) Build(ctx context.Context, root string, idx, dat io.Writer) (Stats, error) {
	started := time.Now()
	var stats Stats

	candidates, err := b.walk(root, &stats)
	if err != nil {
		return stats, err
	}
	debug.LogIndexing("%d candidate files under %s\n", len(candidates), root)

	docs, err := b.selectDocuments(ctx, candidates, &stats)
	if err != nil {
		return stats, err
	}
	stats.Documents = len(docs)

	w := indexfile.NewWriter(idx, dat, b.codec)
	if err := w.WriteHeader(docs); err != nil {
		return stats, tgerrors.NewIndexingError("write header", err)
	}

	for first := 0; first < len(docs); first += b.cfg.ChunkDocs {
		last := min(first+b.cfg.ChunkDocs, len(docs))
		postings, err := b.chunkPostings(ctx, docs, first, last, &stats)
		if err != nil {
			return stats, err
		}
		for _, list := range postings {
			stats.Postings += len(list)
		}
		if err := w.WriteChunk(postings); err != nil {
			return stats, tgerrors.NewIndexingError("write chunk", err)
		}
		stats.Chunks = int(w.Chunks())
		debug.LogIndexing("chunk %d: documents %d..%d, %d trigrams\n", stats.Chunks-1, first, last-1, len(postings))
	}

	if err := w.Flush(); err != nil {
		return stats, tgerrors.NewIndexingError("flush", err)
	}
	stats.Duration = time.Since(started)
	return stats, nil
}

// walk lists the files under root that pass the path filters, sorted.
func (b *Builder) walk(root string, stats *Stats) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			debug.LogIndexing("walk %s: %v\n", p, err)
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			rel = path.Base(filepath.ToSlash(p))
		}

		if d.IsDir() {
			if p != root && b.excludesDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := b.fileInfo(p, d)
		if err != nil || info == nil || !info.Mode().IsRegular() {
			return nil
		}
		stats.FilesSeen++

		switch {
		case !b.included(rel):
			stats.Excluded++
		case isBinaryPath(rel):
			stats.SkippedBinary++
		case info.Size() > b.cfg.MaxFileSize:
			stats.SkippedLarge++
		default:
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, tgerrors.NewIndexingError("walk", err).WithFile(root)
	}
	slices.Sort(out)
	return out, nil
}

// fileInfo stats a walked entry, following symlinks only when configured.
// A nil info means the entry is skipped.
func (b *Builder) fileInfo(p string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink != 0 {
		if !b.cfg.FollowSymlinks {
			return nil, nil
		}
		return os.Stat(p)
	}
	return d.Info()
}

func (b *Builder) included(rel string) bool {
	for _, pattern := range b.cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	if len(b.cfg.Include) == 0 {
		return true
	}
	for _, pattern := range b.cfg.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// excludesDir reports whether an exclude pattern covers everything under
// dir, so the walk can skip it.
func (b *Builder) excludesDir(dir string) bool {
	probe := dir + "/_"
	for _, pattern := range b.cfg.Exclude {
		if !strings.HasSuffix(pattern, "/**") {
			continue
		}
		if ok, _ := doublestar.Match(pattern, probe); ok {
			return true
		}
	}
	return false
}

type sniffResult struct {
	keep   bool
	binary bool
	hash   uint64
	err    error
}

// selectDocuments drops binary and unreadable files and, when configured,
// later copies of identical content.
func (b *Builder) selectDocuments(ctx context.Context, candidates []string, stats *Stats) ([]string, error) {
	results := make([]sniffResult, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for i, p := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = b.sniff(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, tgerrors.NewIndexingError("scan files", err)
	}

	seen := make(map[uint64]string)
	docs := make([]string, 0, len(candidates))
	for i, r := range results {
		switch {
		case r.binary:
			stats.SkippedBinary++
		case !r.keep:
			stats.SkippedUnread++
			stats.ReadErrors = append(stats.ReadErrors, r.err)
		case b.cfg.SkipDuplicates && seen[r.hash] != "":
			debug.LogIndexing("%s duplicates %s\n", candidates[i], seen[r.hash])
			stats.Duplicates++
		default:
			if b.cfg.SkipDuplicates {
				seen[r.hash] = candidates[i]
			}
			docs = append(docs, candidates[i])
		}
	}
	return docs, nil
}

func (b *Builder) sniff(p string) sniffResult {
	if b.cfg.SkipDuplicates {
		content, err := os.ReadFile(p)
		if err != nil {
			debug.LogIndexing("read %s: %v\n", p, err)
			return sniffResult{err: tgerrors.NewFileError("read", p, err)}
		}
		if isBinaryContent(content) {
			return sniffResult{binary: true}
		}
		return sniffResult{keep: true, hash: xxhash.Sum64(content)}
	}

	f, err := os.Open(p)
	if err != nil {
		debug.LogIndexing("open %s: %v\n", p, err)
		return sniffResult{err: tgerrors.NewFileError("open", p, err)}
	}
	defer f.Close()
	head := make([]byte, types.BinaryPreCheckBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		debug.LogIndexing("read %s: %v\n", p, err)
		return sniffResult{err: tgerrors.NewFileError("read", p, err)}
	}
	if isBinaryContent(head[:n]) {
		return sniffResult{binary: true}
	}
	return sniffResult{keep: true}
}

// chunkPostings reads docs[first:last] and inverts them into per-trigram
// ascending document lists.
func (b *Builder) chunkPostings(ctx context.Context, docs []string, first, last int, stats *Stats) (map[types.Trigram][]types.DocID, error) {
	sets := make([][]types.Trigram, last-first)
	readErrs := make([]error, last-first)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for i := first; i < last; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(docs[i])
			if err != nil {
				// the document keeps its id and simply matches nothing
				debug.LogIndexing("read %s: %v\n", docs[i], err)
				readErrs[i-first] = tgerrors.NewFileError("read", docs[i], err)
				return nil
			}
			sets[i-first] = Trigrams(content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, tgerrors.NewIndexingError("read files", err)
	}
	stats.ReadErrors = append(stats.ReadErrors, tgerrors.NewMultiError(readErrs).Errors...)

	postings := make(map[types.Trigram][]types.DocID)
	for i, set := range sets {
		id := types.DocID(first + i)
		for _, t := range set {
			postings[t] = append(postings[t], id)
		}
	}
	return postings, nil
}

// Trigrams returns the distinct byte trigrams of content, sorted.
func Trigrams(content []byte) []types.Trigram {
	if len(content) < 3 {
		return nil
	}
	out := make([]types.Trigram, 0, len(content)-2)
	for i := 0; i+3 <= len(content); i++ {
		out = append(out, types.NewTrigram(content[i], content[i+1], content[i+2]))
	}
	slices.Sort(out)
	return slices.Compact(out)
}
