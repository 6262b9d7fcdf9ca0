package indexfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/standardbeagle/trigrep/internal/codec"
	"github.com/standardbeagle/trigrep/internal/types"
)

const writeBufferSize = 1 << 16

var (
	errHeaderWritten   = errors.New("header already written")
	errHeaderMissing   = errors.New("header must be written before chunks")
	errTooManyDocs     = errors.New("document count overflows a document id")
	errFilenameTooLong = errors.New("filename exceeds maximum record length")
)

// Writer produces an index file and a data file. Call WriteHeader once,
// then WriteChunk for each chunk in ascending document order, then Flush.
type Writer struct {
	idx   *bufio.Writer
	dat   *bufio.Writer
	codec codec.Codec

	datPos   types.Offset
	docCount uint32
	header   bool
	chunks   uint32

	// lastDoc mirrors the searcher's running base per trigram.
	lastDoc map[types.Trigram]types.DocID
	// maxDoc is the highest document placed in any chunk so far.
	maxDoc    types.DocID
	anyChunks bool

	word [8]byte
}

// NewWriter returns a Writer encoding posting payloads with c.
func NewWriter(idx, dat io.Writer, c codec.Codec) *Writer {
	return &Writer{
		idx:     bufio.NewWriterSize(idx, writeBufferSize),
		dat:     bufio.NewWriterSize(dat, writeBufferSize),
		codec:   c,
		lastDoc: make(map[types.Trigram]types.DocID),
	}
}

// Chunks returns how many chunks have been written.
func (w *Writer) Chunks() uint32 {
	return w.chunks
}

func (w *Writer) putUint32(out *bufio.Writer, v uint32) error {
	binary.LittleEndian.PutUint32(w.word[:4], v)
	_, err := out.Write(w.word[:4])
	return err
}

func (w *Writer) putUint64(out *bufio.Writer, v uint64) error {
	binary.LittleEndian.PutUint64(w.word[:8], v)
	_, err := out.Write(w.word[:8])
	return err
}

// WriteHeader writes the index header, the document offset table and one
// filename record per document. Document ids are positions in filenames.
func (w *Writer) WriteHeader(filenames []string) error {
	if w.header {
		return errHeaderWritten
	}
	if uint64(len(filenames)) >= uint64(types.DocsEnd) {
		return errTooManyDocs
	}
	w.docCount = uint32(len(filenames))

	if err := w.putUint32(w.idx, uint32(w.codec.Compression())); err != nil {
		return fmt.Errorf("writing compression id: %w", err)
	}
	if err := w.putUint32(w.idx, w.docCount); err != nil {
		return fmt.Errorf("writing document count: %w", err)
	}
	for _, name := range filenames {
		if len(name) > MaxFilenameLength {
			return fmt.Errorf("%w: %q", errFilenameTooLong, name)
		}
		if err := w.putUint64(w.idx, uint64(w.datPos)); err != nil {
			return fmt.Errorf("writing document offset: %w", err)
		}
		if err := w.putUint64(w.dat, uint64(len(name))); err != nil {
			return fmt.Errorf("writing filename length: %w", err)
		}
		if _, err := w.dat.WriteString(name); err != nil {
			return fmt.Errorf("writing filename: %w", err)
		}
		w.datPos += types.OffsetSize + types.Offset(len(name))
	}
	w.header = true
	return nil
}

// WriteChunk writes one chunk. postings maps each trigram to the ascending
// absolute document ids containing it; every id must exceed every id of
// earlier chunks and be below the header's document count.
func (w *Writer) WriteChunk(postings map[types.Trigram][]types.DocID) error {
	if !w.header {
		return errHeaderMissing
	}

	trigrams := make([]types.Trigram, 0, len(postings))
	for t, docs := range postings {
		if len(docs) == 0 {
			continue
		}
		if !t.Valid() {
			return fmt.Errorf("chunk %d: trigram %d out of range", w.chunks, t)
		}
		trigrams = append(trigrams, t)
	}
	sort.Slice(trigrams, func(i, j int) bool { return trigrams[i] < trigrams[j] })

	chunkStart := w.datPos
	ends := make([]types.Offset, len(trigrams))
	chunkMax := w.maxDoc
	var deltas []uint32
	for i, t := range trigrams {
		docs := postings[t]
		if err := w.checkDocs(t, docs); err != nil {
			return err
		}
		deltas = w.deltas(t, docs, deltas[:0])
		payload, err := w.codec.Encode(deltas)
		if err != nil {
			return fmt.Errorf("chunk %d: encoding trigram %s: %w", w.chunks, t, err)
		}
		if _, err := w.dat.Write(payload); err != nil {
			return fmt.Errorf("chunk %d: writing postings: %w", w.chunks, err)
		}
		w.datPos += types.Offset(len(payload))
		ends[i] = w.datPos
		if last := docs[len(docs)-1]; last > chunkMax {
			chunkMax = last
		}
	}
	for _, t := range trigrams {
		docs := postings[t]
		w.lastDoc[t] = docs[len(docs)-1]
	}

	if err := w.writeTable(chunkStart, trigrams, ends); err != nil {
		return fmt.Errorf("chunk %d: writing trigram table: %w", w.chunks, err)
	}
	if len(trigrams) > 0 {
		w.maxDoc = chunkMax
		w.anyChunks = true
	}
	w.chunks++
	return nil
}

func (w *Writer) checkDocs(t types.Trigram, docs []types.DocID) error {
	for i, d := range docs {
		if uint32(d) >= w.docCount {
			return fmt.Errorf("chunk %d: trigram %s: document %d out of range", w.chunks, t, d)
		}
		if i > 0 && d <= docs[i-1] {
			return fmt.Errorf("chunk %d: trigram %s: documents not strictly ascending at %d", w.chunks, t, d)
		}
	}
	if w.anyChunks && docs[0] <= w.maxDoc {
		return fmt.Errorf("chunk %d: trigram %s: document %d overlaps an earlier chunk", w.chunks, t, docs[0])
	}
	return nil
}

// deltas encodes docs against the trigram's running base.
func (w *Writer) deltas(t types.Trigram, docs []types.DocID, dst []uint32) []uint32 {
	prev := w.lastDoc[t]
	for _, d := range docs {
		dst = append(dst, uint32(d-prev))
		prev = d
	}
	return dst
}

// writeTable streams the chunk marker, one offset per trigram and the trailer.
// Payloads were written contiguously in trigram order starting at chunkStart,
// so an absent trigram gets the start of the next present one and its range
// is empty.
func (w *Writer) writeTable(chunkStart types.Offset, trigrams []types.Trigram, ends []types.Offset) error {
	if err := w.putUint32(w.idx, w.chunks); err != nil {
		return err
	}
	cursor := chunkStart
	next := 0
	for t := types.Trigram(0); t < types.TriCount; t++ {
		if err := w.putUint64(w.idx, uint64(cursor)); err != nil {
			return err
		}
		if next < len(trigrams) && trigrams[next] == t {
			cursor = ends[next]
			next++
		}
	}
	return w.putUint64(w.idx, uint64(cursor))
}

// Flush writes any buffered data to the underlying writers.
func (w *Writer) Flush() error {
	if err := w.idx.Flush(); err != nil {
		return fmt.Errorf("flushing index: %w", err)
	}
	if err := w.dat.Flush(); err != nil {
		return fmt.Errorf("flushing data: %w", err)
	}
	return nil
}
