package fixtures

import (
	"io"
	"sort"
)

// period is the width of the repeating unit SparseFile collapses: one
// on-disk offset.
const period = 8

// SparseFile is an in-memory io.Writer/io.ReaderAt that run-length encodes
// any stretch where each byte equals the byte period positions earlier.
// A chunk's trigram table is 128 MiB of mostly repeated offsets, which this
// stores in a handful of segments, so tests can write and read real index
// files without the disk or memory cost.
type SparseFile struct {
	segs []segment
	size int64
	hist [period]byte
}

// segment is either literal bytes or a run of repeat bytes, where byte p
// equals byte p-period.
type segment struct {
	start  int64
	lit    []byte
	repeat int64
}

func (s *segment) end() int64 {
	if s.lit != nil {
		return s.start + int64(len(s.lit))
	}
	return s.start + s.repeat
}

// NewSparseFile returns an empty SparseFile.
func NewSparseFile() *SparseFile {
	return &SparseFile{}
}

// Size returns the number of bytes written.
func (f *SparseFile) Size() int64 {
	return f.size
}

// Segments reports how many segments back the file; tests use it to check
// the table really collapsed.
func (f *SparseFile) Segments() int {
	return len(f.segs)
}

// Write implements io.Writer.
func (f *SparseFile) Write(p []byte) (int, error) {
	for _, b := range p {
		slot := f.size % period
		if f.size >= period && f.hist[slot] == b {
			f.appendRepeat()
		} else {
			f.appendLiteral(b)
		}
		f.hist[slot] = b
		f.size++
	}
	return len(p), nil
}

func (f *SparseFile) appendRepeat() {
	if n := len(f.segs); n > 0 && f.segs[n-1].lit == nil {
		f.segs[n-1].repeat++
		return
	}
	f.segs = append(f.segs, segment{start: f.size, repeat: 1})
}

func (f *SparseFile) appendLiteral(b byte) {
	if n := len(f.segs); n > 0 && f.segs[n-1].lit != nil {
		f.segs[n-1].lit = append(f.segs[n-1].lit, b)
		return
	}
	f.segs = append(f.segs, segment{start: f.size, lit: []byte{b}})
}

// ReadAt implements io.ReaderAt.
func (f *SparseFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	for i := range p {
		pos := off + int64(i)
		if pos >= f.size {
			return i, io.EOF
		}
		p[i] = f.byteAt(pos)
	}
	return len(p), nil
}

func (f *SparseFile) byteAt(pos int64) byte {
	for {
		i := sort.Search(len(f.segs), func(i int) bool { return f.segs[i].end() > pos })
		seg := &f.segs[i]
		if seg.lit != nil {
			return seg.lit[pos-seg.start]
		}
		pos = seg.start - period + (pos-seg.start)%period
	}
}

// Truncate drops everything at or after size.
func (f *SparseFile) Truncate(size int64) {
	if size >= f.size {
		return
	}
	kept := f.segs[:0]
	for _, seg := range f.segs {
		if seg.start >= size {
			break
		}
		if seg.end() > size {
			if seg.lit != nil {
				seg.lit = seg.lit[:size-seg.start]
			} else {
				seg.repeat = size - seg.start
			}
		}
		kept = append(kept, seg)
	}
	f.segs = kept
	f.size = size
	// hist is only used for further writes, which truncated fixtures never do.
}
