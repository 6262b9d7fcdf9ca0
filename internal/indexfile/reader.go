package indexfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/standardbeagle/trigrep/internal/codec"
	tgerrors "github.com/standardbeagle/trigrep/internal/errors"
	"github.com/standardbeagle/trigrep/internal/types"
)

// Reader is a typed view over a byte-addressable file. It is the only place
// that knows integer widths and byte order.
type Reader struct {
	r    io.ReaderAt
	name string
	buf  [8]byte
}

// NewReader wraps r. name ("index" or "data") labels format errors.
func NewReader(r io.ReaderAt, name string) *Reader {
	return &Reader{r: r, name: name}
}

// readFull reads exactly len(p) bytes at off. A short read reports
// io.ErrUnexpectedEOF; a read that finds nothing at all reports io.EOF.
func (r *Reader) readFull(p []byte, off int64) error {
	n, err := r.r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || (errors.Is(err, io.EOF) && n > 0) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Uint32At reads a little-endian uint32 at off.
func (r *Reader) Uint32At(off int64) (uint32, error) {
	if err := r.readFull(r.buf[:4], off); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.buf[:4]), nil
}

// OffsetAt reads a little-endian uint64 data-file offset at off.
func (r *Reader) OffsetAt(off int64) (types.Offset, error) {
	if err := r.readFull(r.buf[:8], off); err != nil {
		return 0, err
	}
	return types.Offset(binary.LittleEndian.Uint64(r.buf[:8])), nil
}

// BytesAt reads n bytes at off into a fresh slice.
func (r *Reader) BytesAt(off int64, n int) ([]byte, error) {
	p := make([]byte, n)
	if err := r.readFull(p, off); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Reader) formatError(op string, off int64, err error) *tgerrors.FormatError {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return tgerrors.NewFormatError(r.name, op, off, err)
}

// ReadHeader reads the index header.
func (r *Reader) ReadHeader() (Header, error) {
	comp, err := r.Uint32At(0)
	if err != nil {
		return Header{}, r.formatError("read compression id", 0, err)
	}
	count, err := r.Uint32At(4)
	if err != nil {
		return Header{}, r.formatError("read document count", 4, err)
	}
	return Header{Compression: codec.Compression(comp), DocCount: count}, nil
}

// ReadChunkMarker reads the chunk number at off. ok is false, with a nil
// error, when off is exactly the end of the file.
func (r *Reader) ReadChunkMarker(off int64) (number uint32, ok bool, err error) {
	number, err = r.Uint32At(off)
	switch {
	case err == nil:
		return number, true, nil
	case errors.Is(err, io.EOF):
		return 0, false, nil
	default:
		return 0, false, r.formatError("read chunk marker", off, err)
	}
}

// TrigramRange returns the data-file range of trigram t in the chunk whose
// table begins at tableBase.
func (r *Reader) TrigramRange(tableBase int64, t types.Trigram) (start, end types.Offset, err error) {
	off := TrigramEntryOffset(tableBase, t)
	if start, err = r.OffsetAt(off); err != nil {
		return 0, 0, r.formatError(fmt.Sprintf("read offset of trigram %s", t), off, err)
	}
	if end, err = r.OffsetAt(off + types.OffsetSize); err != nil {
		return 0, 0, r.formatError(fmt.Sprintf("read end offset of trigram %s", t), off+types.OffsetSize, err)
	}
	return start, end, nil
}

// ReadTrailer reads the trailer of the chunk whose table begins at tableBase.
// A chunk cut short anywhere in its table fails here.
func (r *Reader) ReadTrailer(tableBase int64) (types.Offset, error) {
	off := TrailerOffset(tableBase)
	end, err := r.OffsetAt(off)
	if err != nil {
		return 0, r.formatError("read chunk trailer", off, err)
	}
	return end, nil
}

// ReadDocOffset reads document id's entry in the document offset table.
func (r *Reader) ReadDocOffset(h Header, id types.DocID) (types.Offset, error) {
	if uint32(id) >= h.DocCount {
		return 0, r.formatError("resolve document", h.DocEntryOffset(id),
			fmt.Errorf("document id %d out of range (index holds %d documents)", id, h.DocCount))
	}
	off := h.DocEntryOffset(id)
	v, err := r.OffsetAt(off)
	if err != nil {
		return 0, r.formatError(fmt.Sprintf("read offset of document %d", id), off, err)
	}
	return v, nil
}

// ReadPayload reads the posting payload in [start, end). The range is
// checked against MaxPayloadLength and the end of the file before anything
// is allocated for it.
func (r *Reader) ReadPayload(start, end types.Offset) ([]byte, error) {
	if end <= start || end-start > MaxPayloadLength || end > math.MaxInt64 {
		return nil, r.formatError("read posting payload", int64(min(start, math.MaxInt64)),
			fmt.Errorf("posting range [%d, %d) is not a valid payload (limit %d bytes)", start, end, MaxPayloadLength))
	}
	if err := r.readFull(r.buf[:1], int64(end)-1); err != nil {
		return nil, r.formatError("read posting payload", int64(end)-1, err)
	}
	p, err := r.BytesAt(int64(start), int(end-start))
	if err != nil {
		return nil, r.formatError("read posting payload", int64(start), err)
	}
	return p, nil
}

// ReadFilename reads the length-prefixed filename record at off.
func (r *Reader) ReadFilename(off types.Offset) (string, error) {
	size, err := r.OffsetAt(int64(off))
	if err != nil {
		return "", r.formatError("read filename length", int64(off), err)
	}
	if size > MaxFilenameLength {
		return "", r.formatError("read filename length", int64(off),
			fmt.Errorf("filename length %d exceeds %d", size, MaxFilenameLength))
	}
	name, err := r.BytesAt(int64(off)+types.OffsetSize, int(size))
	if err != nil {
		return "", r.formatError("read filename", int64(off)+types.OffsetSize, err)
	}
	return string(name), nil
}
