package indexfile

import (
	"errors"
	"io"
	"os"

	tgerrors "github.com/standardbeagle/trigrep/internal/errors"
)

// File is an open index or data file whose small reads are served from a
// single read-ahead window. The scan reads mostly forward, in 4 and 8 byte
// steps, so one window absorbs nearly all of them.
//
// A File is not safe for concurrent use.
type File struct {
	f      *os.File
	window []byte
	winOff int64
	winLen int
}

// Open opens path for reading with a window of bufSize bytes. A bufSize of
// zero or less disables buffering.
func Open(path string, bufSize int64) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tgerrors.NewFileError("open", path, err)
	}
	file := &File{f: f}
	if bufSize > 0 {
		file.window = make([]byte, bufSize)
	}
	return file, nil
}

// Name returns the path the file was opened with.
func (f *File) Name() string {
	return f.f.Name()
}

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if len(p) > len(f.window) {
		return f.f.ReadAt(p, off)
	}
	if off < f.winOff || off+int64(len(p)) > f.winOff+int64(f.winLen) {
		if err := f.fill(off); err != nil {
			return 0, err
		}
	}
	n := copy(p, f.window[off-f.winOff:f.winLen])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *File) fill(off int64) error {
	n, err := f.f.ReadAt(f.window, off)
	if err != nil && !errors.Is(err, io.EOF) {
		f.winLen = 0
		return err
	}
	f.winOff, f.winLen = off, n
	return nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}
