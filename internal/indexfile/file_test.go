package indexfile_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tgerrors "github.com/standardbeagle/trigrep/internal/errors"
	"github.com/standardbeagle/trigrep/internal/indexfile"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestFile_ReadAt(t *testing.T) {
	content := "0123456789abcdefghij"
	p := writeFile(t, content)

	for _, bufSize := range []int64{0, 1, 4, 7, 64} {
		f, err := indexfile.Open(p, bufSize)
		require.NoError(t, err)

		tests := []struct {
			off  int64
			n    int
			want string
			eof  bool
		}{
			{0, 4, "0123", false},
			{2, 4, "2345", false},
			{12, 8, "cdefghij", false},
			{1, 3, "123", false},
			{18, 4, "ij", true},
			{20, 4, "", true},
			{25, 1, "", true},
		}
		for _, tt := range tests {
			buf := make([]byte, tt.n)
			n, err := f.ReadAt(buf, tt.off)
			assert.Equal(t, tt.want, string(buf[:n]), "buf %d off %d", bufSize, tt.off)
			if tt.eof {
				assert.ErrorIs(t, err, io.EOF, "buf %d off %d", bufSize, tt.off)
			} else {
				assert.NoError(t, err, "buf %d off %d", bufSize, tt.off)
			}
		}
		require.NoError(t, f.Close())
	}
}

func TestFile_OpenMissing(t *testing.T) {
	_, err := indexfile.Open(filepath.Join(t.TempDir(), "nope"), 16)
	var fe *tgerrors.FileError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFile_ServesReader(t *testing.T) {
	p := writeFile(t, "\x02\x00\x00\x00\x05\x00\x00\x00")
	f, err := indexfile.Open(p, 4)
	require.NoError(t, err)
	defer f.Close()

	h, err := indexfile.NewReader(f, "index").ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), uint32(h.Compression))
	assert.Equal(t, uint32(5), h.DocCount)
}
