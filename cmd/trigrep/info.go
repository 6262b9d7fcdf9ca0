package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/standardbeagle/trigrep/internal/indexfile"
	"github.com/standardbeagle/trigrep/internal/types"

	"github.com/urfave/cli/v2"
)

func infoCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: trigrep info <index>")
	}
	f, err := indexfile.Open(c.Args().First(), 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return describeIndex(indexfile.NewReader(f, "index"), c.App.Writer)
}

// describeIndex prints the header and walks the chunk markers. Each chunk's
// trailer is read so a truncated index is reported.
func describeIndex(r *indexfile.Reader, w io.Writer) error {
	h, err := r.ReadHeader()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "compression: %s\n", h.Compression)
	fmt.Fprintf(w, "documents:   %d\n", h.DocCount)

	var chunks []uint32
	pos := h.FirstChunkOffset()
	for {
		number, ok, err := r.ReadChunkMarker(pos)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		tableBase := pos + types.ChunkMarkerSize
		if _, err := r.ReadTrailer(tableBase); err != nil {
			return err
		}
		chunks = append(chunks, number)
		pos = indexfile.NextChunkOffset(tableBase)
	}

	fmt.Fprintf(w, "chunks:      %d\n", len(chunks))
	for _, n := range chunks {
		fmt.Fprintf(w, "  chunk %d\n", n)
	}
	return nil
}
