package search

import (
	"errors"
	"fmt"

	"github.com/standardbeagle/trigrep/internal/codec"
	tgerrors "github.com/standardbeagle/trigrep/internal/errors"
	"github.com/standardbeagle/trigrep/internal/indexfile"
	"github.com/standardbeagle/trigrep/internal/query"
	"github.com/standardbeagle/trigrep/internal/types"
)

// cacheEntry holds one trigram's decode state. list and loaded live for one
// chunk and are cleared at every chunk boundary. runningBase lives for the
// whole scan: it is the last document this trigram contributed in any
// chunk so far, and the first delta of the next chunk's list is relative
// to it.
type cacheEntry struct {
	list        []types.DocID
	loaded      bool
	runningBase types.DocID
}

// chunkCache binds query terms to the current chunk's posting lists. Each
// (trigram, chunk) pair is read and decoded at most once no matter how many
// terms carry the trigram.
type chunkCache struct {
	idx      *indexfile.Reader
	dat      *indexfile.Reader
	codec    codec.Codec
	docCount uint32

	entries map[types.Trigram]*cacheEntry

	chunk     uint32
	tableBase int64

	scratch []uint32
	decodes int
}

func newChunkCache(idx, dat *indexfile.Reader, cd codec.Codec, docCount uint32) *chunkCache {
	return &chunkCache{
		idx:      idx,
		dat:      dat,
		codec:    cd,
		docCount: docCount,
		entries:  make(map[types.Trigram]*cacheEntry),
	}
}

// startChunk points the cache at the chunk whose trigram table begins at
// tableBase.
func (c *chunkCache) startChunk(number uint32, tableBase int64) {
	c.chunk = number
	c.tableBase = tableBase
}

// endChunk drops every decoded list. Running bases survive.
func (c *chunkCache) endChunk() {
	for _, e := range c.entries {
		e.list = nil
		e.loaded = false
	}
}

// BindTerm implements query.Binder.
func (c *chunkCache) BindTerm(t *query.Term) error {
	if !t.Trigram.Valid() {
		return fmt.Errorf("trigram %d out of range", uint32(t.Trigram))
	}
	e, ok := c.entries[t.Trigram]
	if !ok {
		e = &cacheEntry{}
		c.entries[t.Trigram] = e
	}
	if !e.loaded {
		if err := c.load(t.Trigram, e); err != nil {
			return withChunk(err, c.chunk)
		}
	}
	t.Attach(e.list)
	return nil
}

func (c *chunkCache) load(tri types.Trigram, e *cacheEntry) error {
	e.loaded = true

	start, end, err := c.idx.TrigramRange(c.tableBase, tri)
	if err != nil {
		return err
	}
	if end <= start {
		return nil
	}

	payload, err := c.dat.ReadPayload(start, end)
	if err != nil {
		return err
	}
	c.scratch, err = c.codec.Decode(payload, c.scratch[:0])
	if err != nil {
		return tgerrors.NewFormatError("data", fmt.Sprintf("decode postings of trigram %s", tri), int64(start), err)
	}
	c.decodes++
	if len(c.scratch) == 0 {
		return nil
	}

	list := make([]types.DocID, len(c.scratch))
	cur := uint64(e.runningBase)
	for i, d := range c.scratch {
		cur += uint64(d)
		if cur >= uint64(c.docCount) {
			return tgerrors.NewFormatError("data", fmt.Sprintf("decode postings of trigram %s", tri), int64(start),
				fmt.Errorf("document id %d out of range (index holds %d documents)", cur, c.docCount))
		}
		list[i] = types.DocID(cur)
	}
	e.list = list
	e.runningBase = list[len(list)-1]
	return nil
}

// withChunk stamps the chunk number on a format error.
func withChunk(err error, chunk uint32) error {
	var fe *tgerrors.FormatError
	if errors.As(err, &fe) {
		fe.WithChunk(int64(chunk))
	}
	return err
}
