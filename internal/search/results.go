package search

import (
	"fmt"

	"github.com/standardbeagle/trigrep/internal/types"
)

// results accumulates accepted documents as deltas between consecutive ids
// across the entire scan. The previous id is never reset between chunks.
type results struct {
	deltas []types.DocID
	last   types.DocID
}

// add appends id, which must be greater than every id added before.
func (r *results) add(id types.DocID) error {
	if len(r.deltas) > 0 && id <= r.last {
		return fmt.Errorf("document %d found after document %d", id, r.last)
	}
	r.deltas = append(r.deltas, id-r.last)
	r.last = id
	return nil
}

func (r *results) len() int {
	return len(r.deltas)
}

// ids reverses the delta encoding.
func (r *results) ids() []types.DocID {
	out := make([]types.DocID, len(r.deltas))
	var cur types.DocID
	for i, d := range r.deltas {
		cur += d
		out[i] = cur
	}
	return out
}
