// Package query holds trigram query trees and their evaluation.
//
// A tree is built from three node kinds: *Term leaves carrying one trigram,
// and binary *And / *Or nodes. Before each index chunk is scanned, Bind
// walks the tree and hands every term to a Binder, which attaches that
// chunk's posting list for the term's trigram. Next on the root then yields
// the chunk's matching document ids in strictly ascending order, ending with
// types.DocsEnd.
package query

import (
	"github.com/standardbeagle/trigrep/internal/types"
)

// Node is a query tree node. The set of implementations is closed.
type Node interface {
	// Next returns the next document id, or types.DocsEnd once exhausted.
	Next() types.DocID
	// reset clears merge state before the node is rebound to a new chunk.
	reset()
	sealed()
}

// Binder attaches per-chunk posting data to term nodes.
type Binder interface {
	BindTerm(t *Term) error
}

// Bind resets every node under n and binds its terms with b. Siblings are
// independent; the order of BindTerm calls carries no meaning.
func Bind(n Node, b Binder) error {
	n.reset()
	switch n := n.(type) {
	case *Term:
		return b.BindTerm(n)
	case *And:
		if err := Bind(n.Left, b); err != nil {
			return err
		}
		return Bind(n.Right, b)
	case *Or:
		if err := Bind(n.Left, b); err != nil {
			return err
		}
		return Bind(n.Right, b)
	}
	return nil
}

// Walk calls fn for every term under n, left to right.
func Walk(n Node, fn func(*Term)) {
	switch n := n.(type) {
	case *Term:
		fn(n)
	case *And:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Or:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	}
}

// Term is a leaf matching the documents that contain Trigram.
type Term struct {
	Trigram types.Trigram

	list []types.DocID
	cur  int
}

// NewTerm returns a term for t.
func NewTerm(t types.Trigram) *Term {
	return &Term{Trigram: t}
}

// Attach points the term at a posting list and rewinds its cursor. The list
// must be ascending and must not change while the term is being drained.
func (t *Term) Attach(list []types.DocID) {
	t.list = list
	t.cur = 0
}

func (t *Term) Next() types.DocID {
	if t.cur >= len(t.list) {
		return types.DocsEnd
	}
	d := t.list[t.cur]
	t.cur++
	return d
}

func (t *Term) reset() {
	t.list = nil
	t.cur = 0
}

func (*Term) sealed() {}

// emitter drops values that do not move strictly forward, so duplicate
// ids from either child come out once.
type emitter struct {
	last    types.DocID
	emitted bool
}

func (e *emitter) fresh(d types.DocID) bool {
	if e.emitted && d <= e.last {
		return false
	}
	e.last = d
	e.emitted = true
	return true
}

// And yields the intersection of its children.
type And struct {
	Left, Right Node

	out emitter
}

// NewAnd returns left AND right.
func NewAnd(left, right Node) *And {
	return &And{Left: left, Right: right}
}

func (n *And) Next() types.DocID {
	a := n.Left.Next()
	b := n.Right.Next()
	for {
		if a == types.DocsEnd || b == types.DocsEnd {
			return types.DocsEnd
		}
		switch {
		case a < b:
			a = n.Left.Next()
		case b < a:
			b = n.Right.Next()
		default:
			if n.out.fresh(a) {
				return a
			}
			a = n.Left.Next()
			b = n.Right.Next()
		}
	}
}

func (n *And) reset() {
	n.out = emitter{}
}

func (*And) sealed() {}

// Or yields the union of its children.
type Or struct {
	Left, Right Node

	primed bool
	lh, rh types.DocID
	out    emitter
}

// NewOr returns left OR right.
func NewOr(left, right Node) *Or {
	return &Or{Left: left, Right: right}
}

func (n *Or) Next() types.DocID {
	if !n.primed {
		n.lh = n.Left.Next()
		n.rh = n.Right.Next()
		n.primed = true
	}
	for {
		var d types.DocID
		switch {
		case n.lh == types.DocsEnd && n.rh == types.DocsEnd:
			return types.DocsEnd
		case n.lh < n.rh:
			d = n.lh
			n.lh = n.Left.Next()
		case n.rh < n.lh:
			d = n.rh
			n.rh = n.Right.Next()
		default:
			d = n.lh
			n.lh = n.Left.Next()
			n.rh = n.Right.Next()
		}
		if n.out.fresh(d) {
			return d
		}
	}
}

func (n *Or) reset() {
	n.primed = false
	n.lh, n.rh = 0, 0
	n.out = emitter{}
}

func (*Or) sealed() {}

// AndOf folds nodes into a left-deep AND chain. Nil entries are skipped;
// the result is nil when nothing remains.
func AndOf(nodes ...Node) Node {
	var out Node
	for _, n := range nodes {
		switch {
		case n == nil:
		case out == nil:
			out = n
		default:
			out = NewAnd(out, n)
		}
	}
	return out
}

// OrOf folds nodes into a left-deep OR chain. A nil entry means "matches
// anything", which makes the whole disjunction nil.
func OrOf(nodes ...Node) Node {
	var out Node
	for _, n := range nodes {
		if n == nil {
			return nil
		}
		if out == nil {
			out = n
		} else {
			out = NewOr(out, n)
		}
	}
	return out
}
