package query

import (
	"errors"
	"regexp/syntax"
	"unicode"
	"unicode/utf8"

	tgerrors "github.com/standardbeagle/trigrep/internal/errors"
	"github.com/standardbeagle/trigrep/internal/types"
)

const (
	// maxExact caps the exact string sets carried through concatenation.
	maxExact = 64
	// maxClass caps how many runes a character class may expand to.
	maxClass = 8
)

var errNoTrigrams = errors.New("pattern has no trigram to search the index with")

// info describes what a regexp fragment can match. exact, when non-nil, is
// the complete set of strings it matches. match is a query every matching
// document satisfies; nil matches anything. At most one of the two is set.
type info struct {
	exact []string
	match Node
}

// Parse compiles a regular expression into a trigram query. The query is a
// necessary condition: every file containing a match satisfies it. Patterns
// that yield no trigram at all are rejected.
func Parse(pattern string, ignoreCase bool) (Node, error) {
	flags := syntax.Perl
	if ignoreCase {
		flags |= syntax.FoldCase
	}
	re, err := syntax.Parse(pattern, flags)
	if err != nil {
		return nil, tgerrors.NewQueryError(pattern, err)
	}
	in := analyze(re.Simplify())
	n := AndOf(in.match, exactQuery(in.exact))
	if n == nil {
		return nil, tgerrors.NewQueryError(pattern, errNoTrigrams)
	}
	return n, nil
}

// Literal builds the AND of every trigram in s, or nil when s is shorter
// than a trigram.
func Literal(s string) Node {
	var nodes []Node
	seen := make(map[types.Trigram]bool)
	for i := 0; i+3 <= len(s); i++ {
		t := types.NewTrigram(s[i], s[i+1], s[i+2])
		if seen[t] {
			continue
		}
		seen[t] = true
		nodes = append(nodes, NewTerm(t))
	}
	return AndOf(nodes...)
}

func exactQuery(exact []string) Node {
	if exact == nil {
		return nil
	}
	nodes := make([]Node, len(exact))
	for i, s := range exact {
		nodes[i] = Literal(s)
	}
	return OrOf(nodes...)
}

func anything() info {
	return info{}
}

func emptyString() info {
	return info{exact: []string{""}}
}

func analyze(re *syntax.Regexp) info {
	switch re.Op {
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return emptyString()

	case syntax.OpLiteral:
		out := emptyString()
		fold := re.Flags&syntax.FoldCase != 0
		for _, r := range re.Rune {
			out = concat(out, runeSet(r, fold))
		}
		return out

	case syntax.OpCharClass:
		return classSet(re.Rune)

	case syntax.OpCapture:
		return analyze(re.Sub[0])

	case syntax.OpPlus:
		return info{match: settle(analyze(re.Sub[0])).match}

	case syntax.OpQuest:
		sub := analyze(re.Sub[0])
		if sub.exact == nil {
			return anything()
		}
		return info{exact: union(sub.exact, []string{""})}

	case syntax.OpRepeat:
		if re.Min == 0 {
			return anything()
		}
		return info{match: settle(analyze(re.Sub[0])).match}

	case syntax.OpConcat:
		out := emptyString()
		for _, sub := range re.Sub {
			out = concat(out, analyze(sub))
		}
		return out

	case syntax.OpAlternate:
		subs := make([]info, len(re.Sub))
		allExact := true
		for i, sub := range re.Sub {
			subs[i] = analyze(sub)
			allExact = allExact && subs[i].exact != nil
		}
		if allExact {
			var exact []string
			for _, s := range subs {
				exact = union(exact, s.exact)
			}
			if len(exact) <= maxExact {
				return info{exact: exact}
			}
		}
		nodes := make([]Node, len(subs))
		for i, s := range subs {
			nodes[i] = settle(s).match
		}
		return info{match: OrOf(nodes...)}
	}
	// any char, star, and the rest constrain nothing
	return anything()
}

// settle turns an exact set into its query form.
func settle(in info) info {
	if in.exact == nil {
		return in
	}
	return info{match: exactQuery(in.exact)}
}

// concat joins two fragments. Exact sets are crossed while they stay small;
// past that both sides settle into queries and are ANDed.
func concat(a, b info) info {
	if a.exact != nil && b.exact != nil && len(a.exact)*len(b.exact) <= maxExact {
		exact := make([]string, 0, len(a.exact)*len(b.exact))
		for _, x := range a.exact {
			for _, y := range b.exact {
				exact = append(exact, x+y)
			}
		}
		return info{exact: dedupe(exact)}
	}
	return info{match: AndOf(settle(a).match, settle(b).match)}
}

func runeSet(r rune, fold bool) info {
	if !fold {
		return info{exact: []string{string(r)}}
	}
	exact := []string{string(r)}
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		exact = append(exact, string(f))
	}
	return info{exact: exact}
}

func classSet(ranges []rune) info {
	n := 0
	for i := 0; i+1 < len(ranges); i += 2 {
		n += int(ranges[i+1]-ranges[i]) + 1
		if n > maxClass {
			return anything()
		}
	}
	var exact []string
	for i := 0; i+1 < len(ranges); i += 2 {
		for r := ranges[i]; r <= ranges[i+1]; r++ {
			if !utf8.ValidRune(r) {
				return anything()
			}
			exact = append(exact, string(r))
		}
	}
	if len(exact) == 0 {
		return anything()
	}
	return info{exact: exact}
}

func union(a, b []string) []string {
	return dedupe(append(append([]string(nil), a...), b...))
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
