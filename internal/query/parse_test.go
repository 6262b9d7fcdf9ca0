package query

import (
	"errors"
	"regexp"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tgerrors "github.com/standardbeagle/trigrep/internal/errors"
	"github.com/standardbeagle/trigrep/internal/types"
)

func TestParse_Shapes(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"hello", `(("hel" AND "ell") AND "llo")`},
		{"foo|bar", `("foo" OR "bar")`},
		{"foo.*bar", `("foo" AND "bar")`},
		{"(abc)+", `"abc"`},
		{"^abc$", `"abc"`},
		{"abcabc", `(("abc" AND "bca") AND "cab")`},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			n, err := Parse(tt.pattern, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, String(n))
		})
	}
}

func TestConcat_ExactSets(t *testing.T) {
	got := concat(info{exact: []string{"ab"}}, info{exact: []string{"c", "d"}})
	assert.ElementsMatch(t, []string{"abc", "abd"}, got.exact)
	assert.Nil(t, got.match)

	// a side that has already settled forces the query form
	settled := settle(info{exact: []string{"xyz"}})
	got = concat(settled, info{exact: []string{"abc"}})
	assert.Nil(t, got.exact)
	assert.Equal(t, `("xyz" AND "abc")`, String(got.match))
}

func TestParse_NoTrigrams(t *testing.T) {
	for _, p := range []string{"ab", "a.*b", ".*", "x*yz", "(abc)?"} {
		_, err := Parse(p, false)
		var qe *tgerrors.QueryError
		require.True(t, errors.As(err, &qe), "pattern %q", p)
		assert.Equal(t, p, qe.Pattern)
	}
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse("abc(", false)
	var qe *tgerrors.QueryError
	assert.True(t, errors.As(err, &qe))
}

func terms(n Node) []string {
	var out []string
	seen := map[types.Trigram]bool{}
	Walk(n, func(t *Term) {
		if !seen[t.Trigram] {
			seen[t.Trigram] = true
			b := t.Trigram.Bytes()
			out = append(out, string(b[:]))
		}
	})
	sort.Strings(out)
	return out
}

func TestParse_CharClass(t *testing.T) {
	n, err := Parse("[ab]cde", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"acd", "bcd", "cde"}, terms(n))
}

func TestParse_IgnoreCase(t *testing.T) {
	n, err := Parse("abc", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC", "ABc", "AbC", "Abc", "aBC", "aBc", "abC", "abc"}, terms(n))
}

// postings is the posting view of a tiny corpus.
func postings(docs []string) mapBinder {
	m := mapBinder{}
	for id, text := range docs {
		seen := map[types.Trigram]bool{}
		for i := 0; i+3 <= len(text); i++ {
			tri := types.NewTrigram(text[i], text[i+1], text[i+2])
			if !seen[tri] {
				seen[tri] = true
				m[tri] = append(m[tri], types.DocID(id))
			}
		}
	}
	return m
}

func TestParse_NeverDropsAMatch(t *testing.T) {
	docs := []string{
		"func main() {}",
		"hello world",
		"HELLO WORLD",
		"the quick brown fox",
		"foobar and bazqux",
		"fooXbar",
		"abcabcabc",
		"nothing to see",
		"Hello, World",
	}
	patterns := []string{
		"hello", "world|fox", "foo.*bar", "qu[ia]ck", "(abc)+", "fo+bar",
		"b[aeiou]zqux", "main\\(\\)", "see$", "wor(ld|se)", "abca{2,}|brown",
	}
	lists := postings(docs)
	for _, ignoreCase := range []bool{false, true} {
		for _, p := range patterns {
			n, err := Parse(p, ignoreCase)
			require.NoError(t, err, p)
			require.NoError(t, Bind(n, lists))
			candidates := map[types.DocID]bool{}
			for _, d := range drain(n) {
				candidates[d] = true
			}

			expr := p
			if ignoreCase {
				expr = "(?i)" + p
			}
			re := regexp.MustCompile(expr)
			for id, text := range docs {
				if re.MatchString(text) {
					assert.True(t, candidates[types.DocID(id)], "pattern %q ignoreCase=%v missed %q", p, ignoreCase, text)
				}
			}
		}
	}
}
