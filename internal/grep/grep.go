// Package grep runs the line pattern over candidate files and prints the
// matching lines.
package grep

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/standardbeagle/trigrep/internal/debug"
	tgerrors "github.com/standardbeagle/trigrep/internal/errors"
)

// Matcher decides whether a single line matches.
type Matcher interface {
	Match(line []byte) bool
}

// RegexpMatcher matches lines against a compiled regular expression.
type RegexpMatcher struct {
	re *regexp.Regexp
}

// NewRegexpMatcher compiles pattern. A compile failure is a query error so
// it is reported before any index is opened.
func NewRegexpMatcher(pattern string, ignoreCase bool) (*RegexpMatcher, error) {
	expr := pattern
	if ignoreCase {
		expr = "(?i)" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, tgerrors.NewQueryError(pattern, err)
	}
	return &RegexpMatcher{re: re}, nil
}

func (m *RegexpMatcher) Match(line []byte) bool {
	return m.re.Match(line)
}

// Options control what File prints.
type Options struct {
	// LineNumbers prefixes each match with its 1-based line number.
	LineNumbers bool
	// MaxCount stops after this many matching lines per file; zero means no
	// limit.
	MaxCount int
}

// Result reports what File did with one candidate.
type Result struct {
	Opened  bool
	Matches int
}

// File prints every line of path that m matches as filename:[line:]text.
// A file that cannot be read is skipped without error, since the index may
// name files that have since been removed. Only write failures are returned.
func File(path string, m Matcher, w io.Writer, opts Options) (Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		debug.LogSearch("skipping %s: %v\n", path, err)
		return Result{}, nil
	}
	return Content(path, content, m, w, opts)
}

// Content runs the matcher over content as if it were read from name.
func Content(name string, content []byte, m Matcher, w io.Writer, opts Options) (Result, error) {
	res := Result{Opened: true}
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}

	var num []byte
	scanner := NewLineScanner(content)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !m.Match(line) {
			continue
		}
		res.Matches++
		bw.WriteString(name)
		bw.WriteByte(':')
		if opts.LineNumbers {
			num = strconv.AppendInt(num[:0], int64(scanner.LineNumber()), 10)
			bw.Write(num)
			bw.WriteByte(':')
		}
		bw.Write(line)
		if err := bw.WriteByte('\n'); err != nil {
			return res, err
		}
		if opts.MaxCount > 0 && res.Matches >= opts.MaxCount {
			break
		}
	}
	if !ok {
		return res, bw.Flush()
	}
	return res, nil
}
