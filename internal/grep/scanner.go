package grep

import (
	"bytes"
)

// LineScanner iterates the lines of an in-memory file without allocating.
//
// Usage:
//
//	scanner := NewLineScanner(content)
//	for scanner.Scan() {
//	    line := scanner.Bytes()         // view into content
//	    lineNum := scanner.LineNumber() // 1-based
//	}
type LineScanner struct {
	data    []byte
	start   int // Start of current line
	end     int // End of current line, before the newline
	pos     int // Next unread byte
	lineNum int
	done    bool
}

// NewLineScanner creates a scanner over data. Trailing \n and \r\n are
// stripped from each line.
func NewLineScanner(data []byte) *LineScanner {
	return &LineScanner{data: data}
}

// Scan advances to the next line. Returns false when done.
func (ls *LineScanner) Scan() bool {
	if ls.done || ls.pos >= len(ls.data) {
		ls.done = true
		return false
	}

	ls.start = ls.pos
	ls.lineNum++

	idx := bytes.IndexByte(ls.data[ls.pos:], '\n')
	if idx < 0 {
		ls.end = len(ls.data)
		ls.pos = len(ls.data)
	} else {
		ls.end = ls.pos + idx
		ls.pos = ls.end + 1
	}

	if ls.end > ls.start && ls.data[ls.end-1] == '\r' {
		ls.end--
	}
	return true
}

// Bytes returns the current line. The slice shares memory with the input.
func (ls *LineScanner) Bytes() []byte {
	return ls.data[ls.start:ls.end]
}

// LineNumber returns the current line number (1-based).
func (ls *LineScanner) LineNumber() int {
	return ls.lineNum
}
