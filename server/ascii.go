package server

import (
	"bufio"
	"bytes"
	"io"
)

// maxTextLine bounds a single line in Text representation. Longer lines fail
// the transfer instead of growing the buffer without limit.
const maxTextLine = 16 << 20

// scanLines is a bufio.SplitFunc that ends a line at LF, CRLF or a lone CR.
// The terminator is dropped, and a final unterminated line is still returned.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		// A CR needs one byte of lookahead to tell CRLF from a lone CR.
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		return 0, nil, nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// newLineScanner returns a scanner yielding the lines of r with their native
// terminators stripped.
func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxTextLine)
	sc.Split(scanLines)
	return sc
}
