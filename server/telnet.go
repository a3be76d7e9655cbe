package server

import (
	"bufio"
	"io"
)

// Telnet command bytes a client may interleave with control-channel text.
const (
	telnetIAC  = 0xFF
	telnetWILL = 0xFB
	telnetWONT = 0xFC
	telnetDO   = 0xFD
	telnetDONT = 0xFE
)

// telnetReader strips Telnet negotiation from the control channel so the
// line parser only ever sees command text. IAC IAC yields a literal 0xFF.
type telnetReader struct {
	reader *bufio.Reader
}

func newTelnetReader(r io.Reader) *telnetReader {
	return &telnetReader{reader: bufio.NewReader(r)}
}

func (t *telnetReader) Read(p []byte) (n int, err error) {
	for n < len(p) {
		// Never block for more input once something is ready to return.
		if n > 0 && t.reader.Buffered() == 0 {
			return n, nil
		}

		b, err := t.reader.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		if b != telnetIAC {
			p[n] = b
			n++
			continue
		}

		cmd, err := t.reader.ReadByte()
		if err != nil {
			return n, err
		}
		switch cmd {
		case telnetIAC:
			p[n] = telnetIAC
			n++
		case telnetWILL, telnetWONT, telnetDO, telnetDONT:
			// Three byte sequence: drop the option byte too.
			if _, err := t.reader.ReadByte(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// lineReader reads CR/LF terminated control lines through a telnetReader.
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(newTelnetReader(r))}
}

// readLine returns the next line without its LF. The line is limited to
// MaxCommandLength bytes; longer input fails with errLineTooLong. A final
// unterminated line before EOF is still returned; EOF follows on the next call.
func (lr *lineReader) readLine() (string, error) {
	var line []byte
	for {
		b, err := lr.r.ReadByte()
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return string(line), nil
			}
			return "", err
		}
		if b == '\n' {
			return string(line), nil
		}
		if len(line) >= MaxCommandLength {
			return "", errLineTooLong
		}
		line = append(line, b)
	}
}
