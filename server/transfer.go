package server

import (
	"errors"
	"io"
	"strings"
)

// Representation is the transfer encoding selected with TYPE.
type Representation int

const (
	// Binary forwards bytes verbatim (TYPE I and anything that is not A).
	Binary Representation = iota
	// Text re-terminates every line with CRLF (TYPE A).
	Text
)

// String returns the name used in replies ("ASCII" or "Binary").
func (r Representation) String() string {
	if r == Text {
		return "ASCII"
	}
	return "Binary"
}

// parseRepresentation maps a TYPE argument to a Representation.
func parseRepresentation(arg string) Representation {
	if strings.EqualFold(arg, "A") {
		return Text
	}
	return Binary
}

// binaryChunkSize is the read size for Binary transfers.
const binaryChunkSize = 0x40000

// sender is the part of a DataChannel the transfer engine writes to.
type sender interface {
	Send(p []byte) error
}

// sendStream transfers src over dst using rep and returns the number of
// bytes put on the wire. Any failure is a *TransferError.
func sendStream(dst sender, src io.Reader, rep Representation) (int64, error) {
	if rep == Text {
		return sendText(dst, src)
	}
	return sendBinary(dst, src)
}

// sendText sends src line by line, each line terminated with CRLF and sent
// as its own Send.
func sendText(dst sender, src io.Reader) (int64, error) {
	var sent int64
	var line []byte

	sc := newLineScanner(src)
	for sc.Scan() {
		line = append(line[:0], sc.Bytes()...)
		line = append(line, '\r', '\n')
		if err := dst.Send(line); err != nil {
			return sent, &TransferError{Side: "channel", Bytes: sent, Err: err}
		}
		sent += int64(len(line))
	}
	if err := sc.Err(); err != nil {
		return sent, &TransferError{Side: "source", Bytes: sent, Err: err}
	}
	return sent, nil
}

// sendBinary forwards src in binaryChunkSize pieces until a read yields no
// bytes.
func sendBinary(dst sender, src io.Reader) (int64, error) {
	var sent int64
	buf := make([]byte, binaryChunkSize)

	for {
		n, err := src.Read(buf)
		if n > 0 {
			if serr := dst.Send(buf[:n]); serr != nil {
				return sent, &TransferError{Side: "channel", Bytes: sent, Err: serr}
			}
			sent += int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sent, nil
			}
			return sent, &TransferError{Side: "source", Bytes: sent, Err: err}
		}
		if n == 0 {
			return sent, nil
		}
	}
}
