package server

import (
	"errors"
	"fmt"
)

var (
	// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown.
	ErrServerClosed = errors.New("ftp: Server closed")

	// ErrNoDataChannel is returned when a transfer is attempted before PASV
	// or PORT established a data channel.
	ErrNoDataChannel = errors.New("no data channel established")

	// errMalformedPort means the PORT text carried no h1,h2,h3,h4,p1,p2 sextet.
	errMalformedPort = errors.New("malformed PORT argument")

	errLineTooLong = errors.New("command too long")
)

// TransferError reports a failure in the middle of a listing or file
// transfer. Side is "source" when reading the listing or file failed and
// "channel" when sending on the data channel failed.
type TransferError struct {
	Side  string
	Bytes int64
	Err   error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed on %s after %d bytes: %v", e.Side, e.Bytes, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
