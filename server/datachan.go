package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// DataChannel is an established data connection, owned by one session and
// used for exactly one listing or file transfer.
type DataChannel interface {
	// Send writes p to the peer.
	Send(p []byte) error

	// Close tears the channel down. It is safe to call more than once.
	Close() error

	// Connected reports whether a peer connection is open.
	Connected() bool

	// Mode is "active" or "passive".
	Mode() string
}

// dataConn is the connected half shared by both channel kinds.
type dataConn struct {
	conn         net.Conn
	w            io.Writer
	writeTimeout time.Duration
}

func (d *dataConn) send(p []byte) error {
	if d.writeTimeout > 0 {
		_ = d.conn.SetWriteDeadline(time.Now().Add(d.writeTimeout))
	}
	_, err := d.w.Write(p)
	return err
}

// activeChannel is a connection the server dialed to a client-supplied
// address (PORT).
type activeChannel struct {
	out    *dataConn
	closed bool
}

func (c *activeChannel) Send(p []byte) error {
	if c.closed {
		return ErrNoDataChannel
	}
	return c.out.send(p)
}

func (c *activeChannel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return ignoreClosed(c.out.conn.Close())
}

func (c *activeChannel) Connected() bool { return !c.closed }

func (c *activeChannel) Mode() string { return "active" }

// passiveChannel is a listener on an ephemeral port (PASV) plus the single
// connection accepted on it.
type passiveChannel struct {
	ln     net.Listener
	in     *dataConn
	wrap   func(net.Conn) *dataConn
	closed bool
}

// Port returns the port the listener is bound to.
func (c *passiveChannel) Port() int {
	if addr, ok := c.ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	_, portStr, _ := net.SplitHostPort(c.ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return port
}

// accept waits for one inbound connection. It gives up when timeout elapses
// (zero waits forever) or ctx is canceled. The listener is closed once a
// connection arrives.
func (c *passiveChannel) accept(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		if t, ok := c.ln.(interface{ SetDeadline(time.Time) error }); ok {
			_ = t.SetDeadline(time.Now().Add(timeout))
		}
	}

	stop := context.AfterFunc(ctx, func() {
		c.ln.Close()
	})
	conn, err := c.ln.Accept()
	stop()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("passive accept: %w", err)
	}

	_ = c.ln.Close()
	c.in = c.wrap(conn)
	return nil
}

func (c *passiveChannel) Send(p []byte) error {
	if c.closed || c.in == nil {
		return ErrNoDataChannel
	}
	return c.in.send(p)
}

func (c *passiveChannel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var result *multierror.Error
	if err := ignoreClosed(c.ln.Close()); err != nil {
		result = multierror.Append(result, err)
	}
	if c.in != nil {
		if err := ignoreClosed(c.in.conn.Close()); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (c *passiveChannel) Connected() bool { return !c.closed && c.in != nil }

func (c *passiveChannel) Mode() string { return "passive" }

// ignoreClosed drops the error returned for closing something twice.
func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// portPattern finds the h1,h2,h3,h4,p1,p2 sextet anywhere in a PORT line.
var portPattern = regexp.MustCompile(`(\d{1,3},){5}\d{1,3}`)

// parsePortArg extracts the address a PORT command points at.
func parsePortArg(text string) (*net.TCPAddr, error) {
	m := portPattern.FindString(text)
	if m == "" {
		return nil, errMalformedPort
	}

	parts := strings.Split(m, ",")
	octets := make([]byte, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v > 255 {
			return nil, fmt.Errorf("%w: octet %q out of range", errMalformedPort, p)
		}
		octets[i] = byte(v)
	}

	ip := net.IPv4(octets[0], octets[1], octets[2], octets[3])
	port := int(octets[4])*256 + int(octets[5])
	return &net.TCPAddr{IP: ip, Port: port}, nil
}

// encodeHostPort renders ip and port as the PASV sextet. Addresses that have
// no IPv4 form are advertised as 0,0,0,0.
func encodeHostPort(ip net.IP, port int) string {
	v4 := ip.To4()
	if v4 == nil {
		v4 = net.IPv4zero.To4()
	}
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", v4[0], v4[1], v4[2], v4[3], port/256, port%256)
}
