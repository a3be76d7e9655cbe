package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func fatalIfErr(t *testing.T, err error, format string, args ...interface{}) {
	t.Helper()
	if err != nil {
		t.Fatalf(format+": %v", append(args, err)...)
	}
}

// testServer is a Server listening on a loopback port for one test.
type testServer struct {
	srv  *Server
	addr string
	root string
	done chan error
}

// startServer serves root on 127.0.0.1 until the test ends.
func startServer(t *testing.T, root string, opts ...Option) *testServer {
	t.Helper()

	driver, err := NewFSDriver(root)
	fatalIfErr(t, err, "NewFSDriver")
	t.Cleanup(func() { driver.Close() })

	ts := startServerWithDriver(t, driver, opts...)
	ts.root = root
	return ts
}

// startServerWithDriver serves driver on 127.0.0.1 until the test ends.
func startServerWithDriver(t *testing.T, driver Driver, opts ...Option) *testServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	fatalIfErr(t, err, "listen")

	base := []Option{
		WithDriver(driver),
		WithLogger(slog.New(slog.DiscardHandler)),
	}
	srv, err := NewServer(ln.Addr().String(), append(base, opts...)...)
	if err != nil {
		ln.Close()
		t.Fatalf("NewServer: %v", err)
	}

	ts := &testServer{srv: srv, addr: ln.Addr().String(), done: make(chan error, 1)}
	go func() {
		ts.done <- srv.Serve(ln)
	}()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Logf("Shutdown: %v", err)
		}
		<-ts.done
	})
	return ts
}

// writeFiles creates name -> content files below dir.
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		fatalIfErr(t, os.MkdirAll(filepath.Dir(p), 0755), "mkdir for %s", name)
		fatalIfErr(t, os.WriteFile(p, []byte(content), 0644), "write %s", name)
	}
}

// response is one control channel reply.
type response struct {
	Code    int
	Message string
}

func (r response) String() string {
	return fmt.Sprintf("%d %s", r.Code, r.Message)
}

// ctrlConn is a raw control connection that shows every reply, including
// the ones an FTP client library would hide.
type ctrlConn struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialCtrl(t *testing.T, addr string) *ctrlConn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	fatalIfErr(t, err, "dial control")
	t.Cleanup(func() { conn.Close() })
	return &ctrlConn{t: t, conn: conn, r: bufio.NewReader(conn)}
}

// dialLoggedIn connects, checks the greeting and logs in.
func dialLoggedIn(t *testing.T, addr string) *ctrlConn {
	t.Helper()
	c := dialCtrl(t, addr)
	c.expect(220)
	c.login()
	return c
}

func (c *ctrlConn) send(line string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := io.WriteString(c.conn, line+"\r\n")
	fatalIfErr(c.t, err, "send %q", line)
}

// readResponse reads a single-line reply.
func (c *ctrlConn) readResponse(timeout time.Duration) (response, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := c.r.ReadString('\n')
	if err != nil {
		return response{}, err
	}
	if !strings.HasSuffix(line, "\r\n") {
		return response{}, fmt.Errorf("reply not CRLF terminated: %q", line)
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 4 || line[3] != ' ' {
		return response{}, fmt.Errorf("invalid response line: %q", line)
	}
	code, err := strconv.Atoi(line[0:3])
	if err != nil {
		return response{}, fmt.Errorf("invalid response code: %q", line[0:3])
	}
	return response{Code: code, Message: line[4:]}, nil
}

func (c *ctrlConn) read() response {
	c.t.Helper()
	resp, err := c.readResponse(5 * time.Second)
	fatalIfErr(c.t, err, "read reply")
	return resp
}

// expect reads a reply and fails the test unless it carries code.
func (c *ctrlConn) expect(code int) response {
	c.t.Helper()
	resp := c.read()
	if resp.Code != code {
		c.t.Fatalf("expected %d, got %s", code, resp)
	}
	return resp
}

// expectReply reads a reply and compares code and message.
func (c *ctrlConn) expectReply(code int, message string) {
	c.t.Helper()
	resp := c.read()
	if resp.Code != code || resp.Message != message {
		c.t.Fatalf("expected %q, got %q", fmt.Sprintf("%d %s", code, message), resp.String())
	}
}

// cmd sends line and expects code.
func (c *ctrlConn) cmd(line string, code int) response {
	c.t.Helper()
	c.send(line)
	return c.expect(code)
}

func (c *ctrlConn) login() {
	c.t.Helper()
	c.cmd("USER anonymous", 331)
	c.cmd("PASS guest@example.com", 230)
}

// expectClosed waits for the server to close the control connection.
func (c *ctrlConn) expectClosed() {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.r.ReadByte(); err == nil {
		c.t.Fatal("expected control connection to be closed")
	} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
		c.t.Fatal("control connection still open")
	}
}

// parsePasv extracts the address from a 227 message.
func parsePasv(t *testing.T, msg string) string {
	t.Helper()
	start := strings.Index(msg, "(")
	end := strings.LastIndex(msg, ")")
	if start < 0 || end < start {
		t.Fatalf("invalid PASV message: %q", msg)
	}
	addr, err := parsePortArg(msg[start+1 : end])
	fatalIfErr(t, err, "parse PASV sextet %q", msg)
	return addr.String()
}

// pasv negotiates passive mode and returns the connected data socket.
func (c *ctrlConn) pasv() net.Conn {
	c.t.Helper()
	resp := c.cmd("PASV", 227)
	data, err := net.DialTimeout("tcp", parsePasv(c.t, resp.Message), 5*time.Second)
	fatalIfErr(c.t, err, "dial passive address")
	c.t.Cleanup(func() { data.Close() })
	return data
}

// readAll drains a data connection until the server closes it.
func readAll(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	data, err := io.ReadAll(conn)
	fatalIfErr(t, err, "read data channel")
	return data
}

// syncBuffer is a bytes.Buffer safe for use from the session goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
