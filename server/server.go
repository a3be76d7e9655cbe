package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Server is an anonymous, read-only FTP server.
//
// It accepts control connections and gives each one its own session. By
// default every session runs in its own goroutine; WithSequentialSessions
// serves them one after another instead.
//
// Lifecycle:
//  1. Create server with NewServer()
//  2. Start with ListenAndServe() or Serve()
//  3. Stop with Shutdown(), which closes the listener and every live
//     control and data connection
//
// Basic example:
//
//	driver, _ := server.NewFSDriver("/srv/ftp")
//	s, err := server.NewServer(":2121", server.WithDriver(driver))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(s.ListenAndServe())
type Server struct {
	// addr is the TCP address to listen on (e.g., ":2121").
	addr string

	// driver provides directory listings and file contents.
	driver Driver

	logger *slog.Logger

	// welcomeMessage is the text of the 220 greeting.
	welcomeMessage string

	// Timeouts for the suspension points of a session. Zero disables one.
	idleTimeout    time.Duration
	passiveTimeout time.Duration
	dialTimeout    time.Duration
	writeTimeout   time.Duration

	// maxConnections is the maximum number of simultaneous sessions.
	// If 0, there is no limit.
	maxConnections int

	// maxConnectionsPerIP is the maximum number of simultaneous sessions
	// from one client address. If 0, there is no limit.
	maxConnectionsPerIP int

	sequential    bool
	defaultRep    Representation
	listFormat    ListFormat
	strictPort    bool
	activeIPCheck bool

	// Passive mode addressing.
	publicHost      string
	pasvMinPort     int
	pasvMaxPort     int
	nextPassivePort atomic.Int32

	bandwidthLimit   int64
	metricsCollector MetricsCollector
	transferLog      io.Writer
	transferLogMu    sync.Mutex
	pathRedactor     PathRedactor
	redactIPs        bool

	// Shutdown handling. mu guards listener, conns, activeConns and
	// connsByIP.
	mu          sync.Mutex
	listener    net.Listener
	conns       map[net.Conn]struct{}
	activeConns int
	connsByIP   map[string]int
	sessions    sync.WaitGroup
	baseCtx     context.Context
	cancelBase  context.CancelFunc
	inShutdown  atomic.Bool
}

// NewServer creates a new FTP server with the given address and options.
// The address should be in the form ":port" or "host:port".
// The driver must be provided via the WithDriver option.
//
// Default values:
//   - Logger: slog.Default()
//   - Idle timeout: 5 minutes
//   - Passive accept timeout: 30 seconds
//   - PORT dial timeout: 10 seconds
//   - Representation: Binary
//   - LIST format: absolute paths
//   - Malformed PORT: ignored without a reply
func NewServer(addr string, options ...Option) (*Server, error) {
	s := &Server{
		addr:           addr,
		logger:         slog.Default(),
		welcomeMessage: msgWelcome,
		idleTimeout:    5 * time.Minute,
		passiveTimeout: 30 * time.Second,
		dialTimeout:    10 * time.Second,
		defaultRep:     Binary,
		listFormat:     ListFormatPaths,
		conns:          make(map[net.Conn]struct{}),
		connsByIP:      make(map[string]int),
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.driver == nil {
		return nil, fmt.Errorf("driver is required (use WithDriver option)")
	}

	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	return s, nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.Info("FTP server listening", "addr", ln.Addr().String())
	return s.Serve(ln)
}

// Serve accepts control connections on l until Shutdown is called or l
// fails permanently. It always returns a non-nil error; after Shutdown the
// error is ErrServerClosed.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.listener == l {
			s.listener = nil
		}
		s.mu.Unlock()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Error("accept error", "error", err)
			continue
		}

		if s.sequential {
			s.handleConnection(conn)
			continue
		}
		go s.handleConnection(conn)
	}
}

// Shutdown stops the server: the listener is closed, every session context
// is canceled and all control and data connections are closed. It then
// waits for the sessions to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.inShutdown.Store(true)
	s.cancelBase()
	ln := s.listener
	s.listener = nil
	conns := s.conns
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for conn := range maps.Keys(conns) {
		conn.Close()
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleConnection runs one control connection to completion.
func (s *Server) handleConnection(conn net.Conn) {
	ip := hostOnly(conn.RemoteAddr().String())
	if !s.admit(conn, ip) {
		return
	}
	defer s.release(conn, ip)

	if s.metricsCollector != nil {
		s.metricsCollector.RecordConnection(true, "accepted")
	}

	newSession(s, conn).serve()
}

// admit registers conn as a live session. The shutdown check, the limits
// and sessions.Add happen under s.mu, the same lock Shutdown takes before it
// waits. A rejected conn is answered and closed.
func (s *Server) admit(conn net.Conn, ip string) bool {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		conn.Close()
		return false
	}

	var reason, message string
	var limit int
	switch {
	case s.maxConnections > 0 && s.activeConns >= s.maxConnections:
		reason, message, limit = "global_limit_reached", msgTooManyUsers, s.maxConnections
	case s.maxConnectionsPerIP > 0 && s.connsByIP[ip] >= s.maxConnectionsPerIP:
		reason, message, limit = "per_ip_limit_reached", msgTooManyFromIP, s.maxConnectionsPerIP
	default:
		s.conns[conn] = struct{}{}
		s.activeConns++
		s.connsByIP[ip]++
		s.sessions.Add(1)
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	s.logger.Warn("connection_rejected",
		"remote_ip", s.redactIP(ip),
		"reason", reason,
		"limit", limit,
	)
	if s.metricsCollector != nil {
		s.metricsCollector.RecordConnection(false, reason)
	}
	fmt.Fprintf(conn, "%d %s\r\n", codeServiceDown, message)
	conn.Close()
	return false
}

// release undoes admit once the session has ended.
func (s *Server) release(conn net.Conn, ip string) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.activeConns--
	s.connsByIP[ip]--
	if s.connsByIP[ip] <= 0 {
		delete(s.connsByIP, ip)
	}
	s.mu.Unlock()
	s.sessions.Done()
}

// trackConnection adds or removes conn from the set closed by Shutdown.
// It returns false (and closes conn) if the server is shutting down.
func (s *Server) trackConnection(conn net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		if s.inShutdown.Load() {
			conn.Close()
			return false
		}
		s.conns[conn] = struct{}{}
		return true
	}
	delete(s.conns, conn)
	return true
}

// trackingConn wraps a data connection so Shutdown can close it.
type trackingConn struct {
	net.Conn
	server *Server
}

func (c *trackingConn) Close() error {
	c.server.trackConnection(c.Conn, false)
	return c.Conn.Close()
}

// redactPath applies the configured PathRedactor.
func (s *Server) redactPath(p string) string {
	if s.pathRedactor == nil || p == "" {
		return p
	}
	return s.pathRedactor(p)
}

// redactIP masks the last IPv4 octet or IPv6 group when enabled.
func (s *Server) redactIP(ip string) string {
	if !s.redactIPs || ip == "" {
		return ip
	}
	if i := strings.LastIndexByte(ip, '.'); i >= 0 {
		return ip[:i+1] + "xxx"
	}
	if i := strings.LastIndexByte(ip, ':'); i >= 0 {
		return ip[:i+1] + "xxx"
	}
	return ip
}

// hostOnly strips the port from a host:port address.
func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
