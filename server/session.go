package server

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/gonzalop/anonftp/internal/ratelimit"
	"github.com/hashicorp/go-multierror"
)

type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAwaitingPassword
	stateAuthenticated
)

// session is the state of one control connection.
//
// Commands are handled strictly in order on the goroutine that calls serve;
// a transfer blocks the loop until it finishes. Nothing here is shared with
// other sessions except through the Server.
type session struct {
	server *Server
	ctx    context.Context
	cancel context.CancelFunc

	conn   net.Conn
	reader *lineReader
	writer *bufio.Writer
	broken bool // a control write failed

	// Session tracking
	sessionID string
	remoteIP  string
	started   time.Time

	// State
	state sessionState
	user  string
	cwd   string
	rep   Representation
	data  DataChannel

	limiter  *ratelimit.Limiter
	lastCode int

	// Cache for PASV address resolution
	resolvedIP net.IP
}

// commandHandlers maps authenticated commands to their handlers.
// USER, QUIT and the password line are handled in dispatch.
var commandHandlers = map[string]func(*session, Command){
	"PASS": (*session).handlePASS,
	"CWD":  (*session).handleCWD,
	"LIST": (*session).handleLIST,
	"RETR": (*session).handleRETR,
	"TYPE": (*session).handleTYPE,
	"PASV": (*session).handlePASV,
	"PORT": (*session).handlePORT,
}

// generateSessionID generates a unique 8-character session ID.
func generateSessionID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%08x", b)
}

func newSession(server *Server, conn net.Conn) *session {
	ctx, cancel := context.WithCancel(server.baseCtx)
	return &session{
		server:    server,
		ctx:       ctx,
		cancel:    cancel,
		conn:      conn,
		reader:    newLineReader(conn),
		writer:    bufio.NewWriter(conn),
		sessionID: generateSessionID(),
		remoteIP:  hostOnly(conn.RemoteAddr().String()),
		started:   time.Now(),
		cwd:       "/",
		rep:       server.defaultRep,
		limiter:   ratelimit.New(server.bandwidthLimit),
	}
}

// serve greets the client and runs the command loop until QUIT, a read
// failure or Shutdown.
func (s *session) serve() {
	defer s.close()

	s.server.logger.Info("session_started",
		"session_id", s.sessionID,
		"remote_ip", s.redactIP(s.remoteIP),
	)
	s.reply(codeWelcome, s.server.welcomeMessage)

	for !s.broken {
		if s.server.idleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.server.idleTimeout))
		}

		line, err := s.reader.readLine()
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				s.reply(codeSyntaxError, msgLineTooLong)
				return
			}
			if !errors.Is(err, io.EOF) && s.ctx.Err() == nil {
				s.server.logger.Warn("read_error",
					"session_id", s.sessionID,
					"remote_ip", s.redactIP(s.remoteIP),
					"user", s.user,
					"error", err,
				)
			}
			return
		}

		cmd := ParseCommand(line)
		if cmd.IsEmpty() {
			continue
		}
		if s.handleCommand(cmd) {
			return
		}
	}
}

// handleCommand logs and dispatches one command. It returns true when the
// session should end.
func (s *session) handleCommand(cmd Command) bool {
	verb := cmd.Verb()
	logArg := cmd.Param()
	switch {
	case verb == "PASS" || s.state == stateAwaitingPassword:
		logArg = "***"
	case verb == "CWD" || verb == "LIST" || verb == "RETR":
		logArg = s.redactPath(logArg)
	}
	s.server.logger.Debug("command_received",
		"session_id", s.sessionID,
		"remote_ip", s.redactIP(s.remoteIP),
		"user", s.user,
		"cmd", verb,
		"arg", logArg,
	)

	start := time.Now()
	s.lastCode = 0
	quit := s.dispatch(verb, cmd)

	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordCommand(verb, s.lastCode < 400, time.Since(start))
	}
	return quit
}

func (s *session) dispatch(verb string, cmd Command) bool {
	switch {
	case s.state == stateAwaitingPassword:
		// Whatever follows an accepted USER is the password.
		s.handlePassword(cmd)
		return false
	case verb == "USER":
		s.handleUSER(cmd)
		return false
	case s.state != stateAuthenticated:
		s.reply(codeNotLoggedIn, msgMustLogin)
		return false
	case verb == "QUIT":
		s.reply(codeGoodbye, msgGoodbye)
		return true
	}

	if handler, ok := commandHandlers[verb]; ok {
		handler(s, cmd)
		return false
	}
	s.reply(codeOK, msgNotSupported)
	return false
}

// reply sends a response to the client. After the first failed write the
// session is marked broken and later replies are dropped.
func (s *session) reply(code int, message string) {
	s.lastCode = code
	if s.broken {
		return
	}
	if s.server.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.server.writeTimeout))
	}
	fmt.Fprintf(s.writer, "%d %s\r\n", code, message)
	if err := s.writer.Flush(); err != nil {
		s.broken = true
		s.server.logger.Debug("reply_failed",
			"session_id", s.sessionID,
			"code", code,
			"error", err,
		)
	}
}

// setData installs a new data channel.
func (s *session) setData(dc DataChannel) {
	s.closeData()
	s.data = dc
	s.server.logger.Debug("data_channel_opened",
		"session_id", s.sessionID,
		"remote_ip", s.redactIP(s.remoteIP),
		"mode", dc.Mode(),
	)
}

// closeData tears down the current data channel, if any.
func (s *session) closeData() {
	if s.data == nil {
		return
	}
	if err := s.data.Close(); err != nil {
		s.server.logger.Debug("data_channel_close_failed",
			"session_id", s.sessionID,
			"mode", s.data.Mode(),
			"error", err,
		)
	}
	s.data = nil
}

// wrapDataConn tracks conn for Shutdown and applies the bandwidth limit.
func (s *session) wrapDataConn(conn net.Conn) *dataConn {
	s.server.trackConnection(conn, true)
	tc := &trackingConn{Conn: conn, server: s.server}

	var w io.Writer = tc
	if s.limiter != nil {
		w = ratelimit.NewWriter(s.ctx, tc, s.limiter)
	}
	return &dataConn{conn: tc, w: w, writeTimeout: s.server.writeTimeout}
}

// close ends the session and releases the control and data connections.
func (s *session) close() {
	s.cancel()

	var result *multierror.Error
	if s.data != nil {
		if err := s.data.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		s.data = nil
	}
	if err := ignoreClosed(s.conn.Close()); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		s.server.logger.Debug("session_close_error",
			"session_id", s.sessionID,
			"error", err,
		)
	}

	s.server.logger.Info("session_closed",
		"session_id", s.sessionID,
		"remote_ip", s.redactIP(s.remoteIP),
		"user", s.user,
		"duration_ms", time.Since(s.started).Milliseconds(),
	)
}

// redactPath returns the path with redaction applied if enabled.
func (s *session) redactPath(p string) string {
	return s.server.redactPath(p)
}

// redactIP returns the IP with redaction applied if enabled.
func (s *session) redactIP(ip string) string {
	return s.server.redactIP(ip)
}

// logTransfer logs a completed download in xferlog format:
// current-time transfer-time remote-host file-size filename transfer-type
// special-action-flag direction access-mode username service-name
// authentication-method authenticated-user-id completion-status
func (s *session) logTransfer(filename string, bytes int64, duration time.Duration) {
	if s.server.transferLog == nil {
		return
	}

	transferTime := int64(duration.Seconds())
	if transferTime == 0 {
		transferTime = 1
	}

	tType := "b"
	if s.rep == Text {
		tType = "a"
	}

	// Mon Dec 25 15:04:05 2025 1 127.0.0.1 1024 /file.txt b _ o a anonymous ftp 0 * c
	line := fmt.Sprintf("%s %d %s %d %s %s _ o a %s ftp 0 * c\n",
		time.Now().Format("Mon Jan 02 15:04:05 2006"),
		transferTime,
		s.redactIP(s.remoteIP),
		bytes,
		s.redactPath(filename),
		tType,
		s.user,
	)

	s.server.transferLogMu.Lock()
	defer s.server.transferLogMu.Unlock()
	_, _ = io.WriteString(s.server.transferLog, line)
}

// replyFSError logs a filesystem failure and answers with a 550.
func (s *session) replyFSError(op, p string, err error, message string) {
	level := s.server.logger.Debug
	if !errors.Is(err, os.ErrNotExist) {
		level = s.server.logger.Warn
	}
	level("filesystem_error",
		"session_id", s.sessionID,
		"user", s.user,
		"cmd", op,
		"path", s.redactPath(p),
		"error", err,
	)
	s.reply(codeActionFailed, message)
}
