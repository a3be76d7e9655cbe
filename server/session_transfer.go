package server

import (
	"errors"
	"fmt"
	"net"
	"path"
	"time"
)

func (s *session) handleTYPE(cmd Command) {
	if len(cmd.Args) == 0 {
		s.reply(codeActionFailed, msgActionNotTaken)
		return
	}
	s.rep = parseRepresentation(cmd.Arg(0))
	s.reply(codeOK, fmt.Sprintf(msgModeSwitch, s.rep))
}

// handlePASV opens a listener, advertises it and waits for the client to
// connect before reading the next command.
func (s *session) handlePASV(_ Command) {
	s.closeData()

	ln, err := s.listenPassive()
	if err != nil {
		s.server.logger.Warn("passive_listen_failed",
			"session_id", s.sessionID,
			"error", err,
		)
		s.reply(codeActionFailed, msgActionNotTaken)
		return
	}

	pc := &passiveChannel{ln: ln, wrap: s.wrapDataConn}
	s.reply(codePassiveMode, fmt.Sprintf(msgPassiveMode, encodeHostPort(s.passiveIP(), pc.Port())))

	s.server.logger.Debug("waiting for passive connection",
		"session_id", s.sessionID,
		"remote_ip", s.redactIP(s.remoteIP),
		"port", pc.Port(),
	)
	if err := pc.accept(s.ctx, s.server.passiveTimeout); err != nil {
		s.server.logger.Warn("passive_accept_failed",
			"session_id", s.sessionID,
			"remote_ip", s.redactIP(s.remoteIP),
			"error", err,
		)
		_ = pc.Close()
		return
	}
	s.setData(pc)
}

// listenPassive binds the passive listener, either on an OS-assigned port or
// on the next free port of the configured range.
func (s *session) listenPassive() (net.Listener, error) {
	minPort, maxPort := s.server.pasvMinPort, s.server.pasvMaxPort
	if minPort == 0 {
		return net.Listen("tcp", ":0")
	}

	n := uint32(maxPort - minPort + 1)
	start := uint32(s.server.nextPassivePort.Add(1)-1) % n
	var lastErr error
	for i := uint32(0); i < n; i++ {
		port := minPort + int((start+i)%n)
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no free passive port in [%d, %d]: %w", minPort, maxPort, lastErr)
}

// passiveIP returns the address advertised in the 227 reply.
func (s *session) passiveIP() net.IP {
	if host := s.server.publicHost; host != "" {
		if s.resolvedIP == nil {
			s.resolvedIP = s.resolvePublicHost(host)
		}
		if s.resolvedIP != nil {
			return s.resolvedIP
		}
	}
	if addr, ok := s.conn.LocalAddr().(*net.TCPAddr); ok {
		return addr.IP
	}
	return net.IPv4zero
}

func (s *session) resolvePublicHost(host string) net.IP {
	if ip := net.ParseIP(host); ip != nil {
		return ip
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(s.ctx, host)
	if err != nil {
		s.server.logger.Warn("public_host_lookup_failed",
			"session_id", s.sessionID,
			"host", host,
			"error", err,
		)
		return nil
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}

// handlePORT dials the address named by the h1,h2,h3,h4,p1,p2 argument.
func (s *session) handlePORT(cmd Command) {
	if len(cmd.Args) == 0 {
		s.reply(codeActionFailed, msgActionNotTaken)
		return
	}
	s.closeData()

	addr, err := parsePortArg(cmd.Text)
	if err != nil {
		s.server.logger.Debug("port_malformed",
			"session_id", s.sessionID,
			"arg", cmd.Param(),
			"error", err,
		)
		if s.server.strictPort {
			s.reply(codeBadArguments, msgBadPortArgs)
		}
		return
	}

	if s.server.activeIPCheck && !s.validateActiveIP(addr.IP) {
		s.server.logger.Warn("port_rejected",
			"session_id", s.sessionID,
			"remote_ip", s.redactIP(s.remoteIP),
			"target", s.redactIP(addr.IP.String()),
		)
		s.reply(codeSyntaxError, msgIllegalPort)
		return
	}

	s.server.logger.Debug("dialing active connection",
		"session_id", s.sessionID,
		"ip", s.redactIP(addr.IP.String()),
		"port", addr.Port,
	)
	d := net.Dialer{Timeout: s.server.dialTimeout}
	conn, err := d.DialContext(s.ctx, "tcp", addr.String())
	if err != nil {
		s.server.logger.Warn("active_dial_failed",
			"session_id", s.sessionID,
			"ip", s.redactIP(addr.IP.String()),
			"port", addr.Port,
			"error", err,
		)
		s.reply(codeActionFailed, msgActionNotTaken)
		return
	}

	s.setData(&activeChannel{out: s.wrapDataConn(conn)})
	s.reply(codeOK, msgPortSuccess)
}

// validateActiveIP ensures the data connection target matches the control
// connection source. This prevents FTP bounce attacks.
func (s *session) validateActiveIP(ip net.IP) bool {
	remoteIP := net.ParseIP(s.remoteIP)
	if remoteIP == nil {
		return false
	}
	return ip.Equal(remoteIP)
}

func (s *session) handleRETR(cmd Command) {
	defer s.closeData()

	name := cmd.Param()
	if name == "" {
		s.reply(codeActionFailed, msgFailedToOpen)
		return
	}
	p := s.resolvePath(name)

	f, err := s.server.driver.OpenFile(p)
	if err != nil {
		s.replyFSError("RETR", p, err, msgFailedToOpen)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.replyFSError("RETR", p, err, msgFailedToOpen)
		return
	}

	if s.data == nil || !s.data.Connected() {
		s.reply(codeActionFailed, msgActionNotTaken)
		return
	}

	s.reply(codeTransferStarting, fmt.Sprintf(msgFileIncoming, s.rep, path.Base(p), info.Size()))
	start := time.Now()
	n, err := sendStream(s.data, f, s.rep)
	if err != nil {
		s.transferFailed("RETR", p, err)
		return
	}
	s.reply(codeTransferComplete, msgFileSendOK)

	elapsed := time.Since(start)
	s.transferDone("RETR", p, n, elapsed)
	s.logTransfer(p, n, elapsed)
}

func (s *session) transferDone(op, p string, bytes int64, elapsed time.Duration) {
	s.server.logger.Info("transfer_complete",
		"session_id", s.sessionID,
		"remote_ip", s.redactIP(s.remoteIP),
		"user", s.user,
		"cmd", op,
		"path", s.redactPath(p),
		"mode", s.data.Mode(),
		"bytes", bytes,
		"duration_ms", elapsed.Milliseconds(),
	)
	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordTransfer(op, bytes, elapsed)
	}
}

func (s *session) transferFailed(op, p string, err error) {
	var bytes int64
	side := "unknown"
	var te *TransferError
	if errors.As(err, &te) {
		bytes, side = te.Bytes, te.Side
	}
	s.server.logger.Warn("transfer_failed",
		"session_id", s.sessionID,
		"remote_ip", s.redactIP(s.remoteIP),
		"user", s.user,
		"cmd", op,
		"path", s.redactPath(p),
		"side", side,
		"bytes", bytes,
		"error", err,
	)
	s.reply(codeActionFailed, msgActionNotTaken)
}
