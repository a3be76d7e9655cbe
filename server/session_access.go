package server

import "strings"

// anonymousUser is the only account the server accepts.
const anonymousUser = "anonymous"

func (s *session) handleUSER(cmd Command) {
	if s.state == stateAuthenticated {
		s.reply(codeNotLoggedIn, msgCantChange)
		return
	}

	user := cmd.Arg(0)
	if !strings.EqualFold(user, anonymousUser) {
		// Security audit: failed authentication
		s.server.logger.Warn("authentication_failed",
			"session_id", s.sessionID,
			"remote_ip", s.redactIP(s.remoteIP),
			"user", user,
			"reason", "anonymous only",
		)
		if s.server.metricsCollector != nil {
			s.server.metricsCollector.RecordAuthentication(false, user)
		}
		s.reply(codeNotLoggedIn, msgAnonymousOnly)
		return
	}

	s.user = user
	s.state = stateAwaitingPassword
	s.reply(codeNeedPassword, msgPassword)
}

// handlePassword consumes the line following an accepted USER. Any password
// is accepted.
func (s *session) handlePassword(_ Command) {
	s.state = stateAuthenticated

	// Security audit: successful authentication
	s.server.logger.Info("authentication_success",
		"session_id", s.sessionID,
		"remote_ip", s.redactIP(s.remoteIP),
		"user", s.user,
	)
	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordAuthentication(true, s.user)
	}
	s.reply(codeLoggedIn, msgLoginSuccess)
}

// handlePASS answers a PASS sent after login.
func (s *session) handlePASS(_ Command) {
	s.reply(codeNotLoggedIn, msgCantChange)
}
