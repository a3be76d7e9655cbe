package server

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Option is a functional option for configuring an FTP server.
type Option func(*Server) error

// ListFormat selects how LIST renders directory entries.
type ListFormat int

const (
	// ListFormatPaths writes the absolute virtual path of every entry.
	ListFormatPaths ListFormat = iota
	// ListFormatNames writes bare entry names.
	ListFormatNames
	// ListFormatUnix writes "ls -l" style lines most clients can parse.
	ListFormatUnix
)

// String returns the flag spelling of the format.
func (f ListFormat) String() string {
	switch f {
	case ListFormatNames:
		return "names"
	case ListFormatUnix:
		return "unix"
	default:
		return "paths"
	}
}

// ParseListFormat maps "paths", "names" or "unix" to a ListFormat.
func ParseListFormat(s string) (ListFormat, error) {
	switch s {
	case "paths", "":
		return ListFormatPaths, nil
	case "names":
		return ListFormatNames, nil
	case "unix":
		return ListFormatUnix, nil
	}
	return 0, fmt.Errorf("unknown list format %q", s)
}

// WithDriver sets the filesystem the server exposes.
// This option is required and can only be set once.
//
// Example:
//
//	driver, _ := server.NewFSDriver("/srv/ftp")
//	s, _ := server.NewServer(":2121", server.WithDriver(driver))
func WithDriver(driver Driver) Option {
	return func(s *Server) error {
		if s.driver != nil {
			return fmt.Errorf("driver already set")
		}
		s.driver = driver
		return nil
	}
}

// WithLogger sets a custom logger for the server.
// If not specified, slog.Default() is used.
//
// Example with debug logging:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	s, _ := server.NewServer(":2121",
//	    server.WithDriver(driver),
//	    server.WithLogger(logger),
//	)
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithWelcomeMessage replaces the text of the 220 greeting.
func WithWelcomeMessage(msg string) Option {
	return func(s *Server) error {
		s.welcomeMessage = msg
		return nil
	}
}

// WithIdleTimeout bounds how long a session waits for the next command line.
// Zero waits forever. Defaults to 5 minutes.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.idleTimeout = d
		return nil
	}
}

// WithPassiveTimeout bounds how long PASV waits for the client to connect.
// Zero waits forever. Defaults to 30 seconds.
func WithPassiveTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.passiveTimeout = d
		return nil
	}
}

// WithDialTimeout bounds the outbound dial made for PORT.
// Zero leaves only the operating system limit. Defaults to 10 seconds.
func WithDialTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.dialTimeout = d
		return nil
	}
}

// WithWriteTimeout sets a deadline on every control reply and every data
// channel send. Zero, the default, applies none.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.writeTimeout = d
		return nil
	}
}

// WithMaxConnections sets the maximum number of simultaneous sessions.
// If 0, there is no limit. This is the default.
//
// When the limit is reached, new connections receive a "421 Too many users"
// response.
func WithMaxConnections(max int) Option {
	return func(s *Server) error {
		if max < 0 {
			return fmt.Errorf("max connections must not be negative")
		}
		s.maxConnections = max
		return nil
	}
}

// WithMaxConnectionsPerIP sets the maximum number of simultaneous sessions
// from one client address. If 0, there is no limit. This is the default.
//
// When the limit is reached, new connections from that address receive a
// "421 Too many connections from your IP address." response.
func WithMaxConnectionsPerIP(max int) Option {
	return func(s *Server) error {
		if max < 0 {
			return fmt.Errorf("max connections per IP must not be negative")
		}
		s.maxConnectionsPerIP = max
		return nil
	}
}

// WithSequentialSessions makes Serve handle one session at a time: the next
// control connection is accepted only after the current one ends.
func WithSequentialSessions(enable bool) Option {
	return func(s *Server) error {
		s.sequential = enable
		return nil
	}
}

// WithDefaultRepresentation sets the representation a new session starts
// with. Defaults to Binary.
func WithDefaultRepresentation(rep Representation) Option {
	return func(s *Server) error {
		if rep != Binary && rep != Text {
			return fmt.Errorf("unknown representation %d", rep)
		}
		s.defaultRep = rep
		return nil
	}
}

// WithListFormat selects the LIST output format. Defaults to ListFormatPaths.
func WithListFormat(f ListFormat) Option {
	return func(s *Server) error {
		s.listFormat = f
		return nil
	}
}

// WithStrictPortReplies makes a PORT command without a usable
// h1,h2,h3,h4,p1,p2 argument answer "501 Syntax error". By default such a
// command is ignored without any reply.
func WithStrictPortReplies(enable bool) Option {
	return func(s *Server) error {
		s.strictPort = enable
		return nil
	}
}

// WithActiveIPCheck rejects PORT targets other than the control
// connection's peer address, which prevents FTP bounce attacks.
func WithActiveIPCheck(enable bool) Option {
	return func(s *Server) error {
		s.activeIPCheck = enable
		return nil
	}
}

// WithPublicHost sets the hostname or IPv4 address advertised in PASV
// replies. A hostname is resolved once per session and the first IPv4
// address is used. If empty, the control connection's local address is used.
func WithPublicHost(host string) Option {
	return func(s *Server) error {
		s.publicHost = host
		return nil
	}
}

// WithPassivePortRange restricts passive listeners to [min, max].
// Ports are tried round-robin across sessions.
//
// Example:
//
//	s, _ := server.NewServer(":2121",
//	    server.WithDriver(driver),
//	    server.WithPassivePortRange(30000, 30100),
//	)
func WithPassivePortRange(min, max int) Option {
	return func(s *Server) error {
		if min <= 0 || max > 65535 || min > max {
			return fmt.Errorf("invalid passive port range [%d, %d]", min, max)
		}
		s.pasvMinPort = min
		s.pasvMaxPort = max
		return nil
	}
}

// WithBandwidthLimit caps every session's data channel at bytesPerSecond.
// Zero means unlimited.
func WithBandwidthLimit(bytesPerSecond int64) Option {
	return func(s *Server) error {
		if bytesPerSecond < 0 {
			return fmt.Errorf("bandwidth limit must not be negative")
		}
		s.bandwidthLimit = bytesPerSecond
		return nil
	}
}

// WithMetricsCollector installs a MetricsCollector.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(s *Server) error {
		s.metricsCollector = mc
		return nil
	}
}

// WithTransferLog writes one xferlog-format line per completed RETR to w.
func WithTransferLog(w io.Writer) Option {
	return func(s *Server) error {
		s.transferLog = w
		return nil
	}
}

// WithPathRedactor rewrites paths before they are logged.
func WithPathRedactor(fn PathRedactor) Option {
	return func(s *Server) error {
		s.pathRedactor = fn
		return nil
	}
}

// WithRedactIPs masks the last octet of client addresses in logs.
func WithRedactIPs(enable bool) Option {
	return func(s *Server) error {
		s.redactIPs = enable
		return nil
	}
}
