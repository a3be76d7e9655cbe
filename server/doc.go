// Package server implements an anonymous, read-only FTP server.
//
// # Overview
//
// The server speaks the minimal RFC 959 subset a download-only site needs:
//
//	USER PASS CWD LIST RETR TYPE PASV PORT QUIT
//
// Every other command is answered with "200 Command not supported." Only the
// "anonymous" account is accepted, with any password. Nothing is ever written
// to the served tree.
//
// # Getting Started
//
// Serve a local directory with the provided FSDriver:
//
//	package main
//
//	import (
//	    "log"
//	    "github.com/gonzalop/anonftp/server"
//	)
//
//	func main() {
//	    driver, err := server.NewFSDriver("/srv/ftp")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer driver.Close()
//
//	    s, err := server.NewServer(":2121", server.WithDriver(driver))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    log.Println("Starting FTP server on :2121")
//	    if err := s.ListenAndServe(); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Sessions
//
// A session moves through three states: unauthenticated, awaiting password
// and authenticated. Before login every command except USER receives
// "530 Please login with USER and PASS." After an accepted USER the very next
// line is taken as the password, whatever its keyword.
//
// Each session owns at most one data channel. PASV and PORT replace any
// channel that is already open, and LIST and RETR always close the channel
// when they finish, successfully or not.
//
// # Transfer Representations
//
// TYPE A selects Text: the source is split on LF, CRLF or a lone CR and
// every line is sent terminated with CRLF. Any other TYPE argument selects
// Binary, which forwards bytes unchanged. Listings are always sent as Text.
//
// # Passive Mode Configuration
//
// When behind NAT or in containerized environments, advertise a public
// address and restrict the passive port range:
//
//	s, _ := server.NewServer(":2121",
//	    server.WithDriver(driver),
//	    server.WithPublicHost("ftp.example.com"),
//	    server.WithPassivePortRange(30000, 30100),
//	)
//
// Docker users: map the port range with -p 30000-30100:30000-30100.
//
// # Timeouts
//
// Waiting for a command line, for the passive connection and for the PORT
// dial are all bounded:
//
//	s, _ := server.NewServer(":2121",
//	    server.WithDriver(driver),
//	    server.WithIdleTimeout(10*time.Minute),
//	    server.WithPassiveTimeout(time.Minute),
//	    server.WithDialTimeout(5*time.Second),
//	)
//
// A zero duration waits forever.
//
// # Troubleshooting
//
// Problem: PASV replies carry a private address
//   - Solution: Use WithPublicHost with your public IP or hostname
//
// Problem: Clients cannot parse the LIST output
//   - Solution: Use WithListFormat(ListFormatUnix); the default format is one
//     absolute path per line
//
// Problem: Connection refused on port 21
//   - Solution: Port 21 requires root/admin privileges on most systems
//   - Solution: Use a higher port (e.g., :2121) for development
package server
