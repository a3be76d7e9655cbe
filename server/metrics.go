package server

import "time"

// PathRedactor rewrites a virtual path before it is logged.
//
// Example:
//
//	// Keep only the file name
//	func(p string) string { return ".../" + path.Base(p) }
type PathRedactor func(path string) string

// MetricsCollector is an optional hook for exporting server metrics to
// Prometheus, StatsD or similar. Methods are called inline from the session
// goroutine and should not block.
type MetricsCollector interface {
	// RecordCommand records one dispatched command. success is false when
	// the final reply was a 4xx/5xx.
	RecordCommand(cmd string, success bool, duration time.Duration)

	// RecordTransfer records a completed LIST or RETR.
	RecordTransfer(operation string, bytes int64, duration time.Duration)

	// RecordConnection records an accepted or rejected control connection.
	// reason is "accepted" or "global_limit_reached".
	RecordConnection(accepted bool, reason string)

	// RecordAuthentication records a login attempt.
	RecordAuthentication(success bool, user string)
}
