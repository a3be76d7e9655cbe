package server

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestRedactPath(t *testing.T) {
	t.Parallel()
	// Keep the first component and the file name
	redactMiddle := func(p string) string {
		parts := strings.Split(p, "/")
		if len(parts) <= 3 {
			return p
		}
		for i := 2; i < len(parts)-1; i++ {
			if parts[i] != "" {
				parts[i] = "*"
			}
		}
		return strings.Join(parts, "/")
	}

	tests := []struct {
		name     string
		redactor PathRedactor
		input    string
		expected string
	}{
		{"Disabled", nil, "/pub/mirror/debian/file.iso", "/pub/mirror/debian/file.iso"},
		{"Enabled_LongPath", redactMiddle, "/pub/mirror/debian/file.iso", "/pub/*/*/file.iso"},
		{"Enabled_ShortPath", redactMiddle, "/pub/file.iso", "/pub/file.iso"},
		{"Enabled_VeryShortPath", redactMiddle, "/file.iso", "/file.iso"},
		{"Empty", redactMiddle, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{pathRedactor: tt.redactor}
			result := s.redactPath(tt.input)
			if result != tt.expected {
				t.Errorf("redactPath(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRedactIP(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		enabled  bool
		input    string
		expected string
	}{
		{"Disabled_IPv4", false, "192.168.1.100", "192.168.1.100"},
		{"Enabled_IPv4", true, "192.168.1.100", "192.168.1.xxx"},
		{"Enabled_IPv6", true, "2001:db8::1", "2001:db8::xxx"},
		{"Enabled_IPv6_Long", true, "2001:0db8:85a3:0000:0000:8a2e:0370:7334", "2001:0db8:85a3:0000:0000:8a2e:0370:xxx"},
		{"Empty", true, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{redactIPs: tt.enabled}
			result := s.redactIP(tt.input)
			if result != tt.expected {
				t.Errorf("redactIP(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// lockedWriter serializes log output written from session goroutines.
type lockedWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *lockedWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestSessionLogs_Redacted(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"secret/plans.txt": "x"})

	var out lockedWriter
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ts := startServer(t, root,
		WithLogger(logger),
		WithRedactIPs(true),
		WithPathRedactor(func(p string) string { return "[path]" }),
	)
	c := dialCtrl(t, ts.addr)
	c.expect(220)
	c.cmd("USER anonymous", 331)
	c.cmd("PASS hunter2", 230)

	data := c.pasv()
	c.cmd("RETR secret/plans.txt", 150)
	readAll(t, data)
	c.expect(226)
	c.cmd("QUIT", 221)
	c.expectClosed()

	logs := out.String()
	for _, leaked := range []string{"hunter2", "127.0.0.1", "plans.txt"} {
		if strings.Contains(logs, leaked) {
			t.Errorf("log output contains %q:\n%s", leaked, logs)
		}
	}
	for _, want := range []string{"127.0.0.xxx", "[path]", "arg=***", "transfer_complete", "authentication_success"} {
		if !strings.Contains(logs, want) {
			t.Errorf("log output lacks %q:\n%s", want, logs)
		}
	}
}
