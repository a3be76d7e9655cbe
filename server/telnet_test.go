package server

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestTelnetReader(t *testing.T) {
	const (
		iac  = "\xff"
		will = "\xfb"
		wont = "\xfc"
		do   = "\xfd"
		dont = "\xfe"
	)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"PlainLine", "RETR a.txt\r\n", "RETR a.txt\r\n"},
		{"Will", iac + will + "\x01" + "LIST", "LIST"},
		{"Wont", iac + wont + "\x03" + "CWD /", "CWD /"},
		{"Do", iac + do + "\x18" + "PASV", "PASV"},
		{"Dont", iac + dont + "\x1f" + "QUIT", "QUIT"},
		{"EscapedIAC", "RETR " + iac + iac + ".bin", "RETR \xff.bin"},
		{"NegotiationMidLine", "TY" + iac + do + "\x01" + "PE A\r\n", "TYPE A\r\n"},
		{"InterruptProcess", iac + "\xf4" + iac + "\xf2" + "ABOR", "ABOR"},
		{"OnlyNegotiation", iac + will + "\x01" + iac + do + "\x03", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newTelnetReader(strings.NewReader(tt.in)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// TestTelnetReader_SmallBuffer reads one byte at a time so negotiation
// sequences straddle Read calls.
func TestTelnetReader_SmallBuffer(t *testing.T) {
	r := newTelnetReader(strings.NewReader("U\xff\xfd\x01SER\xff\xffx"))
	var out []byte
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if want := "USER\xffx"; string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestLineReader(t *testing.T) {
	input := "USER anonymous\r\n" +
		string([]byte{telnetIAC, telnetDO, 0x01}) + "PASS x\r\n" +
		"\r\n" +
		"QUIT"
	lr := newLineReader(bytes.NewReader([]byte(input)))

	want := []string{"USER anonymous\r", "PASS x\r", "\r", "QUIT"}
	for i, w := range want {
		line, err := lr.readLine()
		if err != nil {
			t.Fatalf("line %d: unexpected error: %v", i, err)
		}
		if line != w {
			t.Errorf("line %d = %q, want %q", i, line, w)
		}
	}
	if _, err := lr.readLine(); err != io.EOF {
		t.Errorf("expected io.EOF after last line, got %v", err)
	}
}

func TestLineReader_TooLong(t *testing.T) {
	long := bytes.Repeat([]byte("A"), MaxCommandLength+10)
	lr := newLineReader(bytes.NewReader(append(long, '\n')))

	if _, err := lr.readLine(); err != errLineTooLong {
		t.Errorf("expected errLineTooLong, got %v", err)
	}
}

func TestLineReader_MaxLengthAccepted(t *testing.T) {
	exact := bytes.Repeat([]byte("B"), MaxCommandLength)
	lr := newLineReader(bytes.NewReader(append(exact, '\n')))

	line, err := lr.readLine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(line) != MaxCommandLength {
		t.Errorf("got %d bytes, want %d", len(line), MaxCommandLength)
	}
}
