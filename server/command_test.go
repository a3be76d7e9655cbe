package server

import (
	"slices"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		op    string
		args  []string
		text  string
		empty bool
	}{
		{"CRLF terminated", "USER anonymous\r\n", "USER", []string{"anonymous"}, "USER anonymous\r\n", false},
		{"LF terminated", "CWD pub\n", "CWD", []string{"pub"}, "CWD pub\r\n", false},
		{"No terminator", "PASV", "PASV", nil, "PASV\r\n", false},
		{"Lower case kept", "type a\r\n", "type", []string{"a"}, "type a\r\n", false},
		{"Extra whitespace", "  PORT   127,0,0,1,17,136  \r\n", "PORT", []string{"127,0,0,1,17,136"}, "  PORT   127,0,0,1,17,136  \r\n", false},
		{"Multiple args", "TYPE A N", "TYPE", []string{"A", "N"}, "TYPE A N\r\n", false},
		{"Empty", "\r\n", "", nil, "\r\n", true},
		{"Whitespace only", " \t \r\n", "", nil, " \t \r\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := ParseCommand(tt.line)
			if cmd.Operation != tt.op {
				t.Errorf("Operation = %q, want %q", cmd.Operation, tt.op)
			}
			if !slices.Equal(cmd.Args, tt.args) {
				t.Errorf("Args = %q, want %q", cmd.Args, tt.args)
			}
			if cmd.Text != tt.text {
				t.Errorf("Text = %q, want %q", cmd.Text, tt.text)
			}
			if cmd.IsEmpty() != tt.empty {
				t.Errorf("IsEmpty() = %v, want %v", cmd.IsEmpty(), tt.empty)
			}
		})
	}
}

func TestCommand_Helpers(t *testing.T) {
	cmd := ParseCommand("retr  my file.txt \r\n")

	if got := cmd.Verb(); got != "RETR" {
		t.Errorf("Verb() = %q, want RETR", got)
	}
	if got := cmd.Param(); got != "my file.txt" {
		t.Errorf("Param() = %q, want %q", got, "my file.txt")
	}
	if got := cmd.Arg(0); got != "my" {
		t.Errorf("Arg(0) = %q, want my", got)
	}
	if got := cmd.Arg(5); got != "" {
		t.Errorf("Arg(5) = %q, want empty", got)
	}
	if got := cmd.Arg(-1); got != "" {
		t.Errorf("Arg(-1) = %q, want empty", got)
	}
	if got := cmd.String(); got != "retr  my file.txt " {
		t.Errorf("String() = %q", got)
	}

	if got := ParseCommand("LIST").Param(); got != "" {
		t.Errorf("Param() without args = %q, want empty", got)
	}
	if got := ParseCommand("").Param(); got != "" {
		t.Errorf("Param() of empty line = %q, want empty", got)
	}
}
