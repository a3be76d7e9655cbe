package server

import (
	"strings"
)

// MaxCommandLength is the maximum length of a command line.
const MaxCommandLength = 4096

// Command is one parsed control-channel line.
//
// Operation is kept exactly as the client sent it; dispatch compares it
// case-insensitively through Verb. Text always ends with CRLF, whatever
// terminator (if any) the client used.
type Command struct {
	Operation string
	Args      []string
	Text      string
}

// ParseCommand splits a raw control line into a Command.
// Leading and trailing whitespace is ignored; the first whitespace-separated
// token is the operation and the remaining tokens are its arguments.
func ParseCommand(line string) Command {
	trimmed := strings.TrimRight(line, "\r\n")
	fields := strings.Fields(trimmed)

	cmd := Command{Text: trimmed + "\r\n"}
	if len(fields) == 0 {
		return cmd
	}
	cmd.Operation = fields[0]
	if len(fields) > 1 {
		cmd.Args = fields[1:]
	}
	return cmd
}

// IsEmpty reports whether the line was blank or whitespace only.
func (c Command) IsEmpty() bool {
	return strings.TrimSpace(c.Operation) == ""
}

// Verb returns the upper-cased operation, the key used for dispatch.
func (c Command) Verb() string {
	return strings.ToUpper(c.Operation)
}

// Arg returns the i-th argument or "" if there are fewer arguments.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Param returns everything after the operation with surrounding whitespace
// removed. Path arguments use it so that names containing spaces survive.
func (c Command) Param() string {
	rest := strings.TrimSpace(strings.TrimRight(c.Text, "\r\n"))
	if c.Operation == "" {
		return ""
	}
	rest = strings.TrimPrefix(rest, c.Operation)
	return strings.TrimSpace(rest)
}

// String returns the line without its terminator, for logging.
func (c Command) String() string {
	return strings.TrimRight(c.Text, "\r\n")
}
