package server

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"
)

// resolvePath maps a client-supplied path onto an absolute virtual path.
// Relative paths are joined to the working directory; ".." never climbs
// above "/".
func (s *session) resolvePath(arg string) string {
	if arg == "" {
		return s.cwd
	}
	if path.IsAbs(arg) {
		return path.Clean(arg)
	}
	return path.Clean(path.Join(s.cwd, arg))
}

func (s *session) handleCWD(cmd Command) {
	target := s.resolvePath(cmd.Param())

	info, err := s.server.driver.Stat(target)
	if err != nil {
		s.replyFSError("CWD", target, err, msgFailedToChange)
		return
	}
	if !info.IsDir() {
		s.reply(codeActionFailed, msgFailedToChange)
		return
	}

	s.cwd = target
	s.reply(codeDirChanged, msgDirChanged)
}

func (s *session) handleLIST(cmd Command) {
	defer s.closeData()

	dir := s.cwd
	// Options such as "-a" or "-l" are accepted and ignored.
	if p := cmd.Param(); p != "" && !strings.HasPrefix(p, "-") {
		dir = s.resolvePath(p)
	}

	entries, err := s.server.driver.ListDir(dir)
	if err != nil {
		s.replyFSError("LIST", dir, err, msgActionNotTaken)
		return
	}

	if s.data == nil || !s.data.Connected() {
		s.reply(codeActionFailed, msgActionNotTaken)
		return
	}

	listing := formatListing(s.server.listFormat, dir, entries)

	s.reply(codeTransferStarting, msgDirIncoming)
	start := time.Now()
	n, err := sendStream(s.data, strings.NewReader(listing), Text)
	if err != nil {
		s.transferFailed("LIST", dir, err)
		return
	}
	s.reply(codeTransferComplete, msgDirSendOK)
	s.transferDone("LIST", dir, n, time.Since(start))
}

// formatListing renders entries one per line, in the order given.
func formatListing(format ListFormat, dir string, entries []os.FileInfo) string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		switch format {
		case ListFormatNames:
			lines = append(lines, entry.Name())
		case ListFormatUnix:
			lines = append(lines, unixListLine(entry))
		default:
			lines = append(lines, path.Join(dir, entry.Name()))
		}
	}
	return strings.Join(lines, "\n")
}

// unixListLine formats an entry the way "ls -l" does.
func unixListLine(entry os.FileInfo) string {
	mode := entry.Mode().String()
	if entry.Mode()&os.ModeSymlink != 0 {
		mode = "l" + mode[1:]
	}
	return fmt.Sprintf("%s 1 ftp ftp %d %s %s",
		mode, entry.Size(), entry.ModTime().Format("Jan 02 15:04"), entry.Name())
}
