package server

import (
	"io/fs"
	"os"
)

// Driver is the read-only filesystem capability the server is given.
//
// All paths are absolute virtual paths using forward slashes ("/",
// "/pub/readme.txt"); the session resolves client arguments against its
// working directory before calling the driver, so a Driver never sees a
// relative path.
//
// Error handling:
//   - Return os.ErrNotExist when a path does not exist
//   - Return os.ErrPermission when it cannot be read
//   - The server turns either into a 550 reply
//
// Implementations must be safe for concurrent use by several sessions.
type Driver interface {
	// Stat returns metadata for path.
	Stat(path string) (os.FileInfo, error)

	// ListDir returns the entries of the directory at path, non-recursively
	// and in the order the backing store yields them.
	ListDir(path string) ([]os.FileInfo, error)

	// OpenFile opens the regular file at path for reading. The server
	// takes the reported size from the returned file's Stat.
	OpenFile(path string) (fs.File, error)
}
