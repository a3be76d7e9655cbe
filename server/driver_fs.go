package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FSDriver implements Driver on top of a local directory.
//
// Security Model:
//   - All file operations are confined to the root path using os.Root
//   - Virtual paths are cleaned before use, so ".." never climbs above "/"
//   - Symlinks that point outside the root fail to open
//   - Nothing is ever written
//
// The driver keeps one os.Root handle open for its lifetime; call Close when
// the server is done with it.
type FSDriver struct {
	rootPath   string
	root       *os.Root
	hideDotted bool
}

// FSDriverOption is a functional option for configuring an FSDriver.
type FSDriverOption func(*FSDriver)

// NewFSDriver creates a driver serving rootPath.
// Returns an error if the root path does not exist or is not a directory.
//
// Basic usage:
//
//	driver, err := server.NewFSDriver("/srv/ftp")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer driver.Close()
func NewFSDriver(rootPath string, options ...FSDriverOption) (*FSDriver, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("root path validation failed: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", rootPath)
	}

	rootPath, err = filepath.EvalSymlinks(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	root, err := os.OpenRoot(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open root: %w", err)
	}

	d := &FSDriver{
		rootPath: rootPath,
		root:     root,
	}
	for _, opt := range options {
		opt(d)
	}
	return d, nil
}

// WithHideDotFiles leaves entries whose name starts with "." out of
// listings. They can still be retrieved by name.
func WithHideDotFiles(hide bool) FSDriverOption {
	return func(d *FSDriver) {
		d.hideDotted = hide
	}
}

// RootPath returns the resolved local directory being served.
func (d *FSDriver) RootPath() string {
	return d.rootPath
}

// Close releases the root directory handle.
func (d *FSDriver) Close() error {
	return d.root.Close()
}

// resolve maps a virtual path onto a name relative to the root handle.
//
//	"/"         -> "."
//	"/pub/a.txt" -> "pub/a.txt"
func (d *FSDriver) resolve(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("path %q is not absolute", p)
	}
	rel := strings.TrimPrefix(path.Clean(p), "/")
	if rel == "" {
		rel = "."
	}
	return rel, nil
}

// Stat returns status information for a file or directory.
func (d *FSDriver) Stat(p string) (os.FileInfo, error) {
	rel, err := d.resolve(p)
	if err != nil {
		return nil, err
	}
	return d.root.Stat(rel)
}

// ListDir returns the entries of a directory in directory order.
func (d *FSDriver) ListDir(p string) ([]os.FileInfo, error) {
	rel, err := d.resolve(p)
	if err != nil {
		return nil, err
	}

	f, err := d.root.Open(rel)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}

	infos := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if d.hideDotted && strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err == nil {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// OpenFile opens a regular file for reading.
func (d *FSDriver) OpenFile(p string) (fs.File, error) {
	rel, err := d.resolve(p)
	if err != nil {
		return nil, err
	}

	f, err := d.root.Open(rel)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, errors.New("is a directory")
	}
	return f, nil
}
