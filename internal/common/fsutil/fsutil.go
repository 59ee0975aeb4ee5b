// Package fsutil holds the path helpers shared by config loading and the CLI.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrOtherUserHome is returned for "~name" paths, which name another user's
// home directory.
var ErrOtherUserHome = errors.New("only ~ and ~/ home paths are supported")

// ExpandHome replaces a leading "~" or "~/" with the current user's home
// directory. Paths without a leading "~" are returned as given.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	rest := path[1:]
	if rest != "" && !os.IsPathSeparator(rest[0]) {
		return "", fmt.Errorf("%w: %s", ErrOtherUserHome, path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, rest), nil
}

// CheckReadable returns nil when path is a regular file the process can open.
// Missing files wrap fs.ErrNotExist and permission failures wrap
// fs.ErrPermission so callers can report them differently.
func CheckReadable(path string) error {
	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s not found: %w", path, fs.ErrNotExist)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s is not readable: %w", path, fs.ErrPermission)
	case err != nil:
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	return nil
}
