// Package safefile provides hardened open helpers for files the process does
// not control, such as game server logs and user-supplied pattern files.
package safefile

import (
	"errors"
	"os"
)

// ErrNotRegularFile is returned when the path does not name a regular file.
// Symlinks, FIFOs, devices, sockets, and directories are all rejected: a
// scanner blocking forever on a FIFO, or following a symlink out of the log
// directory, must not be possible.
var ErrNotRegularFile = errors.New("not a regular file")

// OpenRegular opens path and verifies it is a regular file, both before the
// open (Lstat, without following symlinks) and after it (Stat on the file
// descriptor). The double check narrows the window in which the path could be
// swapped for a special file; Go does not expose O_NOFOLLOW portably.
//
// The caller must close the returned file. The returned FileInfo is the stat
// of the opened descriptor, so its Size is consistent with what reads from
// the handle will see.
func OpenRegular(path string) (*os.File, os.FileInfo, error) {
	linkInfo, err := os.Lstat(path)
	if err != nil {
		return nil, nil, err
	}
	if !linkInfo.Mode().IsRegular() {
		return nil, nil, ErrNotRegularFile
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	// Stat the descriptor, not the path: this sees the file actually opened,
	// even if the path was replaced in between.
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrNotRegularFile
	}

	return f, info, nil
}
