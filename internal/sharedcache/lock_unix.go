// SPDX-License-Identifier: MPL-2.0

//go:build unix

package sharedcache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// errFlockUnavailable mirrors lock_other.go; acquireLock never returns it here.
var errFlockUnavailable = errors.New("flock not available on this platform")

// fileLock is a blocking exclusive flock on the per-cache lock file. The lock
// file is left behind after extraction; the kernel drops the flock when the
// descriptor is closed, including on crash.
type fileLock struct {
	file *os.File
}

// acquireLock opens (or creates) path and blocks until the exclusive lock is held.
func acquireLock(path string) (releaser, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	return &fileLock{file: f}, nil
}

// Release unlocks and closes the lock file. Further calls are no-ops.
func (l *fileLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		slog.Debug("flock unlock failed", "error", err)
	}
	if err := l.file.Close(); err != nil {
		slog.Debug("lock file close failed", "error", err)
	}
	l.file = nil
}
