package vwbuild

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// acquireRunLock takes an exclusive flock on lockPath for the duration of one
// pipeline run. Concurrent invocations against the same host race on apt and
// rustup state, so a second instance is refused instead of queued.
func acquireRunLock(lockPath string) (release func(), err error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("another vwbuild run holds %s: %w", lockPath, err)
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
