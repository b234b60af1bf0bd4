//go:build linux || darwin

package store

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes an advisory flock on filename's lock file.
func lockFile(filename string, exclusive bool) (func(), error) {
	f, err := os.OpenFile(filename+".lock", os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}

	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, err
	}

	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
	}, nil
}
