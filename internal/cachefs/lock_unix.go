//go:build unix

package cachefs

import (
	"os"
	"syscall"
)

// lockHandle is the open file descriptor backing a held flock.
type lockHandle struct {
	f *os.File
}

// tryLock attempts a non-blocking exclusive flock on path, creating it if
// necessary. syscall.EWOULDBLOCK means another holder has it.
func tryLock(path string) (lockHandle, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return lockHandle{}, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return lockHandle{}, err
	}
	return lockHandle{f: f}, nil
}

func unlock(h lockHandle) error {
	if h.f == nil {
		return nil
	}
	err := syscall.Flock(int(h.f.Fd()), syscall.LOCK_UN)
	h.f.Close()
	return err
}
