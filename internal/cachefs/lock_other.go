//go:build !unix

package cachefs

import "fmt"

// lockHandle is unused on non-Unix platforms; flock-based locking is Unix-only.
type lockHandle struct{}

func tryLock(path string) (lockHandle, error) {
	return lockHandle{}, fmt.Errorf("cachefs: file locking is not supported on this platform")
}

func unlock(h lockHandle) error {
	return nil
}
