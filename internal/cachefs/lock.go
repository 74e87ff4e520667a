package cachefs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// lockFilename returns the advisory-lock path for key, md5-hashed so a lock
// path never needs to encode raw coordinates and stays within OS
// filename-length limits regardless of how long key is.
func lockFilename(dir, key string) string {
	sum := md5.Sum([]byte(key))
	return filepath.Join(dir, hex.EncodeToString(sum[:])+".lck")
}

// ScopedLock holds an acquired advisory lock until released. Acquire blocks
// (honoring ctx) until the lock is obtained or timeout elapses, retrying a
// non-blocking flock with backoff rather than making a blocking OS lock
// call, so a waiter can give up with ErrLockTimeout. A crashed holder's
// flock is released by the OS when its process exits.
type ScopedLock struct {
	path string
	file lockHandle
}

// Acquire obtains the advisory lock identified by key under dir, creating
// dir if needed. It polls with exponential backoff (capped) until acquired,
// ctx is done, or timeout elapses, in which case it returns ErrLockTimeout.
func Acquire(ctx context.Context, dir, key string, timeout time.Duration) (*ScopedLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create lock dir %s: %v", ErrIO, dir, err)
	}
	path := lockFilename(dir, key)

	deadline := time.Now().Add(timeout)
	backoff := 5 * time.Millisecond
	const maxBackoff = 200 * time.Millisecond

	for {
		f, err := tryLock(path)
		if err == nil {
			return &ScopedLock{path: path, file: f}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if timeout > 0 && time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Release unlocks and removes the lockfile. Removal is best-effort: another
// waiter may already be polling the same path, and a failed remove only
// costs a stray file, never correctness, since the flock itself is what
// serializes access.
func (l *ScopedLock) Release() error {
	err := unlock(l.file)
	_ = os.Remove(l.path)
	return err
}

// CleanupLockDir removes lockfiles older than maxAge from dir — a
// maintenance sweep for locks left behind by a process that crashed
// between acquiring and releasing.
func CleanupLockDir(dir string, maxAge time.Duration) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read lock dir %s: %v", ErrIO, dir, err)
	}
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".lck" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
	return nil
}
