// Package filelock implements a cluster.Lock with an advisory lock on a
// local file, serializing job instances on the same host.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	// ErrLockingTimedOut is returned when a lock couldn't be acquired by the
	// context deadline.
	ErrLockingTimedOut = errors.New("attempt to acquire lock timed out")
	// ErrNotLocked is returned when Unlock is called without the lock held.
	ErrNotLocked = errors.New("lock not held")
)

// pollInterval is how often a blocked Lock call retries.
var pollInterval = 50 * time.Millisecond

// FileLock is an advisory lock on a file path.
type FileLock struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// New returns a *FileLock at path. The file is created on first Lock.
func New(path string) *FileLock {
	return &FileLock{path: path}
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// Lock claims the lock, retrying until the context is done.
func (l *FileLock) Lock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("error creating lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("error opening lock file: %w", err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		locked, err := tryLock(f)
		if err != nil {
			f.Close()
			return fmt.Errorf("error locking %s: %w", l.path, err)
		}

		if locked {
			l.f = f
			return nil
		}

		select {
		case <-ctx.Done():
			f.Close()
			return ErrLockingTimedOut
		case <-ticker.C:
		}
	}
}

// Unlock releases the lock.
func (l *FileLock) Unlock(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return ErrNotLocked
	}

	err := unlock(l.f)
	l.f.Close()
	l.f = nil

	return err
}
