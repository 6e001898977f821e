// Package zookeeper implements a cluster.Lock backed by a ZooKeeper lock
// recipe, serializing job instances across hosts.
package zookeeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
)

var (
	// ErrLockingFailed is a general failure.
	ErrLockingFailed = errors.New("attempt to acquire lock failed")
	// ErrLockingTimedOut is returned when a lock couldn't be acquired by the
	// context deadline.
	ErrLockingTimedOut = errors.New("attempt to acquire lock timed out")
)

// Locker is the lock recipe used by ZooKeeperLock. *zk.Lock satisfies it.
type Locker interface {
	Lock() error
	Unlock() error
}

// ZooKeeperLock implements a cluster.Lock.
type ZooKeeperLock struct {
	mu   sync.Mutex
	l    Locker
	held bool
	Path string
}

// ZooKeeperLockConfig holds ZooKeeperLock configuration parameters.
type ZooKeeperLockConfig struct {
	Path string
}

// NewZooKeeperLock returns a *ZooKeeperLock using the connection c.
func NewZooKeeperLock(c *zk.Conn, cfg ZooKeeperLockConfig) *ZooKeeperLock {
	return NewZooKeeperLockWithLocker(zk.NewLock(c, cfg.Path, zk.WorldACL(zk.PermAll)), cfg)
}

// NewZooKeeperLockWithLocker returns a *ZooKeeperLock using an arbitrary
// Locker.
func NewZooKeeperLockWithLocker(l Locker, cfg ZooKeeperLockConfig) *ZooKeeperLock {
	return &ZooKeeperLock{l: l, Path: cfg.Path}
}

// Lock claims the lock. The underlying recipe blocks without a deadline, so
// the claim is raced against the context. A claim that completes after the
// context is done is released immediately.
func (z *ZooKeeperLock) Lock(ctx context.Context) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.held {
		return nil
	}

	result := make(chan error)
	abandoned := make(chan struct{})

	go func() {
		err := z.l.Lock()
		select {
		case <-abandoned:
			if err == nil {
				z.l.Unlock()
			}
		case result <- err:
		}
	}()

	select {
	case err := <-result:
		if err != nil {
			return errors.Join(ErrLockingFailed, err)
		}
		z.held = true
		return nil
	case <-ctx.Done():
		close(abandoned)
		return ErrLockingTimedOut
	}
}

// Unlock releases the lock.
func (z *ZooKeeperLock) Unlock(context.Context) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if !z.held {
		return nil
	}

	z.held = false
	return z.l.Unlock()
}

// Connect dials ZooKeeper at addr. Client library logging is suppressed.
func Connect(addrs []string, timeout time.Duration) (*zk.Conn, error) {
	c, _, err := zk.Connect(addrs, timeout, zk.WithLogInfo(false))
	return c, err
}
