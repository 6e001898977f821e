// Package cluster specifies coordination primitives for job instances that
// share state, such as a cached token.
package cluster

import (
	"context"
	"time"
)

// Lock defines a mutual exclusion service.
type Lock interface {
	// Lock and Unlock are simple, coarse grain locks based on a pre-defined
	// lock path. The lock path is an implementation detail that isn't negotiated
	// through this interface. A context is accepted for setting wait bounds.
	Lock(context.Context) error
	Unlock(context.Context) error
}

// Nop is a Lock that never blocks. It's suitable when a single instance
// owns the shared state.
type Nop struct{}

// Lock is a no-op.
func (Nop) Lock(context.Context) error { return nil }

// Unlock is a no-op.
func (Nop) Unlock(context.Context) error { return nil }

// WithTimeout returns a Lock whose Lock calls wait at most d, in addition to
// any deadline on the caller's context.
func WithTimeout(l Lock, d time.Duration) Lock {
	return timeoutLock{l: l, d: d}
}

type timeoutLock struct {
	l Lock
	d time.Duration
}

func (t timeoutLock) Lock(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.l.Lock(ctx)
}

func (t timeoutLock) Unlock(ctx context.Context) error {
	return t.l.Unlock(ctx)
}
