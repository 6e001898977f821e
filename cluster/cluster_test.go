package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// blockingLock blocks until the context is done.
type blockingLock struct{}

func (blockingLock) Lock(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingLock) Unlock(context.Context) error { return nil }

func TestNop(t *testing.T) {
	var l Lock = Nop{}
	assert.NoError(t, l.Lock(context.Background()))
	assert.NoError(t, l.Unlock(context.Background()))
}

func TestWithTimeout(t *testing.T) {
	l := WithTimeout(blockingLock{}, 20*time.Millisecond)

	start := time.Now()
	err := l.Lock(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, l.Unlock(context.Background()))
}
