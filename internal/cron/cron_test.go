package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingCleaner struct {
	calls int32
	days  int32
	err   error
}

func (c *countingCleaner) CleanupOldLogs(_ context.Context, days int) (int64, error) {
	atomic.AddInt32(&c.calls, 1)
	atomic.StoreInt32(&c.days, int32(days))
	return 2, c.err
}

func TestCleanupTask_RunsImmediatelyAndOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &countingCleaner{}

	done := startCleanup(ctx, c, 90, 10*time.Millisecond, zap.NewNop().Sugar())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&c.calls) >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup task did not stop")
	}
	assert.Equal(t, int32(90), atomic.LoadInt32(&c.days))
}

func TestCleanupTask_ErrorsDoNotStopLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &countingCleaner{err: errors.New("db down")}

	startCleanup(ctx, c, 30, 10*time.Millisecond, zap.NewNop().Sugar())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&c.calls) >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestCleanupTask_DisabledRetention(t *testing.T) {
	c := &countingCleaner{}
	done := StartCleanupTask(context.Background(), c, 0, zap.NewNop().Sugar())

	<-done
	assert.Zero(t, atomic.LoadInt32(&c.calls))
}
