package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobsAndDoesNotRetry(t *testing.T) {
	var calls int32
	var wg sync.WaitGroup
	wg.Add(2)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		defer wg.Done()
		atomic.AddInt32(&calls, 1)
		if job.ID == "bad" {
			return errors.New("boom")
		}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "bad"}))
	require.NoError(t, q.Enqueue(Job{ID: "good"}))
	wg.Wait()

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "x"}))
}
