package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, job.Type)
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 8})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{Type: "a"}))
	require.NoError(t, q.Enqueue(Job{Type: "b"}))
	q.Stop()

	assert.ElementsMatch(t, []string{"a", "b"}, seen)
}

func TestQueueRejectsBeforeStartAndAfterStop(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{Type: "early"}))

	q.Start(context.Background())
	q.Stop()
	assert.Error(t, q.Enqueue(Job{Type: "late"}))
	q.Stop()
}

func TestQueueReportsFullBuffer(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("test", func(context.Context, Job) error {
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{Type: "busy"}))
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(Job{Type: "buffered"}))
	assert.Error(t, q.Enqueue(Job{Type: "overflow"}))

	close(release)
	q.Stop()
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("test", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "flaky"}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueAssignsIDs(t *testing.T) {
	ids := make(chan string, 1)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		ids <- job.ID
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{Type: "x"}))
	q.Stop()

	assert.NotEmpty(t, <-ids)
}
