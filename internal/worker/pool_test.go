package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolProcessesAllJobs(t *testing.T) {
	var produced int32
	var handled int32

	pool := &Pool{
		Component:     "test",
		Workers:       4,
		QueueCapacity: 100,
		DrainTimeout:  2 * time.Second,
		Read: func(ctx context.Context) ([]Job, error) {
			if atomic.AddInt32(&produced, 1) > 5 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			jobs := make([]Job, 10)
			for i := range jobs {
				jobs[i] = Job{Stream: "s", ID: "id", Payload: []byte("x")}
			}
			return jobs, nil
		},
		Handle: func(ctx context.Context, job Job) {
			atomic.AddInt32(&handled, 1)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&handled) < 50 {
		select {
		case <-deadline:
			t.Fatalf("handled %d jobs before deadline, want 50", atomic.LoadInt32(&handled))
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if got := atomic.LoadInt32(&handled); got != 50 {
		t.Errorf("handled = %d, want 50", got)
	}
}

func TestPoolDrainsQueueOnShutdown(t *testing.T) {
	var mu sync.Mutex
	handled := 0
	batchSent := false

	pool := &Pool{
		Component:     "test",
		Workers:       1,
		QueueCapacity: 100,
		DrainTimeout:  2 * time.Second,
		Read: func(ctx context.Context) ([]Job, error) {
			if batchSent {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			batchSent = true
			jobs := make([]Job, 20)
			for i := range jobs {
				jobs[i] = Job{Stream: "s", ID: "id"}
			}
			return jobs, nil
		},
		Handle: func(ctx context.Context, job Job) {
			time.Sleep(time.Millisecond)
			mu.Lock()
			handled++
			mu.Unlock()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond) // let the batch enqueue
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("pool did not shut down")
	}

	mu.Lock()
	defer mu.Unlock()
	if handled != 20 {
		t.Errorf("handled = %d, want the full batch drained on shutdown", handled)
	}
}

func TestPoolSurvivesReadErrorsAtStartup(t *testing.T) {
	var calls int32
	pool := &Pool{
		Component:    "test",
		Workers:      1,
		RetryStartup: 5 * time.Second,
		Read: func(ctx context.Context) ([]Job, error) {
			n := atomic.AddInt32(&calls, 1)
			if n < 3 {
				return nil, context.DeadlineExceeded
			}
			<-ctx.Done()
			return nil, ctx.Err()
		},
		Handle: func(ctx context.Context, job Job) {},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3500*time.Millisecond)
	defer cancel()
	pool.Run(ctx)

	if atomic.LoadInt32(&calls) < 3 {
		t.Errorf("read retried %d times, want at least 3", atomic.LoadInt32(&calls))
	}
}
