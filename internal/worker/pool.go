// Package worker implements the stream-consumer layout every tick- and
// signal-driven component shares (spec §5 "Per-process worker layout"):
// one stream-reader goroutine pulling batches of up to 100 messages, a
// bounded work queue, and N worker goroutines draining it. Shutdown
// drains the queue with a deadline rather than dropping it on the floor.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/korea-trading-core/core/internal/metrics"
)

// Job is one unit of work handed from the reader to the pool: the raw
// payload plus the ids the handler needs if it defers its ACK.
type Job struct {
	Stream  string
	ID      string
	Payload []byte
	Err     error // payload extraction failure; handler dead-letters it
}

// Reader produces batches of jobs; satisfied by the closures the
// components build over bus.ReadBatch / bus.ReadBatchPending.
type Reader func(ctx context.Context) ([]Job, error)

// Handler processes one job. Errors are the handler's own business —
// by the time a job reaches a worker the ACK decision has either already
// been made (at-most-once consumers) or belongs to the handler
// (deferred-ACK executors).
type Handler func(ctx context.Context, job Job)

// Pool wires a Reader to N workers over a bounded queue.
type Pool struct {
	Component     string
	Workers       int
	QueueCapacity int
	DrainTimeout  time.Duration

	Read   Reader
	Handle Handler

	// RetryStartup is the window in which read errors before the first
	// successful read (a BusyLoadingError or connection refusal from the
	// bus) count as startup errors. Read errors are retried once a second
	// both inside and after this window; the pool does not stop or report
	// the component unhealthy when the window passes.
	RetryStartup time.Duration
}

// Run blocks until ctx is cancelled and the queue has drained (or the
// drain deadline passes). The reader stops consuming first; workers
// finish what is queued.
func (p *Pool) Run(ctx context.Context) error {
	if p.Workers <= 0 {
		p.Workers = 4
	}
	if p.QueueCapacity <= 0 {
		p.QueueCapacity = 1000
	}
	if p.DrainTimeout <= 0 {
		p.DrainTimeout = 10 * time.Second
	}

	queue := make(chan Job, p.QueueCapacity)
	done := make(chan struct{})
	var workers sync.WaitGroup

	for i := 0; i < p.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for job := range queue {
				// Workers finish queued jobs even after ctx cancellation;
				// the drain deadline below bounds how long that takes.
				p.Handle(context.WithoutCancel(ctx), job)
			}
		}()
	}

	go func() {
		defer close(queue)
		defer close(done)
		startupDeadline := time.Now().Add(p.RetryStartup)
		started := false
		for {
			if ctx.Err() != nil {
				return
			}
			jobs, err := p.Read(ctx)
			if err != nil {
				if !started && p.RetryStartup > 0 && time.Now().Before(startupDeadline) {
					time.Sleep(time.Second)
					continue
				}
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}
			started = true
			for _, j := range jobs {
				select {
				case queue <- j:
					metrics.QueueDepth.WithLabelValues(p.Component).Set(float64(len(queue)))
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	<-ctx.Done()

	select {
	case <-done:
	case <-time.After(p.DrainTimeout):
	}

	// Give workers until the drain deadline to finish what remains,
	// including jobs already dequeued and still in flight.
	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(p.DrainTimeout):
	}
	return nil
}
