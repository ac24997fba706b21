package panel

import (
	"context"
	"errors"
	"sync"

	"ghcopilot/internal/logging"
)

// ErrWorkerClosed is returned when submitting to a closed worker.
var ErrWorkerClosed = errors.New("panel worker is closed")

// Worker runs jobs on a dedicated goroutine and posts their outcomes on a
// channel for the UI loop to pass to Machine.Complete.
type Worker struct {
	jobs     chan Job
	outcomes chan Outcome
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

// NewWorker starts a worker. Jobs queue up to buffer deep before Submit blocks.
func NewWorker(buffer int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		jobs:     make(chan Job, buffer),
		outcomes: make(chan Outcome, buffer+1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// Outcomes is closed after the worker stops.
func (w *Worker) Outcomes() <-chan Outcome {
	return w.outcomes
}

// Submit queues job.
func (w *Worker) Submit(job Job) error {
	if w.ctx.Err() != nil {
		return ErrWorkerClosed
	}
	select {
	case w.jobs <- job:
		return nil
	case <-w.ctx.Done():
		return ErrWorkerClosed
	}
}

// Close cancels the running job's context and waits for the goroutine to exit.
func (w *Worker) Close() {
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

func (w *Worker) run() {
	defer close(w.done)
	defer close(w.outcomes)
	for {
		select {
		case <-w.ctx.Done():
			return
		case job := <-w.jobs:
			out := job.Run(w.ctx)
			select {
			case w.outcomes <- out:
			case <-w.ctx.Done():
				logging.PanelDebug("dropping outcome %s: worker closed", out.ID)
				return
			}
		}
	}
}
