// Package eventloop provides the single-threaded cooperative dispatcher the
// fetcher core runs on. Every Face and Scheduler callback is posted here so
// that Pipeline, SegmentFetcher, and RttEstimator state transitions happen
// strictly in event order with no locking (§5 of the design).
package eventloop

import "context"

// Loop serializes task execution onto one goroutine.
type Loop struct {
	tasks chan func()
	done  chan struct{}
}

// New creates a Loop with the given task queue depth.
func New(queueDepth int) *Loop {
	return &Loop{
		tasks: make(chan func(), queueDepth),
		done:  make(chan struct{}),
	}
}

// Post enqueues fn to run on the loop goroutine. Safe to call from any
// goroutine (Face readers, timers, signal handlers).
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Run drains the task queue on the calling goroutine until ctx is
// cancelled or Stop is called. This is the "processEvents()" blocking call.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-ctx.Done():
			return
		case <-l.done:
			return
		}
	}
}

// Stop unblocks Run and causes subsequent Post calls to be dropped.
func (l *Loop) Stop() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
}
