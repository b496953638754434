// Package facenet provides the network-facing collaborators the core
// fetcher consumes: a Face for expressing Interests and receiving Data or
// Nacks, and a Scheduler for deferred callbacks. The spec treats both as
// external collaborators specified only through their interfaces (the
// core never depends on a concrete transport); this package supplies one
// concrete, UDP-datagram-based implementation so the CLI has something
// real to run against.
package facenet

import (
	"context"

	"github.com/ndn-tools/catchunks-go/internal/ndn"
)

// DataCallback is invoked when a Data reply to an expressed Interest arrives.
type DataCallback func(ndn.Interest, ndn.Data)

// NackCallback is invoked when a Nack reply to an expressed Interest arrives.
type NackCallback func(ndn.Interest, ndn.Nack)

// TimeoutCallback is invoked when an Interest's lifetime elapses unanswered.
type TimeoutCallback func(ndn.Interest)

// PendingHandle identifies one outstanding expressInterest registration.
type PendingHandle uint64

// Face offers asynchronous Interest/Data exchange.
type Face interface {
	// ExpressInterest sends interest and arranges for exactly one of
	// onData, onNack, or onTimeout to fire exactly once.
	ExpressInterest(ctx context.Context, interest ndn.Interest, onData DataCallback, onNack NackCallback, onTimeout TimeoutCallback) (PendingHandle, error)

	// RemovePendingInterest cancels a still-outstanding registration; the
	// associated callbacks will not subsequently fire.
	RemovePendingInterest(h PendingHandle)

	// Close releases any resources the Face holds.
	Close() error
}

// CancelToken identifies one scheduled callback.
type CancelToken uint64

// Scheduler defers callback execution and supports bulk cancellation.
type Scheduler interface {
	ScheduleEvent(delay int64 /* milliseconds */, cb func()) CancelToken
	CancelEvent(t CancelToken)
	CancelAllEvents()
}
