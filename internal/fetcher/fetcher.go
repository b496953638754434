package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/ndn-tools/catchunks-go/internal/eventloop"
	"github.com/ndn-tools/catchunks-go/internal/facenet"
	"github.com/ndn-tools/catchunks-go/internal/ndn"
)

// Unbounded marks a retry budget (MaxNackRetries / MaxTimeoutRetries) as
// never exhausting.
const Unbounded = -1

// DataCallback reports a successfully retrieved Data for interest.
type DataCallback func(interest ndn.Interest, data ndn.Data, f *SegmentFetcher)

// TerminalCallback reports that a fetcher gave up, with a human-readable
// reason. Used for both Nack and timeout terminal failures.
type TerminalCallback func(interest ndn.Interest, reason string)

// TransientCallback fires once per timeout, before the retry goes out —
// a notification the Pipeline can use to adjust its window ahead of the
// retransmission (§4.3.4 handleError).
type TransientCallback func(interest ndn.Interest, reason string)

// LifetimeFunc returns the interest lifetime to use for the next
// (re)transmission.
type LifetimeFunc func() time.Duration

// CanSendFunc lets the owning Pipeline veto a send before it reaches the
// wire (used when a deferred fetch wakes up after the window has already
// contracted below it).
type CanSendFunc func() bool

// Config holds the construction-time parameters for one SegmentFetcher.
type Config struct {
	Face     facenet.Face
	Loop     *eventloop.Loop
	Interest ndn.Interest

	MaxNackRetries    int
	MaxTimeoutRetries int

	OnData    DataCallback
	OnNack    TerminalCallback
	OnTimeout TerminalCallback
	OnError   TransientCallback

	GetInterestLifetime LifetimeFunc
	CanSend             CanSendFunc
}

// SegmentFetcher drives a single Interest to a terminal outcome: a
// received Data, or a terminal failure reported via OnNack/OnTimeout.
type SegmentFetcher struct {
	face facenet.Face
	loop *eventloop.Loop

	interest ndn.Interest

	maxNackRetries    int
	maxTimeoutRetries int

	onData    DataCallback
	onNack    TerminalCallback
	onTimeout TerminalCallback
	onError   TransientCallback

	getLifetime LifetimeFunc
	canSend     CanSendFunc

	nNacks             int
	nTimeouts          int
	nCongestionRetries int

	transmissionTimes []time.Time
	arrivalTime       time.Time
	hasArrival        bool

	state    State
	hasError bool

	pendingHandle facenet.PendingHandle
	hasPending    bool
}

// New constructs a SegmentFetcher and immediately sends its first Interest.
func New(cfg Config) *SegmentFetcher {
	f := &SegmentFetcher{
		face:              cfg.Face,
		loop:              cfg.Loop,
		interest:          cfg.Interest,
		maxNackRetries:    cfg.MaxNackRetries,
		maxTimeoutRetries: cfg.MaxTimeoutRetries,
		onData:            cfg.OnData,
		onNack:            cfg.OnNack,
		onTimeout:         cfg.OnTimeout,
		onError:           cfg.OnError,
		getLifetime:       cfg.GetInterestLifetime,
		canSend:           cfg.CanSend,
		state:             Running,
	}
	f.send(cfg.Interest)
	return f
}

// State reports the fetcher's current lifecycle state.
func (f *SegmentFetcher) State() State { return f.state }

// IsRunning reports whether the fetcher may still receive callbacks.
func (f *SegmentFetcher) IsRunning() bool { return f.state == Running }

// HasError reports whether this fetcher reached Stopped via a terminal
// Nack or exhausted timeout retries, as opposed to a received Data or an
// external Cancel.
func (f *SegmentFetcher) HasError() bool { return f.hasError }

// TransmissionTimes returns the monotonic send timestamps recorded so
// far, satisfying rtt.Sampler.
func (f *SegmentFetcher) TransmissionTimes() []time.Time { return f.transmissionTimes }

// ArrivalTime returns the time Data arrived, satisfying rtt.Sampler.
// Only meaningful once the fetcher is Stopped via a successful data
// delivery; ok is false otherwise (SPEC_FULL.md Open Questions: the
// "no arrival" case is left explicitly undefined, never fed to the
// estimator, not approximated as zero).
func (f *SegmentFetcher) ArrivalTime() (time.Time, bool) {
	return f.arrivalTime, f.hasArrival
}

// GetRetrieveTime returns the time between the last transmission and
// arrival once Stopped, or 0 if the fetcher never stopped via arrival.
func (f *SegmentFetcher) GetRetrieveTime() time.Duration {
	if f.state != Stopped || len(f.transmissionTimes) == 0 || !f.hasArrival {
		return 0
	}
	return f.arrivalTime.Sub(f.transmissionTimes[len(f.transmissionTimes)-1])
}

// send dispatches interest over the Face unless canSend vetoes it.
func (f *SegmentFetcher) send(interest ndn.Interest) {
	if f.canSend != nil && !f.canSend() {
		f.state = Stopped
		return
	}

	f.transmissionTimes = append(f.transmissionTimes, time.Now())

	handle, err := f.face.ExpressInterest(context.Background(), interest, f.handleData, f.handleNack, f.handleTimeout)
	if err != nil {
		f.state = Stopped
		return
	}
	f.pendingHandle = handle
	f.hasPending = true
}

// Cancel stops the fetcher and removes any pending registration or
// scheduled backoff. Idempotent.
func (f *SegmentFetcher) Cancel() {
	if f.state != Running {
		return
	}
	f.state = Stopped
	if f.hasPending {
		f.face.RemovePendingInterest(f.pendingHandle)
		f.hasPending = false
	}
}

func (f *SegmentFetcher) handleData(interest ndn.Interest, data ndn.Data) {
	if !f.IsRunning() {
		return
	}
	f.arrivalTime = time.Now()
	f.hasArrival = true
	f.state = Stopped
	f.onData(interest, data, f)
}

func (f *SegmentFetcher) handleNack(interest ndn.Interest, nack ndn.Nack) {
	if !f.IsRunning() {
		return
	}

	if f.maxNackRetries != Unbounded {
		f.nNacks++
	}

	withinBudget := f.maxNackRetries == Unbounded || f.nNacks <= f.maxNackRetries
	if !withinBudget {
		f.state = Stopped
		f.hasError = true
		f.onNack(interest, "Reached the maximum number of nack retries")
		return
	}

	newInterest := interest.RefreshNonce()
	if f.getLifetime != nil {
		newInterest = newInterest.WithLifetime(f.getLifetime())
	}

	switch nack.Reason {
	case ndn.NackDuplicate:
		f.send(newInterest)
	case ndn.NackCongestion:
		delay, next := congestionBackoff(f.nCongestionRetries)
		f.nCongestionRetries = next
		time.AfterFunc(delay, func() {
			f.loop.Post(func() {
				if f.IsRunning() {
					f.send(newInterest)
				}
			})
		})
	default:
		f.state = Stopped
		f.hasError = true
		f.onNack(interest, fmt.Sprintf("Nack: %s", nack.Reason))
	}
}

func (f *SegmentFetcher) handleTimeout(interest ndn.Interest) {
	if !f.IsRunning() {
		return
	}

	if f.maxTimeoutRetries != Unbounded {
		f.nTimeouts++
	}

	withinBudget := f.maxTimeoutRetries == Unbounded || f.nTimeouts <= f.maxTimeoutRetries
	if !withinBudget {
		f.state = Stopped
		f.hasError = true
		f.onTimeout(interest, "Reached the maximum number of timeout retries")
		return
	}

	if f.onError != nil {
		f.onError(interest, "Timeout")
	}

	newInterest := interest.RefreshNonce()
	if f.getLifetime != nil {
		newInterest = newInterest.WithLifetime(f.getLifetime())
	}
	f.send(newInterest)
}
