// Package pipeline implements the windowed, AIMD-controlled segment
// scheduler: it keeps calculatedWindowSize SegmentFetchers in flight across
// a fixed array of pipe slots, grows the window in slow start then
// congestion avoidance, cuts it at most once per epoch on error, and
// detects the end of the content object once a FinalBlockId is learned.
//
// Grounded on the teacher's orchestrator.ClientManager (slot bookkeeping,
// callback wiring) and orchestrator.RampScheduler (jittered scheduling),
// generalized to the windowed-Interest-pipeline semantics of
// pipeline-interests.cpp.
package pipeline

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ndn-tools/catchunks-go/internal/eventloop"
	"github.com/ndn-tools/catchunks-go/internal/facenet"
	"github.com/ndn-tools/catchunks-go/internal/fetcher"
	"github.com/ndn-tools/catchunks-go/internal/ndn"
	"github.com/ndn-tools/catchunks-go/internal/rtt"
)

// DataCallback reports one successfully retrieved segment, in arrival
// order (not segment order).
type DataCallback func(interest ndn.Interest, data ndn.Data)

// FailureCallback reports that the pipeline has given up, with a reason.
// Posted onto the event loop, never called synchronously from within a
// Face callback.
type FailureCallback func(reason string)

// Options configures one Pipeline run. Numeric bounds are validated by
// internal/config before construction; Pipeline trusts its inputs.
type Options struct {
	StartPipelineSize  uint64
	MaxPipelineSize    uint64
	SlowStartThreshold uint64 // ssthresh; 0 disables (always slow start)

	WindowCutMultiplier float64 // applied to lastWindowSize on a cut

	MustBeFresh               bool
	InterestLifetime          time.Duration // 0 → derive from RTO, else fallback 4s
	MaxRetriesOnTimeoutOrNack int           // -1 unbounded

	RandomWaitMaxMs int64 // jitter upper bound for deferred fetches
	StartWait       bool  // true: jitter only the first round

	RTOMultiplierReset  bool // halve RTO multiplier on every Data, once per epoch
	NTimeoutBeforeReset int  // consecutive timeouts that trigger an RTT reset; 0 disables

	// OnRTTSample, if set, is invoked with each raw (pre-clamp) RTT sample
	// as it is recorded, so a caller can feed an independent percentile
	// tracker alongside the control loop's own smoothed mean/variance.
	OnRTTSample func(time.Duration)
}

type pipeSlot struct {
	fetcher    *fetcher.SegmentFetcher
	segmentNo  ndn.SegmentNo
	hasFetcher bool
}

// Pipeline drives one content object's segment retrieval to completion.
type Pipeline struct {
	face  facenet.Face
	sched facenet.Scheduler
	loop  *eventloop.Loop

	options Options
	rttEst  *rtt.Estimator

	onData    DataCallback
	onFailure FailureCallback

	prefix           ndn.Name
	nextSegmentNo    ndn.SegmentNo
	lastSegmentNo    ndn.SegmentNo
	excludeSegmentNo ndn.SegmentNo
	hasFinalBlockID  bool

	hasError   bool
	hasFailure bool

	currentWindowSize    float64
	calculatedWindowSize float64
	lastWindowSize       float64
	nMissingWindowEvents float64
	nConsecutiveTimeouts int
	isWindowCut          bool
	hasMultiplierChanged bool

	segmentFetchers []pipeSlot
	waitingPipes    []int
	waitingSegments []ndn.SegmentNo
}

// New constructs a Pipeline over face/sched/loop with the given options
// and a shared RTT estimator (the same estimator the Consumer may report
// statistics from).
func New(face facenet.Face, sched facenet.Scheduler, loop *eventloop.Loop, options Options, rttEst *rtt.Estimator) *Pipeline {
	return &Pipeline{
		face:            face,
		sched:           sched,
		loop:            loop,
		options:         options,
		rttEst:          rttEst,
		segmentFetchers: make([]pipeSlot, options.MaxPipelineSize),
	}
}

// RunWithExcludedSegment starts the pipeline using a seed Data already in
// hand (e.g. the discovery probe's reply): its segment number is excluded
// from fetching and, if it carries a FinalBlockId, the final segment is
// already known.
func (p *Pipeline) RunWithExcludedSegment(seedData ndn.Data, onData DataCallback, onFailure FailureCallback) {
	p.onData = onData
	p.onFailure = onFailure

	p.prefix = seedData.Name.Prefix()
	if segNo, ok := seedData.Name.LastSegment(); ok {
		p.excludeSegmentNo = segNo
	}
	if seedData.HasFinalBlockID {
		p.hasFinalBlockID = true
		p.lastSegmentNo = seedData.FinalBlockID
	}

	p.start()
}

// RunWithName starts the pipeline against a fully versioned name with no
// seed segment to exclude.
func (p *Pipeline) RunWithName(nameWithVersion ndn.Name, onData DataCallback, onFailure FailureCallback) {
	p.onData = onData
	p.onFailure = onFailure

	p.prefix = nameWithVersion
	p.excludeSegmentNo = ndn.NoFinalBlock

	p.start()
}

func (p *Pipeline) start() {
	for slot := uint64(0); slot < p.options.StartPipelineSize; slot++ {
		p.deferredFetchNextSegment(int(slot))
	}
	for slot := p.options.StartPipelineSize; slot < p.options.MaxPipelineSize; slot++ {
		p.waitingPipes = append(p.waitingPipes, int(slot))
	}

	w := float64(p.options.StartPipelineSize)
	p.currentWindowSize = w
	p.calculatedWindowSize = w
	p.lastWindowSize = w
	p.nMissingWindowEvents = w
}

// fetchNextSegment draws the next segment number for pipeNo and expresses
// an Interest for it. Returns false if there is nothing left to fetch for
// this slot (the final segment is known and exhausted, or the pipeline has
// already latched a non-fatal failure pending resolution).
func (p *Pipeline) fetchNextSegment(pipeNo int) bool {
	if p.hasFailure {
		p.fail("Fetching terminated but no final segment number has been found")
		return false
	}

	var segmentNo ndn.SegmentNo
	if len(p.waitingSegments) > 0 {
		segmentNo = p.waitingSegments[0]
		p.waitingSegments = p.waitingSegments[1:]
	} else {
		segmentNo = p.nextSegmentNo
		p.nextSegmentNo++
	}

	if segmentNo == p.excludeSegmentNo {
		segmentNo = p.nextSegmentNo
		p.nextSegmentNo++
	}

	if p.hasFinalBlockID && segmentNo > p.lastSegmentNo {
		return false
	}

	interest := ndn.Interest{
		Name:                p.prefix.AppendSegment(segmentNo),
		MustBeFresh:         p.options.MustBeFresh,
		MaxSuffixComponents: 1,
		Lifetime:            p.getInterestLifetime(),
		Nonce:               ndn.NewNonce(),
	}

	slotNo := pipeNo
	targetSegment := segmentNo
	sf := fetcher.New(fetcher.Config{
		Face:              p.face,
		Loop:              p.loop,
		Interest:          interest,
		MaxNackRetries:    p.options.MaxRetriesOnTimeoutOrNack,
		MaxTimeoutRetries: p.options.MaxRetriesOnTimeoutOrNack,
		OnData: func(i ndn.Interest, d ndn.Data, _ *fetcher.SegmentFetcher) {
			p.handleData(i, d, slotNo)
		},
		OnNack: func(_ ndn.Interest, reason string) {
			p.handleFail(reason, slotNo)
		},
		OnTimeout: func(_ ndn.Interest, reason string) {
			p.handleFail(reason, slotNo)
		},
		OnError: func(_ ndn.Interest, reason string) {
			p.handleError(reason, slotNo)
		},
		GetInterestLifetime: p.getInterestLifetime,
		CanSend: func() bool {
			return p.canSend(targetSegment, slotNo)
		},
	})

	p.segmentFetchers[pipeNo] = pipeSlot{fetcher: sf, segmentNo: segmentNo, hasFetcher: true}
	return true
}

// deferredFetchNextSegment schedules fetchNextSegment after a uniform
// random delay in [0, RandomWaitMaxMs], spreading burst issuance across
// contending consumers; with no jitter configured it calls through
// immediately.
func (p *Pipeline) deferredFetchNextSegment(pipeNo int) {
	if p.options.RandomWaitMaxMs > 0 {
		delay := rand.Int64N(p.options.RandomWaitMaxMs + 1)
		if delay > 0 {
			p.sched.ScheduleEvent(delay, func() {
				p.fetchNextSegment(pipeNo)
			})
			return
		}
	}
	p.fetchNextSegment(pipeNo)
}

// getInterestLifetime picks the lifetime for the next (re)transmission: the
// configured value if nonzero, else the current RTO estimate, else a 4s
// fallback, always clamped to [500ms, 15s].
func (p *Pipeline) getInterestLifetime() time.Duration {
	lifetime := p.options.InterestLifetime
	if lifetime == 0 {
		if rto := p.rttEst.GetRTO(); rto > 0 {
			lifetime = rto
		} else {
			lifetime = 4 * time.Second
		}
	}
	return clampDuration(lifetime, 500*time.Millisecond, 15*time.Second)
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// canSend lets a fetcher's scheduled send veto itself if the window has
// contracted below it since it was deferred: the slot and segment number
// are pushed back onto the waiting queues for a later draw.
func (p *Pipeline) canSend(segmentNo ndn.SegmentNo, pipeNo int) bool {
	if p.currentWindowSize <= p.calculatedWindowSize {
		return true
	}
	p.currentWindowSize--
	p.waitingPipes = append(p.waitingPipes, pipeNo)
	p.waitingSegments = append(p.waitingSegments, segmentNo)
	return false
}

// handleData processes a segment delivery: forwards it to the Consumer,
// feeds the RTT estimator, detects a newly learned FinalBlockId, and
// grows the window.
func (p *Pipeline) handleData(interest ndn.Interest, data ndn.Data, pipeNo int) {
	if p.hasError {
		return
	}

	p.nConsecutiveTimeouts = 0
	p.onData(interest, data)
	if len(p.segmentFetchers) == 0 {
		// onData cancelled the pipeline, which released the slot array.
		return
	}

	if slot := p.segmentFetchers[pipeNo]; slot.hasFetcher {
		raw := p.rttEst.AddRTTMeasurement(slot.fetcher)
		if raw >= 0 && p.options.OnRTTSample != nil {
			p.options.OnRTTSample(raw)
		}
	}

	if !p.hasMultiplierChanged && p.options.RTOMultiplierReset {
		p.rttEst.DecrementRTOMultiplier()
		p.hasMultiplierChanged = true
	}

	if !p.hasFinalBlockID && data.HasFinalBlockID {
		p.lastSegmentNo = data.FinalBlockID
		p.hasFinalBlockID = true

		for _, slot := range p.segmentFetchers {
			if !slot.hasFetcher {
				continue
			}
			if slot.segmentNo > p.lastSegmentNo {
				slot.fetcher.Cancel()
			} else if slot.fetcher.HasError() {
				p.fail(fmt.Sprintf("Failure retrieving segment #%d", slot.segmentNo))
				return
			}
		}
	}

	p.currentWindowSize--
	p.waitingPipes = append(p.waitingPipes, pipeNo)

	if p.options.SlowStartThreshold == 0 || p.calculatedWindowSize <= float64(p.options.SlowStartThreshold) {
		p.calculatedWindowSize++
	} else {
		p.calculatedWindowSize += 1 / p.lastWindowSize
	}
	p.calculatedWindowSize = clampFloat(p.calculatedWindowSize, float64(p.options.StartPipelineSize), float64(p.options.MaxPipelineSize))

	for p.currentWindowSize < p.calculatedWindowSize && len(p.waitingPipes) > 0 {
		slot := p.waitingPipes[0]
		p.waitingPipes = p.waitingPipes[1:]
		if p.options.StartWait {
			p.fetchNextSegment(slot)
		} else {
			p.deferredFetchNextSegment(slot)
		}
		p.currentWindowSize++
	}

	p.handleWindowEvent()
}

// handleError is the transient per-timeout notification fired before a
// retry goes out: it inflates the RTO multiplier and may cut the window,
// both at most once per epoch.
func (p *Pipeline) handleError(_ string, _ int) {
	if p.hasError {
		return
	}

	p.nConsecutiveTimeouts++

	if !p.hasMultiplierChanged {
		p.rttEst.IncrementRTOMultiplier()
		p.hasMultiplierChanged = true
	}

	if !p.isWindowCut {
		cut := p.lastWindowSize * p.options.WindowCutMultiplier
		cut = clampFloat(cut, float64(p.options.StartPipelineSize), float64(p.options.MaxPipelineSize))
		p.calculatedWindowSize = cut
		p.isWindowCut = true
		p.rttEst.IncrementRTOMultiplier()
	}

	if p.options.NTimeoutBeforeReset > 0 && p.nConsecutiveTimeouts == p.options.NTimeoutBeforeReset {
		p.rttEst.Reset()
	}

	p.handleWindowEvent()
}

// handleWindowEvent closes out the current epoch once every event
// outstanding at its start has been accounted for, resetting the two
// once-per-epoch latches.
func (p *Pipeline) handleWindowEvent() {
	p.nMissingWindowEvents--
	if p.nMissingWindowEvents <= 0 {
		p.isWindowCut = false
		p.hasMultiplierChanged = false
		p.nMissingWindowEvents = p.calculatedWindowSize
		p.lastWindowSize = p.calculatedWindowSize
	}
}

// handleFail processes one SegmentFetcher's terminal Nack/timeout
// exhaustion. Whether it is fatal depends on whether the final segment
// number is already known.
func (p *Pipeline) handleFail(reason string, pipeNo int) {
	if p.hasError {
		return
	}

	slot := p.segmentFetchers[pipeNo]

	if p.hasFinalBlockID && slot.segmentNo <= p.lastSegmentNo {
		p.fail(reason)
		return
	}

	if !p.hasFinalBlockID {
		allStopped := true
		for _, s := range p.segmentFetchers {
			if !s.hasFetcher {
				continue
			}
			if s.segmentNo > slot.segmentNo {
				s.fetcher.Cancel()
			} else if s.fetcher.IsRunning() {
				allStopped = false
			}
		}
		if allStopped {
			p.fail("Fetching terminated but no final segment number has been found")
		} else {
			p.hasFailure = true
		}
	}
}

// fail latches the terminal error state, cancels every fetcher, and posts
// onFailure onto the event loop exactly once.
func (p *Pipeline) fail(reason string) {
	if p.hasError {
		return
	}
	p.cancel()
	p.hasError = true
	p.hasFailure = true
	if p.onFailure != nil {
		p.loop.Post(func() { p.onFailure(reason) })
	}
}

// Cancel stops every active fetcher and releases the slot array.
// Synchronous and idempotent.
func (p *Pipeline) Cancel() {
	p.cancel()
}

func (p *Pipeline) cancel() {
	for _, s := range p.segmentFetchers {
		if s.hasFetcher {
			s.fetcher.Cancel()
		}
	}
	p.segmentFetchers = p.segmentFetchers[:0]
	p.currentWindowSize = 0
}

// SetWindowSize overrides the target window, clamped to
// [StartPipelineSize, MaxPipelineSize]. Always succeeds.
func (p *Pipeline) SetWindowSize(size float64) bool {
	p.calculatedWindowSize = clampFloat(size, float64(p.options.StartPipelineSize), float64(p.options.MaxPipelineSize))
	return true
}

// GetWindowSize returns the current target window.
func (p *Pipeline) GetWindowSize() float64 {
	return p.calculatedWindowSize
}

// HasError reports whether the pipeline has latched a fatal failure.
func (p *Pipeline) HasError() bool { return p.hasError }
