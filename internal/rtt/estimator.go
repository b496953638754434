// Package rtt implements the Jacobson/Karn-style smoothed round-trip-time
// estimator that feeds both the per-Interest lifetime and the pipeline's
// window-decrease policy.
package rtt

import "time"

const (
	// minRTT is the floor for any raw measurement before rttMinCalc is learned.
	minRTT = 10 * time.Millisecond
	// maxRTT is the ceiling applied to every clamped sample.
	maxRTT = 2000 * time.Millisecond
	// initialRTO is used by callers before any sample has been recorded.
	initialRTO = 250 * time.Millisecond

	meanWeightOld = 0.3
	meanWeightNew = 0.7
	varWeightOld  = 0.125
	varWeightNew  = 0.875

	nSamples = 5

	minRTOMultiplier = 1.0
	maxRTOMultiplier = 32.0
)

// Sampler is the minimal view of a SegmentFetcher the estimator needs:
// its list of transmission (send) timestamps and, once stopped, its
// arrival timestamp. fetcher.SegmentFetcher implements this.
type Sampler interface {
	TransmissionTimes() []time.Time
	ArrivalTime() (time.Time, bool)
}

// Estimator maintains smoothed RTT mean/variance and an RTO multiplier.
// Not safe for concurrent use; it is driven exclusively from the
// Pipeline's single event-loop goroutine.
type Estimator struct {
	rttMean  time.Duration
	rttVar   time.Duration
	lastRTT  time.Duration
	haveMean bool

	rttMinCalc     time.Duration
	haveRTTMinCalc bool

	rtoMulti float64

	history []time.Duration
}

// New returns a freshly reset Estimator.
func New() *Estimator {
	e := &Estimator{}
	e.reset()
	return e
}

func (e *Estimator) reset() {
	e.rttMean = 0
	e.haveMean = false
	e.rttVar = 0
	e.lastRTT = 0
	e.rttMinCalc = 0
	e.haveRTTMinCalc = false
	e.rtoMulti = 1
	e.history = e.history[:0]
}

// Reset restores the estimator to its initial, sample-free state.
func (e *Estimator) Reset() {
	e.reset()
}

// AddRTTMeasurement records one RTT sample attributed to fetcher per
// Karn's rule and returns the raw (pre-clamp) measured RTT, or -1 if the
// fetcher has no arrival time or recorded no transmissions; no sample is
// recorded in that case.
func (e *Estimator) AddRTTMeasurement(f Sampler) time.Duration {
	times := f.TransmissionTimes()
	arrival, ok := f.ArrivalTime()
	if !ok || len(times) == 0 {
		return -1
	}

	var raw time.Duration

	if len(times) == 1 {
		// No retry: unambiguous sample, may lower the learned floor. The
		// floor update happens before the clamp below reads it, so this
		// sample is never clamped against its own update.
		raw = arrival.Sub(times[0])
		if !e.haveRTTMinCalc || raw < e.rttMinCalc {
			e.rttMinCalc = raw
			e.haveRTTMinCalc = true
		}
	} else {
		// Retransmitted: walk newest-first, take the first plausible one
		// against the floor as it stood before this measurement.
		floor := minRTT
		if e.haveRTTMinCalc {
			floor = e.rttMinCalc
		}
		raw = arrival.Sub(times[len(times)-1])
		for i := len(times) - 1; i >= 0; i-- {
			candidate := arrival.Sub(times[i])
			raw = candidate
			if candidate >= floor {
				break
			}
		}
	}

	rawMeasured := raw

	floor := minRTT
	if e.haveRTTMinCalc {
		floor = e.rttMinCalc
	}
	clamped := raw
	if clamped < floor {
		clamped = floor
	}
	if clamped > maxRTT {
		clamped = maxRTT
	}

	e.pushSample(clamped)
	e.lastRTT = clamped

	return rawMeasured
}

func (e *Estimator) pushSample(s time.Duration) {
	e.history = append(e.history, s)
	if len(e.history) > nSamples {
		e.history = e.history[len(e.history)-nSamples:]
	}

	mean := float64(e.history[0])
	variance := mean / 2
	for i := 1; i < len(e.history); i++ {
		sample := float64(e.history[i])
		variance = variance*varWeightOld + abs(sample-mean)*varWeightNew
		mean = mean*meanWeightOld + sample*meanWeightNew
	}

	e.rttMean = time.Duration(mean)
	e.rttVar = time.Duration(variance)
	e.haveMean = true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// GetRTO returns the current retransmission timeout, or -1 if no sample
// has been recorded yet.
func (e *Estimator) GetRTO() time.Duration {
	if !e.haveMean {
		return -1
	}
	return time.Duration(e.rtoMulti * float64(e.rttMean+4*e.rttVar))
}

// RTTMean returns the current smoothed mean, or -1 if unset.
func (e *Estimator) RTTMean() time.Duration {
	if !e.haveMean {
		return -1
	}
	return e.rttMean
}

// RTTVar returns the current smoothed variance.
func (e *Estimator) RTTVar() time.Duration {
	return e.rttVar
}

// LastRTT returns the most recently recorded clamped sample.
func (e *Estimator) LastRTT() time.Duration {
	return e.lastRTT
}

// RTOMultiplier returns the current RTO inflation factor.
func (e *Estimator) RTOMultiplier() float64 {
	return e.rtoMulti
}

// IncrementRTOMultiplier doubles the multiplier, clamped to 32.
func (e *Estimator) IncrementRTOMultiplier() float64 {
	if e.rtoMulti*2 > maxRTOMultiplier {
		e.rtoMulti = maxRTOMultiplier
	} else {
		e.rtoMulti *= 2
	}
	return e.rtoMulti
}

// DecrementRTOMultiplier halves the multiplier, clamped to 1.
func (e *Estimator) DecrementRTOMultiplier() float64 {
	if e.rtoMulti/2 < minRTOMultiplier {
		e.rtoMulti = minRTOMultiplier
	} else {
		e.rtoMulti /= 2
	}
	return e.rtoMulti
}
