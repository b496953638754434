// Package stats tracks the statistics a fetch run reports while it is in
// progress and at completion: RTT percentiles, throughput, and window size.
//
// Unlike the teacher's per-client stats, every value here is written from
// a single goroutine (the event loop), so there is no locking: the
// concurrency model is cooperative single-threaded dispatch, not a pool of
// concurrent client processes.
package stats

import (
	"time"

	"github.com/influxdata/tdigest"
)

// RTTDigest accumulates raw (pre-clamp) RTT samples and exposes percentiles,
// complementing the control loop's own smoothed mean/variance with an
// independent, distribution-aware view of latency.
type RTTDigest struct {
	digest *tdigest.TDigest
	count  int64
}

// NewRTTDigest returns an empty digest with the teacher's compression
// setting (~100 centroids).
func NewRTTDigest() *RTTDigest {
	return &RTTDigest{digest: tdigest.NewWithCompression(100)}
}

// Add records one RTT sample.
func (d *RTTDigest) Add(rtt time.Duration) {
	if rtt < 0 {
		return
	}
	d.digest.Add(float64(rtt), 1)
	d.count++
}

// Count returns the number of samples recorded.
func (d *RTTDigest) Count() int64 { return d.count }

// Quantile returns the q-th percentile (0..1) RTT, or 0 if no samples
// have been recorded yet.
func (d *RTTDigest) Quantile(q float64) time.Duration {
	if d.count == 0 {
		return 0
	}
	return time.Duration(d.digest.Quantile(q))
}

// P50 returns the median RTT.
func (d *RTTDigest) P50() time.Duration { return d.Quantile(0.50) }

// P90 returns the 90th percentile RTT.
func (d *RTTDigest) P90() time.Duration { return d.Quantile(0.90) }

// P99 returns the 99th percentile RTT.
func (d *RTTDigest) P99() time.Duration { return d.Quantile(0.99) }
