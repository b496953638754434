package fetcher

import "time"

// maxCongestionBackoff is the cap on congestion-Nack backoff delay.
const maxCongestionBackoff = 10 * time.Second

// congestionBackoff computes the delay before the (n+1)-th retransmission
// following a congestion Nack: min(2^n, 10000) ms. Unlike the teacher's
// jittered exponential Backoff (ramp-up between client restarts), this is
// deliberately exact and unjittered — §8 tests the literal 2^k schedule.
//
// nCongestionRetries is frozen once the cap is hit (incremented only when
// the computed delay is below the cap), so delay stays pinned at the cap
// rather than continuing to grow. Preserve this; it mirrors the source's
// behavior (SPEC_FULL.md Open Questions).
func congestionBackoff(nCongestionRetries int) (delay time.Duration, nextN int) {
	ms := int64(1) << uint(nCongestionRetries)
	d := time.Duration(ms) * time.Millisecond
	if d >= maxCongestionBackoff {
		return maxCongestionBackoff, nCongestionRetries
	}
	return d, nCongestionRetries + 1
}
