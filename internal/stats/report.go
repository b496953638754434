package stats

import (
	"fmt"
	"strings"
	"time"
)

// Tick is a snapshot of progress at one statistics interval, mirroring the
// original_source consumer's printStatistics line but extended with the
// RTT-mean and window figures this spec calls for.
type Tick struct {
	Elapsed time.Duration

	SegmentsReceived uint64
	SegmentsTotal    uint64 // 0 if not yet known

	BytesTotal    int64
	BytesInterval int64

	WindowSize float64
	RTTMean    time.Duration

	RTTP50, RTTP90, RTTP99 time.Duration
}

// PercentComplete returns the percentage (0-100) of segments received so far, or -1
// if the total segment count is not yet known.
func (t Tick) PercentComplete() float64 {
	if t.SegmentsTotal == 0 {
		return -1
	}
	return float64(t.SegmentsReceived) / float64(t.SegmentsTotal) * 100
}

// FormatLine renders one human-readable statistics line for -S.
func FormatLine(t Tick, intervalDuration time.Duration) string {
	var b strings.Builder

	if pct := t.PercentComplete(); pct >= 0 {
		fmt.Fprintf(&b, "%5.1f%% ", pct)
	} else {
		fmt.Fprintf(&b, "  ?%% ")
	}

	avgThroughput := rate(t.BytesTotal, t.Elapsed)
	intervalThroughput := rate(t.BytesInterval, intervalDuration)

	fmt.Fprintf(&b, "segs=%d bytes=%s avg=%s/s int=%s/s window=%.2f rtt=%s",
		t.SegmentsReceived,
		FormatBytes(t.BytesTotal),
		FormatBytes(int64(avgThroughput)),
		FormatBytes(int64(intervalThroughput)),
		t.WindowSize,
		t.RTTMean.Round(time.Millisecond),
	)

	if t.RTTP50 > 0 {
		fmt.Fprintf(&b, " p50=%s p90=%s p99=%s",
			t.RTTP50.Round(time.Millisecond),
			t.RTTP90.Round(time.Millisecond),
			t.RTTP99.Round(time.Millisecond),
		)
	}

	return b.String()
}

func rate(bytes int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) / elapsed.Seconds()
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
