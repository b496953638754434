// Package metrics provides Prometheus metrics for the catchunks fetcher.
//
// Metrics mirror the statistics line printed under -S (internal/stats):
// segment progress, throughput, congestion window, and RTT percentiles,
// plus counters for how the run ended.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ndn-tools/catchunks-go/internal/stats"
)

// --- Run overview ---
var (
	fetchInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catchunks_fetch_info",
			Help: "Information about the current fetch (value always 1)",
		},
		[]string{"name", "discovery_mode"},
	)

	fetchElapsedSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catchunks_fetch_elapsed_seconds",
			Help: "Seconds since the fetch started",
		},
	)

	percentComplete = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catchunks_percent_complete",
			Help: "Percentage (0-100) of segments received so far (-1 if FinalBlockId is not yet known)",
		},
	)
)

// --- Segment and byte counters ---
var (
	segmentsReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catchunks_segments_received_total",
			Help: "Total Data segments received and reassembled",
		},
	)

	segmentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catchunks_segments_total",
			Help: "Total segment count once FinalBlockId is known (0 if unknown)",
		},
	)

	bytesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catchunks_bytes_received_total",
			Help: "Total content bytes received",
		},
	)

	throughputBytesPerSec = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catchunks_throughput_bytes_per_second",
			Help: "Interval throughput at the last statistics tick",
		},
	)
)

// --- Congestion control and RTT ---
var (
	windowSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catchunks_window_size",
			Help: "Current AIMD congestion window size, in segments",
		},
	)

	rttMeanSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catchunks_rtt_mean_seconds",
			Help: "Smoothed RTT estimate",
		},
	)

	rttPercentileSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catchunks_rtt_seconds",
			Help: "RTT percentiles from the run's t-digest",
		},
		[]string{"quantile"}, // "p50", "p90", "p99"
	)
)

// --- Outcomes ---
var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchunks_runs_total",
			Help: "Completed fetches by outcome",
		},
		[]string{"outcome"}, // "success", "runtime_error", "application_nack"
	)
)

// Collector adapts stats.Tick snapshots and terminal outcomes into the
// metrics above. It has no locking of its own beyond what's needed to keep
// RecordTick and RecordOutcome from racing the same gauge set, since both
// are only ever called from the single-threaded event loop in practice but
// the metrics HTTP server scrapes concurrently.
type Collector struct {
	mu   sync.Mutex
	name string
	mode string
}

// CollectorConfig names the fetch this collector reports on.
type CollectorConfig struct {
	Name          string
	DiscoveryMode string
}

// NewCollector creates a collector and registers its metrics with the
// default Prometheus registry, the same one metrics.Server exposes at
// /metrics.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry,
// useful for testing without colliding with the default registry's global
// state across test cases.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{name: cfg.Name, mode: cfg.DiscoveryMode}

	registry.MustRegister(
		fetchInfo,
		fetchElapsedSeconds,
		percentComplete,

		segmentsReceivedTotal,
		segmentsTotal,
		bytesReceivedTotal,
		throughputBytesPerSec,

		windowSize,
		rttMeanSeconds,
		rttPercentileSeconds,

		runsTotal,
	)

	fetchInfo.WithLabelValues(cfg.Name, cfg.DiscoveryMode).Set(1)
	percentComplete.Set(-1)

	return c
}

// RecordTick updates the gauges from one stats.Tick snapshot. Counters
// (segments and bytes received) are advanced by delta against the last
// tick's cumulative totals, mirroring how the teacher's collector turned
// cumulative stats fields into Prometheus counter Adds.
func (c *Collector) RecordTick(tick stats.Tick, prevSegments uint64, prevBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fetchElapsedSeconds.Set(tick.Elapsed.Seconds())
	percentComplete.Set(tick.PercentComplete())

	if tick.SegmentsReceived > prevSegments {
		segmentsReceivedTotal.Add(float64(tick.SegmentsReceived - prevSegments))
	}
	if tick.SegmentsTotal > 0 {
		segmentsTotal.Set(float64(tick.SegmentsTotal))
	}

	if tick.BytesTotal > prevBytes {
		bytesReceivedTotal.Add(float64(tick.BytesTotal - prevBytes))
	}
	if tick.Elapsed > 0 {
		throughputBytesPerSec.Set(float64(tick.BytesInterval))
	}

	windowSize.Set(tick.WindowSize)
	rttMeanSeconds.Set(tick.RTTMean.Seconds())
	if tick.RTTP50 > 0 {
		rttPercentileSeconds.WithLabelValues("p50").Set(tick.RTTP50.Seconds())
		rttPercentileSeconds.WithLabelValues("p90").Set(tick.RTTP90.Seconds())
		rttPercentileSeconds.WithLabelValues("p99").Set(tick.RTTP99.Seconds())
	}
}

// RecordOutcome increments the terminal outcome counter. outcome should be
// one of "success", "runtime_error", or "application_nack".
func (c *Collector) RecordOutcome(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	runsTotal.WithLabelValues(outcome).Inc()
}

// Duration is a convenience for callers building a final log line; it isn't
// used by RecordTick itself, which takes elapsed from the tick.
func Duration(start time.Time) time.Duration {
	return time.Since(start)
}
