// Package consumer owns one fetch run end to end: it drives discovery,
// starts the pipeline, reassembles segments into contiguous output, and
// reports periodic statistics, all from the single goroutine that calls
// Run.
//
// Grounded on the teacher's orchestrator.Orchestrator: the same "build
// collaborators in New, block in Run until a signal/ctx/completion event,
// map the outcome to a result" shape, generalized from an HLS client swarm
// to one segmented content fetch.
package consumer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ndn-tools/catchunks-go/internal/discovery"
	"github.com/ndn-tools/catchunks-go/internal/eventloop"
	"github.com/ndn-tools/catchunks-go/internal/facenet"
	"github.com/ndn-tools/catchunks-go/internal/logging"
	"github.com/ndn-tools/catchunks-go/internal/ndn"
	"github.com/ndn-tools/catchunks-go/internal/pipeline"
	"github.com/ndn-tools/catchunks-go/internal/rtt"
	"github.com/ndn-tools/catchunks-go/internal/stats"
)

// Exit codes, per the command-line surface's documented mapping.
const (
	ExitSuccess         = 0
	ExitRuntimeError    = 1
	ExitApplicationNack = 3
)

// StatTickFunc is invoked on every statistics tick, in addition to the
// Consumer's own stderr line, letting callers (a Prometheus collector, a
// TUI program) observe the same snapshot without the Consumer importing
// either package.
type StatTickFunc func(stats.Tick)

// FinishFunc is invoked exactly once when the run reaches a terminal
// outcome, with the same exit code and reason the caller's Run result
// carries, letting a Prometheus collector or TUI program record or
// display the outcome without the Consumer importing either package.
type FinishFunc func(code int, reason string)

// MetricsServer is the subset of metrics.Server that Run fans out under its
// errgroup; Config accepts an interface so this package does not need to
// import the metrics package's HTTP/Prometheus machinery directly.
type MetricsServer interface {
	Start() error
	Shutdown(context.Context) error
}

// TUIProgram is the subset of a bubbletea program's lifecycle that Run fans
// out under its errgroup alongside the fetch and the metrics server.
type TUIProgram interface {
	Run() (any, error)
}

// Config holds the collaborators and parameters for one Consumer run.
type Config struct {
	Face  facenet.Face
	Sched facenet.Scheduler
	Loop  *eventloop.Loop

	Logger *slog.Logger
	Trace  *logging.WireTraceHandler

	RTT    *rtt.Estimator
	Digest *stats.RTTDigest

	Output io.Writer

	Name              string // positional content name, with or without a version
	SkipDiscovery     bool
	DiscoveryMode     string
	IterativeTimeouts int
	MustBeFresh       bool
	InterestLifetime  time.Duration

	Pipeline pipeline.Options

	StatsEnabled   bool
	StatIntervalMs int64 // 0 => 500ms default

	// Progress, when set, is driven from statTick instead of (or alongside)
	// the logged stats line: the non-TUI "-S without -tui" progress bar.
	Progress *progressbar.ProgressBar

	// Metrics and TUI, when set, run concurrently with the fetch under one
	// errgroup.Group; either returning an error, or the TUI program
	// quitting on its own, tears down the whole run.
	Metrics MetricsServer
	TUI     TUIProgram

	OnStatTick StatTickFunc
	OnFinish   FinishFunc
}

// Consumer drives one fetch to completion.
type Consumer struct {
	cfg Config

	prefix ndn.Name

	pipe *pipeline.Pipeline
	disc *discovery.Discovery

	bufferedData map[ndn.SegmentNo]ndn.Data
	nextToPrint  ndn.SegmentNo

	segmentsReceived uint64
	bytesTotal       int64
	bytesAtLastTick  int64

	hasFinalBlockID bool
	lastSegmentNo   ndn.SegmentNo

	startTime    time.Time
	lastTickTime time.Time

	hasStatToken bool
	statToken    facenet.CancelToken

	cancelRun context.CancelFunc

	done     bool
	exitCode int
	failure  string
}

// New constructs a Consumer. The content name is parsed but discovery and
// the pipeline are not started until Run is called.
func New(cfg Config) (*Consumer, error) {
	prefix, err := ndn.ParseName(cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("consumer: invalid content name %q: %w", cfg.Name, err)
	}
	if cfg.StatIntervalMs == 0 {
		cfg.StatIntervalMs = 500
	}

	c := &Consumer{
		cfg:          cfg,
		prefix:       prefix,
		bufferedData: make(map[ndn.SegmentNo]ndn.Data),
	}

	if cfg.Digest != nil {
		cfg.Pipeline.OnRTTSample = cfg.Digest.Add
	}
	c.pipe = pipeline.New(cfg.Face, cfg.Sched, cfg.Loop, cfg.Pipeline, cfg.RTT)
	return c, nil
}

// Run starts the fetch and blocks until it completes, fails, or ctx is
// cancelled. It returns one of the ExitXxx codes.
//
// The fetch itself, the optional metrics HTTP server, and the optional TUI
// program run concurrently under one errgroup.Group: a failure (or the TUI
// quitting on its own, e.g. the user pressed q) cancels the shared context
// and tears the others down.
func (c *Consumer) Run(ctx context.Context) int {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancelRun = cancel
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		c.runFetch(gctx)
		return nil
	})

	if c.cfg.Metrics != nil {
		g.Go(func() error {
			if err := c.cfg.Metrics.Start(); err != nil {
				return fmt.Errorf("consumer: metrics server: %w", err)
			}
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()
			return c.cfg.Metrics.Shutdown(shutdownCtx)
		})
	}

	if c.cfg.TUI != nil {
		g.Go(func() error {
			_, err := c.cfg.TUI.Run()
			cancel() // the dashboard exiting ends the whole run
			return err
		})
	}

	if err := g.Wait(); err != nil {
		if c.cfg.Logger != nil {
			c.cfg.Logger.Error("run_group_error", "error", err)
		}
		if !c.done {
			// The fetch itself never reached a terminal outcome (a
			// collaborator — the metrics server, the TUI — failed or quit
			// first and cancelled the shared context out from under it).
			c.exitCode = ExitRuntimeError
		}
	}
	return c.exitCode
}

// runFetch drives discovery/the pipeline and blocks on the event loop; it
// is the errgroup member that does the actual NDN exchange.
func (c *Consumer) runFetch(ctx context.Context) {
	c.startTime = time.Now()
	c.lastTickTime = c.startTime

	if c.cfg.SkipDiscovery {
		c.pipe.RunWithName(c.prefix, c.onData, c.onFailure)
	} else {
		c.disc = discovery.New(discovery.Config{
			Face:              c.cfg.Face,
			Loop:              c.cfg.Loop,
			Mode:              c.cfg.DiscoveryMode,
			Prefix:            c.prefix,
			MustBeFresh:       c.cfg.MustBeFresh,
			InterestLifetime:  c.cfg.InterestLifetime,
			IterativeTimeouts: c.cfg.IterativeTimeouts,
		})
		c.disc.Run(c.onDiscoverySuccess, c.onDiscoveryFailure)
	}

	if c.cfg.StatsEnabled {
		c.scheduleStatTick()
	}

	c.cfg.Loop.Run(ctx)
}

func (c *Consumer) onDiscoverySuccess(seed ndn.Data) {
	if seed.ContentType == ndn.ContentTypeNack {
		c.finishApplicationNack(seed.Name)
		return
	}

	c.ingest(ndn.Interest{Name: seed.Name}, seed)
	if c.hasFinalBlockID && c.nextToPrint > c.lastSegmentNo {
		c.finish(ExitSuccess, "")
		return
	}
	c.pipe.RunWithExcludedSegment(seed, c.onData, c.onFailure)
}

func (c *Consumer) onDiscoveryFailure(reason string) {
	c.finish(ExitRuntimeError, "discovery failed: "+reason)
}

func (c *Consumer) onData(interest ndn.Interest, data ndn.Data) {
	if c.done {
		return
	}

	if data.ContentType == ndn.ContentTypeNack {
		c.pipe.Cancel()
		c.finishApplicationNack(data.Name)
		return
	}

	if c.cfg.Trace != nil {
		c.cfg.Trace.TraceData(interest, data, c.cfg.RTT.LastRTT())
	}

	c.ingest(interest, data)

	if c.hasFinalBlockID && c.nextToPrint > c.lastSegmentNo {
		c.finish(ExitSuccess, "")
	}
}

// ingest records one segment's Data, flushing as much of the contiguous
// output prefix as is now available.
func (c *Consumer) ingest(_ ndn.Interest, data ndn.Data) {
	if data.HasFinalBlockID && !c.hasFinalBlockID {
		c.hasFinalBlockID = true
		c.lastSegmentNo = data.FinalBlockID
	}

	segNo, ok := data.Name.LastSegment()
	if !ok {
		segNo = 0
	}

	c.bufferedData[segNo] = data
	c.segmentsReceived++
	c.bytesTotal += int64(len(data.Content))

	for {
		d, ok := c.bufferedData[c.nextToPrint]
		if !ok {
			break
		}
		if c.cfg.Output != nil {
			_, _ = c.cfg.Output.Write(d.Content)
		}
		delete(c.bufferedData, c.nextToPrint)
		c.nextToPrint++
	}
}

func (c *Consumer) onFailure(reason string) {
	c.finish(ExitRuntimeError, reason)
}

func (c *Consumer) finishApplicationNack(name ndn.Name) {
	c.finish(ExitApplicationNack, "application nack: "+name.String())
}

func (c *Consumer) finish(code int, reason string) {
	if c.done {
		return
	}
	c.done = true
	c.exitCode = code
	c.failure = reason

	if c.pipe != nil {
		c.pipe.Cancel()
	}
	if c.disc != nil {
		c.disc.Cancel()
	}
	if c.hasStatToken {
		c.cfg.Sched.CancelEvent(c.statToken)
		c.hasStatToken = false
	}

	if c.cfg.Logger != nil {
		if code == ExitSuccess {
			c.cfg.Logger.Info("fetch_complete",
				"segments", c.segmentsReceived,
				"bytes", c.bytesTotal,
				"elapsed", time.Since(c.startTime).String(),
			)
		} else {
			c.cfg.Logger.Error("fetch_failed", "reason", reason, "exit_code", code)
		}
	}

	if c.cfg.Progress != nil {
		_ = c.cfg.Progress.Finish()
	}
	if c.cfg.OnFinish != nil {
		c.cfg.OnFinish(code, reason)
	}

	c.cfg.Loop.Stop()
	if c.cancelRun != nil {
		c.cancelRun()
	}
}

func (c *Consumer) scheduleStatTick() {
	c.statToken = c.cfg.Sched.ScheduleEvent(c.cfg.StatIntervalMs, c.statTick)
	c.hasStatToken = true
}

func (c *Consumer) statTick() {
	if c.done {
		return
	}

	now := time.Now()
	tick := stats.Tick{
		Elapsed:          now.Sub(c.startTime),
		SegmentsReceived: c.segmentsReceived,
		BytesTotal:       c.bytesTotal,
		BytesInterval:    c.bytesTotal - c.bytesAtLastTick,
		WindowSize:       c.pipe.GetWindowSize(),
	}
	if c.hasFinalBlockID {
		tick.SegmentsTotal = uint64(c.lastSegmentNo) + 1
	}
	if c.cfg.RTT != nil {
		if mean := c.cfg.RTT.RTTMean(); mean > 0 {
			tick.RTTMean = mean
		}
	}
	if c.cfg.Digest != nil && c.cfg.Digest.Count() > 0 {
		tick.RTTP50 = c.cfg.Digest.P50()
		tick.RTTP90 = c.cfg.Digest.P90()
		tick.RTTP99 = c.cfg.Digest.P99()
	}

	if c.cfg.Logger != nil {
		c.cfg.Logger.Info("stats", "line", stats.FormatLine(tick, now.Sub(c.lastTickTime)))
	}
	if c.cfg.Progress != nil {
		if c.hasFinalBlockID {
			c.cfg.Progress.ChangeMax64(int64(c.lastSegmentNo) + 1)
		}
		_ = c.cfg.Progress.Set64(int64(c.segmentsReceived))
	}
	if c.cfg.OnStatTick != nil {
		c.cfg.OnStatTick(tick)
	}

	c.bytesAtLastTick = c.bytesTotal
	c.lastTickTime = now

	c.scheduleStatTick()
}

// Failure returns the terminal failure reason, or "" on success.
func (c *Consumer) Failure() string { return c.failure }
