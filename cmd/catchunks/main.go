// Package main provides the catchunks CLI entry point.
//
// catchunks fetches a single segmented, versioned NDN content object over
// a UDP-datagram stand-in face, reassembles it in segment order, and
// writes the content to stdout or a file.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/ndn-tools/catchunks-go/internal/config"
	"github.com/ndn-tools/catchunks-go/internal/consumer"
	"github.com/ndn-tools/catchunks-go/internal/eventloop"
	"github.com/ndn-tools/catchunks-go/internal/facenet"
	"github.com/ndn-tools/catchunks-go/internal/logging"
	"github.com/ndn-tools/catchunks-go/internal/metrics"
	"github.com/ndn-tools/catchunks-go/internal/pipeline"
	"github.com/ndn-tools/catchunks-go/internal/preflight"
	"github.com/ndn-tools/catchunks-go/internal/rtt"
	"github.com/ndn-tools/catchunks-go/internal/stats"
	"github.com/ndn-tools/catchunks-go/internal/timeseries"
	"github.com/ndn-tools/catchunks-go/internal/tui"
)

// exitUsageError is the CLI's own mapping for malformed/invalid
// configuration, distinct from the core's runtime/application-nack codes.
const exitUsageError = 2

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return exitUsageError
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitUsageError
	}

	// When the TUI owns the terminal, suppress logs the same way the
	// teacher suppresses logs under its own dashboard.
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, cfg.LogFormat, "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	if cfg.Check {
		logger.Info("check_ok", "name", cfg.Name, "start_pipeline", cfg.StartPipelineSize, "max_pipeline", cfg.MaxPipelineSize)
		return 0
	}

	if !cfg.SkipPreflight {
		result := preflight.RunAll(preflight.Config{
			MaxPipelineSize: int(cfg.MaxPipelineSize),
			FaceAddr:        cfg.FaceAddr,
			OutputPath:      cfg.OutputPath,
		})
		preflight.PrintResults(result)
		if !result.Passed {
			return exitUsageError
		}
	}

	out, closeOut, err := openOutput(cfg.OutputPath)
	if err != nil {
		logger.Error("output_open_failed", "error", err)
		return 1
	}
	defer closeOut()

	remoteAddr, err := net.ResolveUDPAddr("udp", cfg.FaceAddr)
	if err != nil {
		logger.Error("face_addr_invalid", "addr", cfg.FaceAddr, "error", err)
		return 1
	}

	loop := eventloop.New(1024)
	sched := facenet.NewLoopScheduler(loop)
	face, err := facenet.NewUDPFace(loop, sched, remoteAddr, cfg.SendRate)
	if err != nil {
		logger.Error("face_dial_failed", "addr", cfg.FaceAddr, "error", err)
		return 1
	}
	defer face.Close()

	rttEst := rtt.New()

	var digest *stats.RTTDigest
	if cfg.Stats {
		digest = stats.NewRTTDigest()
	}

	var metricsServer consumer.MetricsServer
	var collector *metrics.Collector
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsAddr, logger)
		collector = metrics.NewCollector(metrics.CollectorConfig{
			Name:          cfg.Name,
			DiscoveryMode: discoveryDescription(cfg),
		})
	}

	throughput := timeseries.NewThroughputTracker()

	var program *tea.Program
	var tuiProgram consumer.TUIProgram
	if cfg.TUIEnabled {
		model := tui.New(tui.Config{
			Name:          cfg.Name,
			FaceAddr:      cfg.FaceAddr,
			DiscoveryMode: discoveryDescription(cfg),
		})
		program = tea.NewProgram(model)
		tuiProgram = teaProgramAdapter{program}
	}

	var prevSegments uint64
	var prevBytes int64
	onStatTick := func(tick stats.Tick) {
		throughput.AddBytes(tick.BytesInterval)
		throughput.RecordSample()
		if collector != nil {
			collector.RecordTick(tick, prevSegments, prevBytes)
			prevSegments = tick.SegmentsReceived
			prevBytes = tick.BytesTotal
		}
		tui.SendTick(program, tick)
	}

	onFinish := func(code int, reason string) {
		outcome := "success"
		switch code {
		case consumer.ExitRuntimeError:
			outcome = "runtime_error"
		case consumer.ExitApplicationNack:
			outcome = "application_nack"
		}
		if collector != nil {
			collector.RecordOutcome(outcome)
		}
		tui.SendDone(program, code, reason)
	}

	trace := logging.NewWireTraceHandler(logger, cfg.Verbose)

	c, err := consumer.New(consumer.Config{
		Face:  face,
		Sched: sched,
		Loop:  loop,

		Logger: logger,
		Trace:  trace,

		RTT:    rttEst,
		Digest: digest,

		Output: out,

		Name:              cfg.Name,
		SkipDiscovery:     cfg.SkipDiscovery,
		DiscoveryMode:     cfg.DiscoveryMode,
		IterativeTimeouts: cfg.IterativeTimeouts,
		MustBeFresh:       cfg.MustBeFresh,
		InterestLifetime:  cfg.InterestLifetime,

		Pipeline: pipeline.Options{
			StartPipelineSize:         cfg.StartPipelineSize,
			MaxPipelineSize:           cfg.MaxPipelineSize,
			SlowStartThreshold:        cfg.SlowStartThreshold,
			WindowCutMultiplier:       cfg.WindowCutMultiplier,
			MustBeFresh:               cfg.MustBeFresh,
			InterestLifetime:          cfg.InterestLifetime,
			MaxRetriesOnTimeoutOrNack: cfg.MaxRetriesOnTimeoutOrNack,
			RandomWaitMaxMs:           cfg.RandomWaitMaxMs,
			StartWait:                 cfg.StartWait,
			RTOMultiplierReset:        cfg.RTOMultiplierReset,
			NTimeoutBeforeReset:       cfg.NTimeoutBeforeReset,
		},

		StatsEnabled: cfg.Stats,

		Progress: newProgressBar(cfg),
		Metrics:  metricsServer,
		TUI:      tuiProgram,

		OnStatTick: onStatTick,
		OnFinish:   onFinish,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitUsageError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", "name", cfg.Name, "face", cfg.FaceAddr, "discovery", discoveryDescription(cfg))

	exitCode := c.Run(ctx)

	if err := flushOutput(out); err != nil {
		logger.Error("output_flush_failed", "error", err)
		if exitCode == 0 {
			exitCode = 1
		}
	}

	if exitCode == 0 {
		logger.Info("done")
	}
	return exitCode
}

// teaProgramAdapter satisfies consumer.TUIProgram: *tea.Program.Run returns
// (tea.Model, error), which Go does not treat as satisfying a method
// returning (any, error) without this adapter.
type teaProgramAdapter struct {
	p *tea.Program
}

func (a teaProgramAdapter) Run() (any, error) {
	return a.p.Run()
}

// discoveryDescription renders a short human-readable summary of how the
// content's version will be resolved, for the startup log line.
func discoveryDescription(cfg *config.Config) string {
	if cfg.SkipDiscovery {
		return "skipped"
	}
	return cfg.DiscoveryMode
}

// flushableWriter is satisfied by *bufio.Writer.
type flushableWriter interface {
	Flush() error
}

// openOutput opens path for writing, or wraps stdout if path is empty. The
// returned close func must run regardless of outcome; for a real file it
// closes the descriptor, for stdout it is a no-op.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		w := bufio.NewWriter(os.Stdout)
		return w, func() error { return nil }, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	w := bufio.NewWriter(f)
	return w, f.Close, nil
}

func flushOutput(w io.Writer) error {
	if fw, ok := w.(flushableWriter); ok {
		return fw.Flush()
	}
	return nil
}

// newProgressBar builds the non-TUI progress indicator: active only when
// stats were requested, the dashboard was not, and stderr is a terminal.
func newProgressBar(cfg *config.Config) *progressbar.ProgressBar {
	if !cfg.Stats || cfg.TUIEnabled {
		return nil
	}
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	return progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("fetching"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowBytes(false),
		progressbar.OptionClearOnFinish(),
	)
}
