package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ParseFlags parses command-line flags and returns a Config.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `catchunks - fetch a segmented, versioned content object

Usage:
  catchunks [flags] <name>

Discovery:
`)
		printFlagCategory([]string{"d", "k", "i"})

		fmt.Fprintf(os.Stderr, "\nInterest Shaping:\n")
		printFlagCategory([]string{"f", "l"})

		fmt.Fprintf(os.Stderr, "\nWindow Control:\n")
		printFlagCategory([]string{"p", "m", "t", "c"})

		fmt.Fprintf(os.Stderr, "\nRetry / RTO:\n")
		printFlagCategory([]string{"r", "R", "M"})

		fmt.Fprintf(os.Stderr, "\nDeferred Fetch Jitter:\n")
		printFlagCategory([]string{"w", "W"})

		fmt.Fprintf(os.Stderr, "\nTransport:\n")
		printFlagCategory([]string{"face", "rate"})

		fmt.Fprintf(os.Stderr, "\nOutput:\n")
		printFlagCategory([]string{"o"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory([]string{"v", "S", "tui", "metrics", "log-format"})

		fmt.Fprintf(os.Stderr, "\nDiagnostics:\n")
		printFlagCategory([]string{"check"})

		fmt.Fprintf(os.Stderr, `
Examples:
  # Fetch a versioned name with default window behavior
  catchunks /example/video/v=1589220695849

  # Skip discovery, force a fixed start window, emit stats
  catchunks -k -p 4 -m 64 -S /example/video/v=1589220695849 > video.mp4

  # Write content to a file and watch the live dashboard
  catchunks -o video.mp4 -tui /example/video

`)
	}

	flag.StringVar(&cfg.DiscoveryMode, "d", cfg.DiscoveryMode, `Version discovery strategy: "fixed" or "iterative"`)
	flag.BoolVar(&cfg.SkipDiscovery, "k", cfg.SkipDiscovery, "Skip discovery; name must already contain a version component")
	flag.IntVar(&cfg.IterativeTimeouts, "i", cfg.IterativeTimeouts, "Consecutive timeouts required to confirm iterative discovery")

	flag.BoolVar(&cfg.MustBeFresh, "f", cfg.MustBeFresh, "Require MustBeFresh on every Interest")
	flag.DurationVar(&cfg.InterestLifetime, "l", cfg.InterestLifetime, "Interest lifetime (0 derives it from the learned RTO)")

	flag.Uint64Var(&cfg.StartPipelineSize, "p", cfg.StartPipelineSize, "Start pipeline size, 1..65536")
	flag.Uint64Var(&cfg.MaxPipelineSize, "m", cfg.MaxPipelineSize, "Max pipeline size, >= start, <= 65536 (0 => equal to start)")
	flag.Uint64Var(&cfg.SlowStartThreshold, "t", cfg.SlowStartThreshold, "Slow-start threshold (0 disables, always slow start)")
	flag.Float64Var(&cfg.WindowCutMultiplier, "c", cfg.WindowCutMultiplier, "Window cut multiplier, 0 < c < 1")

	flag.IntVar(&cfg.MaxRetriesOnTimeoutOrNack, "r", cfg.MaxRetriesOnTimeoutOrNack, "Max nack/timeout retries per interest (-1 unbounded)")
	flag.IntVar(&cfg.NTimeoutBeforeReset, "R", cfg.NTimeoutBeforeReset, "Consecutive timeouts before the RTT estimator resets (0 disables)")
	flag.BoolVar(&cfg.RTOMultiplierReset, "M", cfg.RTOMultiplierReset, "Halve the RTO multiplier on every Data received, once per epoch")

	flag.Int64Var(&cfg.RandomWaitMaxMs, "w", cfg.RandomWaitMaxMs, "Jitter upper bound in ms for deferred fetches")
	flag.BoolVar(&cfg.StartWait, "W", cfg.StartWait, "Jitter only the very first round of fetches")

	flag.StringVar(&cfg.FaceAddr, "face", cfg.FaceAddr, "Remote face address (host:port) to dial")
	flag.IntVar(&cfg.SendRate, "rate", cfg.SendRate, "Outbound Interests/sec limit (0 unlimited)")

	flag.StringVar(&cfg.OutputPath, "o", cfg.OutputPath, "Write content to this file instead of stdout")

	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose per-segment send/receive trace")
	flag.BoolVar(&cfg.Stats, "S", cfg.Stats, "Emit periodic statistics")
	flag.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Live terminal dashboard (requires -o)")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics listen address (empty disables)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)

	flag.BoolVar(&cfg.Check, "check", cfg.Check, "Validate configuration and exit without fetching")
	flag.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip startup sanity checks (file descriptors, face address, output path)")

	flag.Parse()

	args := flag.Args()
	if len(args) >= 1 {
		cfg.Name = args[0]
	}

	if cfg.MaxPipelineSize == 0 {
		cfg.MaxPipelineSize = cfg.StartPipelineSize
	}

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(names []string) {
	flag.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(os.Stderr, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
					fmt.Fprintf(os.Stderr, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(os.Stderr)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	switch f.DefValue {
	case "true", "false":
		return ""
	}
	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		if _, err := time.ParseDuration(f.DefValue); err == nil {
			return "duration"
		}
	}
	if _, err := strconv.ParseInt(f.DefValue, 10, 64); err == nil {
		return "int"
	}
	if _, err := strconv.ParseFloat(f.DefValue, 64); err == nil {
		return "float"
	}
	return "string"
}
