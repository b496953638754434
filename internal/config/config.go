// Package config provides configuration management for catchunks.
package config

import "time"

// Config holds all configuration options for a single fetch run.
type Config struct {
	// Content name
	Name string `json:"name"` // positional: /prefix[/v=...]

	// Discovery
	DiscoveryMode     string `json:"discovery_mode"`     // "fixed" or "iterative"
	SkipDiscovery     bool   `json:"skip_discovery"`     // -k: name already carries a version
	IterativeTimeouts int    `json:"iterative_timeouts"` // -i: timeouts to confirm iterative discovery

	// Interest shaping
	MustBeFresh      bool          `json:"must_be_fresh"`     // -f
	InterestLifetime time.Duration `json:"interest_lifetime"` // -l; 0 => derive from RTO

	// Pipeline / window control
	StartPipelineSize   uint64  `json:"start_pipeline_size"`   // -p
	MaxPipelineSize     uint64  `json:"max_pipeline_size"`     // -m; 0 => equal to start
	SlowStartThreshold  uint64  `json:"slow_start_threshold"`  // -t; 0 disables
	WindowCutMultiplier float64 `json:"window_cut_multiplier"` // -c

	// Retry / RTO tuning
	MaxRetriesOnTimeoutOrNack int  `json:"max_retries"`            // -r; -1 unbounded
	NTimeoutBeforeReset       int  `json:"n_timeout_before_reset"` // -R
	RTOMultiplierReset        bool `json:"rto_multiplier_reset"`   // -M

	// Deferred-fetch jitter
	RandomWaitMaxMs int64 `json:"random_wait_max_ms"` // -w
	StartWait       bool  `json:"start_wait"`         // -W: jitter only the first round

	// Transport (ambient: the Face is a collaborator interface in the core;
	// this is the concrete UDP stand-in's dial target)
	FaceAddr string `json:"face_addr"`
	SendRate int    `json:"send_rate"` // outbound Interests/sec, 0 => unlimited

	// Output
	OutputPath string `json:"output_path"` // -o; "" => stdout

	// Observability
	Verbose     bool   `json:"verbose"`      // -v
	Stats       bool   `json:"stats"`        // -S
	TUIEnabled  bool   `json:"tui_enabled"`  // -tui; requires OutputPath != ""
	MetricsAddr string `json:"metrics_addr"` // -metrics; "" disables the exporter
	LogFormat   string `json:"log_format"`   // "json" or "text"

	// Diagnostic modes
	Check         bool `json:"check"`          // validate config and exit
	SkipPreflight bool `json:"skip_preflight"` // skip startup sanity checks
}

// DefaultConfig returns a Config with sensible defaults, matching the
// original_source implementation's constants where this spec is silent.
func DefaultConfig() *Config {
	return &Config{
		DiscoveryMode:     "iterative",
		IterativeTimeouts: 4,

		MustBeFresh:      false,
		InterestLifetime: 0,

		StartPipelineSize:   1,
		MaxPipelineSize:     0,
		SlowStartThreshold:  0,
		WindowCutMultiplier: 0.5,

		MaxRetriesOnTimeoutOrNack: 3,
		NTimeoutBeforeReset:       3,
		RTOMultiplierReset:        false,

		RandomWaitMaxMs: 0,
		StartWait:       false,

		FaceAddr: "127.0.0.1:6363",
		SendRate: 0,

		OutputPath: "",

		Verbose:     false,
		Stats:       false,
		TUIEnabled:  false,
		MetricsAddr: "",
		LogFormat:   "text",

		Check:         false,
		SkipPreflight: false,
	}
}
