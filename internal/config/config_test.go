package config

import (
	"flag"
	"strings"
	"testing"
)

func TestFlagType(t *testing.T) {
	testCases := []struct {
		name     string
		defValue string
		expected string
	}{
		{"bool true", "true", ""},
		{"bool false", "false", ""},
		{"int", "42", "int"},
		{"string", "hello", "string"},
		{"duration seconds", "5s", "duration"},
		{"duration minutes", "5m", "duration"},
		{"duration hours", "1h", "duration"},
		{"float", "3.14", "float"},
		{"empty", "", "string"},
		{"zero", "0", "int"},
		{"negative int", "-1", "int"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &flag.Flag{Name: "test", DefValue: tc.defValue}
			result := flagType(f)
			if result != tc.expected {
				t.Errorf("flagType(%q) = %q, want %q", tc.defValue, result, tc.expected)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DiscoveryMode != "iterative" {
		t.Errorf("DiscoveryMode = %q, want %q", cfg.DiscoveryMode, "iterative")
	}
	if cfg.StartPipelineSize != 1 {
		t.Errorf("StartPipelineSize = %d, want 1", cfg.StartPipelineSize)
	}
	if cfg.MaxPipelineSize != 0 {
		t.Errorf("MaxPipelineSize = %d, want 0 (resolved to start by ParseFlags)", cfg.MaxPipelineSize)
	}
	if cfg.WindowCutMultiplier != 0.5 {
		t.Errorf("WindowCutMultiplier = %v, want 0.5", cfg.WindowCutMultiplier)
	}
	if cfg.MaxRetriesOnTimeoutOrNack != 3 {
		t.Errorf("MaxRetriesOnTimeoutOrNack = %d, want 3", cfg.MaxRetriesOnTimeoutOrNack)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, "text")
	}
	if cfg.FaceAddr == "" {
		t.Error("FaceAddr should have a default")
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "/example/video/v=1"
	cfg.MaxPipelineSize = cfg.StartPipelineSize

	if err := Validate(cfg); err != nil {
		t.Errorf("valid config should not error: %v", err)
	}
}

func TestValidate_MissingName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPipelineSize = cfg.StartPipelineSize

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing name")
	}
	if !strings.Contains(err.Error(), "name") {
		t.Errorf("error should mention name: %v", err)
	}
}

func TestValidate_InvalidDiscoveryMode(t *testing.T) {
	testCases := []string{"", "auto", "FIXED", "both"}

	for _, mode := range testCases {
		t.Run(mode, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Name = "/a"
			cfg.MaxPipelineSize = cfg.StartPipelineSize
			cfg.DiscoveryMode = mode

			err := Validate(cfg)
			if err == nil {
				t.Errorf("expected error for discovery mode %q", mode)
			}
		})
	}
}

func TestValidate_PipelineSizeBounds(t *testing.T) {
	testCases := []struct {
		name        string
		start, max  uint64
		expectError bool
	}{
		{"zero start", 0, 1, true},
		{"start above ceiling", 65537, 65537, true},
		{"max below start", 4, 2, true},
		{"max above ceiling", 1, 65537, true},
		{"equal start and max", 4, 4, false},
		{"max greater than start", 2, 16, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Name = "/a"
			cfg.StartPipelineSize = tc.start
			cfg.MaxPipelineSize = tc.max

			err := Validate(cfg)
			if tc.expectError && err == nil {
				t.Errorf("expected error for start=%d max=%d", tc.start, tc.max)
			}
			if !tc.expectError && err != nil {
				t.Errorf("unexpected error for start=%d max=%d: %v", tc.start, tc.max, err)
			}
		})
	}
}

func TestValidate_WindowCutMultiplierRange(t *testing.T) {
	testCases := []struct {
		value       float64
		expectError bool
	}{
		{0, true},
		{1, true},
		{-0.1, true},
		{1.1, true},
		{0.5, false},
		{0.01, false},
		{0.99, false},
	}

	for _, tc := range testCases {
		cfg := DefaultConfig()
		cfg.Name = "/a"
		cfg.MaxPipelineSize = cfg.StartPipelineSize
		cfg.WindowCutMultiplier = tc.value

		err := Validate(cfg)
		if tc.expectError && err == nil {
			t.Errorf("expected error for cut multiplier %v", tc.value)
		}
		if !tc.expectError && err != nil {
			t.Errorf("unexpected error for cut multiplier %v: %v", tc.value, err)
		}
	}
}

func TestValidate_MaxRetriesAllowsUnbounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "/a"
	cfg.MaxPipelineSize = cfg.StartPipelineSize
	cfg.MaxRetriesOnTimeoutOrNack = -1

	if err := Validate(cfg); err != nil {
		t.Errorf("-1 (unbounded) should be valid: %v", err)
	}

	cfg.MaxRetriesOnTimeoutOrNack = -2
	if err := Validate(cfg); err == nil {
		t.Error("expected error for max retries below -1")
	}
}

func TestValidate_TUIRequiresOutputPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "/a"
	cfg.MaxPipelineSize = cfg.StartPipelineSize
	cfg.TUIEnabled = true
	cfg.OutputPath = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error when -tui is set without -o")
	}
	if !strings.Contains(err.Error(), "tui") {
		t.Errorf("error should mention tui: %v", err)
	}

	cfg.OutputPath = "out.bin"
	if err := Validate(cfg); err != nil {
		t.Errorf("-tui with -o should be valid: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "/a"
	cfg.MaxPipelineSize = cfg.StartPipelineSize
	cfg.LogFormat = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid log format")
	}
	if !strings.Contains(err.Error(), "log-format") {
		t.Errorf("error should mention log-format: %v", err)
	}
}

func TestValidate_CombinesMultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartPipelineSize = 0
	cfg.WindowCutMultiplier = 2
	cfg.DiscoveryMode = "bogus"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected combined error")
	}
	for _, want := range []string{"name", "p", "c", "d"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("combined error missing field %q: %v", want, err)
		}
	}
}

func TestApplyCheckMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Verbose = false

	ApplyCheckMode(cfg)

	if !cfg.Verbose {
		t.Error("ApplyCheckMode should force Verbose on")
	}
}
