package config

import (
	"errors"
	"fmt"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const maxPipelineCeiling = 65536

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Name == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "content name is required",
		})
	}

	if cfg.DiscoveryMode != "fixed" && cfg.DiscoveryMode != "iterative" {
		errs = append(errs, ValidationError{
			Field:   "d",
			Message: fmt.Sprintf(`must be "fixed" or "iterative" (got %q)`, cfg.DiscoveryMode),
		})
	}

	if cfg.StartPipelineSize < 1 || cfg.StartPipelineSize > maxPipelineCeiling {
		errs = append(errs, ValidationError{
			Field:   "p",
			Message: fmt.Sprintf("must be in [1, %d]", maxPipelineCeiling),
		})
	}

	if cfg.MaxPipelineSize < cfg.StartPipelineSize {
		errs = append(errs, ValidationError{
			Field:   "m",
			Message: "must be >= start pipeline size",
		})
	}
	if cfg.MaxPipelineSize > maxPipelineCeiling {
		errs = append(errs, ValidationError{
			Field:   "m",
			Message: fmt.Sprintf("must be <= %d", maxPipelineCeiling),
		})
	}

	if cfg.WindowCutMultiplier <= 0 || cfg.WindowCutMultiplier >= 1 {
		errs = append(errs, ValidationError{
			Field:   "c",
			Message: "must satisfy 0 < c < 1",
		})
	}

	if cfg.MaxRetriesOnTimeoutOrNack < -1 {
		errs = append(errs, ValidationError{
			Field:   "r",
			Message: "must be -1 (unbounded) or >= 0",
		})
	}

	if cfg.NTimeoutBeforeReset < 0 {
		errs = append(errs, ValidationError{
			Field:   "R",
			Message: "must be >= 0 (0 disables the reset)",
		})
	}

	if cfg.IterativeTimeouts < 1 {
		errs = append(errs, ValidationError{
			Field:   "i",
			Message: "must be >= 1",
		})
	}

	if cfg.InterestLifetime < 0 {
		errs = append(errs, ValidationError{
			Field:   "l",
			Message: "must be >= 0",
		})
	}

	if cfg.RandomWaitMaxMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "w",
			Message: "must be >= 0",
		})
	}

	if cfg.TUIEnabled && cfg.OutputPath == "" {
		errs = append(errs, ValidationError{
			Field:   "tui",
			Message: "requires -o (content and a dashboard cannot share stdout)",
		})
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		errs = append(errs, ValidationError{
			Field:   "log-format",
			Message: fmt.Sprintf(`must be "json" or "text" (got %q)`, cfg.LogFormat),
		})
	}

	if cfg.FaceAddr == "" {
		errs = append(errs, ValidationError{
			Field:   "face",
			Message: "must not be empty",
		})
	}

	if cfg.SendRate < 0 {
		errs = append(errs, ValidationError{
			Field:   "rate",
			Message: "must be >= 0 (0 disables the limiter)",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ApplyCheckMode modifies config for --check mode: keeps validation but
// skips the network fetch entirely in the caller.
func ApplyCheckMode(cfg *Config) {
	cfg.Verbose = true
}
