package config

import (
	"fmt"
)

// ValidationError mirrors the teacher's per-field validation error shape.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collected list of ValidationError, satisfying error.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msg := fmt.Sprintf("%d configuration error(s): ", len(e))
	for i, v := range e {
		if i > 0 {
			msg += "; "
		}
		msg += v.Error()
	}
	return msg
}

// Validate checks the loaded configuration for internally-consistent,
// startup-fatal problems (§7's "Configuration error" category). It never
// touches the network and performs no connectivity checks.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Pipeline.TickPeriodMs <= 0 {
		errs = append(errs, ValidationError{"pipeline.tick_period_ms", "must be positive"})
	}
	if c.Pipeline.MaxCandidatesPerTick <= 0 {
		errs = append(errs, ValidationError{"pipeline.max_candidates_per_tick", "must be positive"})
	}
	if c.Pipeline.MaxConcurrentExecutions < 0 {
		errs = append(errs, ValidationError{"pipeline.max_concurrent_executions", "must not be negative"})
	}

	if c.Risk.RiskTolerance < 0 || c.Risk.RiskTolerance > 1 {
		errs = append(errs, ValidationError{"risk.risk_tolerance", "must be in [0, 1]"})
	}

	if c.Cache.QuoteTTLMajorMs <= 0 || c.Cache.QuoteTTLOtherMs <= 0 {
		errs = append(errs, ValidationError{"cache", "TTLs must be positive"})
	}

	if c.Protection.MaxProtectionCostRatio <= 0 || c.Protection.MaxProtectionCostRatio > 1 {
		errs = append(errs, ValidationError{"protection.max_protection_cost_ratio", "must be in (0, 1]"})
	}
	if c.Protection.BundleMinSpacingMs < 0 {
		errs = append(errs, ValidationError{"protection.bundle_min_spacing_ms", "must not be negative"})
	}

	if c.Learning.ConfidenceThreshold < 0 || c.Learning.ConfidenceThreshold > 1 {
		errs = append(errs, ValidationError{"learning.confidence_threshold", "must be in [0, 1]"})
	}
	if c.Learning.LearningRate <= 0 {
		errs = append(errs, ValidationError{"learning.learning_rate", "must be positive"})
	}
	if c.Learning.LearningCadence <= 0 {
		errs = append(errs, ValidationError{"learning.learning_cadence", "must be positive"})
	}

	for name, p := range c.Providers {
		if p.Endpoint == "" {
			errs = append(errs, ValidationError{fmt.Sprintf("providers.%s.endpoint", name), "must not be empty"})
		}
		switch p.Family {
		case "aggregator", "spot", "pool_scanner":
		default:
			errs = append(errs, ValidationError{fmt.Sprintf("providers.%s.family", name), "must be one of aggregator, spot, pool_scanner"})
		}
		if p.RateLimits.RequestsPerSecond <= 0 {
			errs = append(errs, ValidationError{fmt.Sprintf("providers.%s.rate_limits.requests_per_second", name), "must be positive"})
		}
	}

	if c.Store.RingSize <= 0 {
		errs = append(errs, ValidationError{"store.ring_size", "must be positive"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
