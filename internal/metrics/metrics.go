package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded cardinality constants for metric labels.
// These ensure metrics don't have unbounded label values which can cause memory issues.
const (
	// Protection-drop reasons (bounded set)
	DropReasonCostExceedsBenefit = "cost_exceeds_benefit"
	DropReasonRiskTolerance      = "risk_tolerance"
	DropReasonStaleOpportunity   = "stale_opportunity"
	DropReasonNegativeProfit     = "negative_profit"
	DropReasonOther              = "other"

	// Execution failure reasons (bounded set)
	FailureReasonTimeout    = "timeout"
	FailureReasonStale      = "stale_opportunity"
	FailureReasonInvariant  = "invariant_violation"
	FailureReasonSubmission = "submission_rejected"
	FailureReasonOther      = "other"

	// Quote provider error categories (bounded set)
	ProviderErrorTimeout     = "timeout"
	ProviderErrorRateLimit   = "rate_limit"
	ProviderErrorNetwork     = "network"
	ProviderErrorInvalidResp = "invalid_response"
	ProviderErrorOther       = "other"
)

// NormalizeDropReason maps an arbitrary protection-drop explanation to a
// bounded label.
func NormalizeDropReason(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "cost") || strings.Contains(lower, "benefit"):
		return DropReasonCostExceedsBenefit
	case strings.Contains(lower, "tolerance"):
		return DropReasonRiskTolerance
	case strings.Contains(lower, "stale") || strings.Contains(lower, "expir"):
		return DropReasonStaleOpportunity
	case strings.Contains(lower, "negative") || strings.Contains(lower, "profit"):
		return DropReasonNegativeProfit
	default:
		return DropReasonOther
	}
}

// NormalizeFailureReason maps an arbitrary execution error to a bounded label.
func NormalizeFailureReason(err error) string {
	if err == nil {
		return ""
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return FailureReasonTimeout
	case strings.Contains(lower, "stale"):
		return FailureReasonStale
	case strings.Contains(lower, "invariant"):
		return FailureReasonInvariant
	case strings.Contains(lower, "reject") || strings.Contains(lower, "submission"):
		return FailureReasonSubmission
	default:
		return FailureReasonOther
	}
}

// NormalizeProviderError maps an arbitrary quote-provider error to a bounded label.
func NormalizeProviderError(err error) string {
	if err == nil {
		return ""
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return ProviderErrorTimeout
	case strings.Contains(lower, "rate") || strings.Contains(lower, "429"):
		return ProviderErrorRateLimit
	case strings.Contains(lower, "network") || strings.Contains(lower, "connection"):
		return ProviderErrorNetwork
	case strings.Contains(lower, "decode") || strings.Contains(lower, "invalid"):
		return ProviderErrorInvalidResp
	default:
		return ProviderErrorOther
	}
}

// Discovery metrics (C2)
var (
	CandidatesDiscovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarb_candidates_discovered_total",
		Help: "Total opportunity candidates discovered, by shape",
	}, []string{"shape"}) // pairwise | triangular

	CandidatesPerTick = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "solarb_candidates_per_tick",
		Help:    "Number of candidates surfaced per discovery tick",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "solarb_tick_duration_ms",
		Help:    "Wall-clock duration of one full pipeline tick, in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)

// Scoring and risk metrics (C3, C4)
var (
	CandidateConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "solarb_candidate_confidence",
		Help:    "Distribution of confidence scores assigned to candidates",
		Buckets: prometheus.LinearBuckets(0, 0.1, 10),
	})

	RiskAssessments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarb_risk_assessments_total",
		Help: "Total risk assessments by overall level",
	}, []string{"level"})

	CongestionEstimate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solarb_congestion_estimate",
		Help: "Current network congestion estimate (0.0 to 1.0)",
	})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "solarb_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"breaker"})
)

// Protection metrics (C5)
var (
	ProtectionDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarb_protection_dropped_total",
		Help: "Total candidates dropped by the protection selector, by reason",
	}, []string{"reason"})

	ProtectionCostEstimate = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "solarb_protection_cost_estimate",
		Help:    "Estimated protection cost in native units at selection time",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
	})

	BundleWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "solarb_bundle_wait_ms",
		Help:    "Time a caller waited for minimum bundle spacing, in milliseconds",
		Buckets: []float64{0, 10, 50, 100, 500, 1000, 2000},
	})
)

// Execution metrics (C6)
var (
	Executed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarb_executions_total",
		Help: "Total execution attempts by protection strategy",
	}, []string{"strategy"})

	ExecutionOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarb_execution_outcome_total",
		Help: "Total execution outcomes by strategy and result",
	}, []string{"strategy", "outcome"}) // outcome: success | failure

	ExecutionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarb_execution_failures_total",
		Help: "Total execution failures by normalized reason",
	}, []string{"reason"})

	ExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solarb_execution_duration_ms",
		Help:    "Execution latency in milliseconds, by strategy",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"strategy"})

	RealizedProfit = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "solarb_realized_profit",
		Help:    "Realized profit per execution, in native units (negative on loss)",
		Buckets: prometheus.LinearBuckets(-1, 0.1, 21),
	})
)

// Decision and learning metrics (C7, C8)
var (
	DecisionsAdmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solarb_decisions_admitted_total",
		Help: "Total candidates admitted by the autonomous decision module",
	})

	DecisionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solarb_decisions_rejected_total",
		Help: "Total candidates rejected by the autonomous decision module",
	})

	ActiveConcurrency = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solarb_active_concurrency",
		Help: "Number of plans currently in flight",
	})

	ConfidenceThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solarb_confidence_threshold",
		Help: "Current admission confidence threshold, as adapted by C8",
	})

	GlobalSuccessRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solarb_global_success_rate",
		Help: "Rolling-window global execution success rate",
	})

	VenueSuccessRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "solarb_venue_success_rate",
		Help: "Per-venue EMA success rate",
	}, []string{"venue"})

	DegradationAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solarb_degradation_alerts_total",
		Help: "Total sustained-degradation alerts fired",
	})
)

// Quote layer and system health metrics (C1, C9)
var (
	QuoteCacheHitRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solarb_quote_cache_hit_rate",
		Help: "Quote cache hit rate as a ratio (0.0 to 1.0)",
	})

	QuoteCacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarb_quote_cache_operations_total",
		Help: "Total quote cache operations by type",
	}, []string{"operation"})

	ProviderDegraded = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "solarb_provider_degraded",
		Help: "Whether a quote provider is currently degraded (1) or healthy (0)",
	}, []string{"provider"})

	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarb_provider_errors_total",
		Help: "Total quote provider errors by normalized category",
	}, []string{"provider", "category"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solarb_database_connections_active",
		Help: "Number of active database connections",
	})

	DatabaseConnectionsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solarb_database_connections_idle",
		Help: "Number of idle database connections",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarb_http_requests_total",
		Help: "Total number of HTTP requests against the control/dashboard surface",
	}, []string{"method", "path", "status_code"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solarb_api_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method", "path", "status_code"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarb_errors_total",
		Help: "Total number of errors by type and component",
	}, []string{"type", "component"})
)

// Helper functions to update metrics

// RecordDiscovery records a tick's discovery results.
func RecordDiscovery(pairwise, triangular int, duration float64) {
	CandidatesDiscovered.WithLabelValues("pairwise").Add(float64(pairwise))
	CandidatesDiscovered.WithLabelValues("triangular").Add(float64(triangular))
	CandidatesPerTick.Observe(float64(pairwise + triangular))
	TickDuration.Observe(duration)
}

// RecordRiskAssessment records a risk assessment's overall level.
func RecordRiskAssessment(level string, congestion float64) {
	RiskAssessments.WithLabelValues(level).Inc()
	CongestionEstimate.Set(congestion)
}

// UpdateBreakerState sets a named breaker's gauge to gobreaker's state ordinal.
func UpdateBreakerState(breaker string, state float64) {
	BreakerState.WithLabelValues(breaker).Set(state)
}

// RecordProtectionDrop records a protection-selector drop with a normalized reason.
func RecordProtectionDrop(reason string) {
	ProtectionDropped.WithLabelValues(NormalizeDropReason(reason)).Inc()
}

// RecordProtectionCost records an estimated protection cost at selection time.
func RecordProtectionCost(cost float64) {
	ProtectionCostEstimate.Observe(cost)
}

// RecordBundleWait records how long a caller waited for minimum bundle spacing.
func RecordBundleWait(durationMs float64) {
	BundleWaitDuration.Observe(durationMs)
}

// RecordExecution records one execution attempt's strategy, outcome, duration and realized profit.
func RecordExecution(strategy string, success bool, err error, durationMs, profit float64) {
	Executed.WithLabelValues(strategy).Inc()
	outcome := "success"
	if !success {
		outcome = "failure"
		ExecutionFailures.WithLabelValues(NormalizeFailureReason(err)).Inc()
	}
	ExecutionOutcome.WithLabelValues(strategy, outcome).Inc()
	ExecutionDuration.WithLabelValues(strategy).Observe(durationMs)
	RealizedProfit.Observe(profit)
}

// RecordDecision records whether the autonomous decision module admitted a candidate.
func RecordDecision(admitted bool) {
	if admitted {
		DecisionsAdmitted.Inc()
	} else {
		DecisionsRejected.Inc()
	}
}

// UpdateLearningState reflects the learner's current adapted threshold and success rates.
func UpdateLearningState(threshold, globalRate float64) {
	ConfidenceThreshold.Set(threshold)
	GlobalSuccessRate.Set(globalRate)
}

// UpdateVenueSuccessRate sets the per-venue success-rate gauge.
func UpdateVenueSuccessRate(venue string, rate float64) {
	VenueSuccessRate.WithLabelValues(venue).Set(rate)
}

// RecordDegradationAlert increments the sustained-degradation alert counter.
func RecordDegradationAlert() {
	DegradationAlerts.Inc()
}

// RecordQuoteCacheOperation records a quote cache operation.
func RecordQuoteCacheOperation(operation string) {
	QuoteCacheOperations.WithLabelValues(operation).Inc()
}

// UpdateProviderStatus marks a quote provider degraded or healthy.
func UpdateProviderStatus(provider string, degraded bool) {
	status := 0.0
	if degraded {
		status = 1.0
	}
	ProviderDegraded.WithLabelValues(provider).Set(status)
}

// RecordProviderError records a quote provider error with a normalized category.
func RecordProviderError(provider string, err error) {
	ProviderErrors.WithLabelValues(provider, NormalizeProviderError(err)).Inc()
}

// UpdateDatabaseConnections updates database connection pool metrics.
func UpdateDatabaseConnections(active, idle int32) {
	DatabaseConnectionsActive.Set(float64(active))
	DatabaseConnectionsIdle.Set(float64(idle))
}

// RecordAPIRequest records an HTTP request against the control/dashboard surface.
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
}

// RecordError records an error by type and owning component.
func RecordError(errorType, component string) {
	Errors.WithLabelValues(errorType, component).Inc()
}
