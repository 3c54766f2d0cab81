package risk

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// BreakerSettings mirrors cryptofunk's per-service ServiceSettings, but
// keyed by an arbitrary name rather than three hardcoded service types.
// No caller in this module constructs a BreakerRegistry; C6's submission
// endpoints run without breakers.
type BreakerSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// BreakerRegistry lazily creates and tracks a gobreaker.CircuitBreaker per
// name, exposing the same closed/open/half-open state as Prometheus
// gauges that cryptofunk's CircuitBreakerManager exposed for its three
// fixed services.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	metrics  *breakerMetrics
}

type breakerMetrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
}

func NewBreakerRegistry(reg prometheus.Registerer) *BreakerRegistry {
	factory := promauto.With(reg)
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		metrics: &breakerMetrics{
			state: factory.NewGaugeVec(prometheus.GaugeOpts{
				Name: "solarb_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			}, []string{"name"}),
			requests: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "solarb_circuit_breaker_requests_total",
				Help: "Requests observed by a named circuit breaker",
			}, []string{"name", "result"}),
		},
	}
}

// Get returns the named breaker, creating it with settings on first use.
func (r *BreakerRegistry) Get(name string, settings BreakerSettings) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}

	cbSettings := gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.HalfOpenMaxReqs,
		Interval:    settings.CountInterval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= settings.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.metrics.state.WithLabelValues(name).Set(stateValue(to))
		},
	}

	b := gobreaker.NewCircuitBreaker(cbSettings)
	r.breakers[name] = b
	return b
}

// Execute runs fn through the named breaker, recording the result label.
func (r *BreakerRegistry) Execute(name string, settings BreakerSettings, fn func() (any, error)) (any, error) {
	b := r.Get(name, settings)
	result, err := b.Execute(fn)
	label := "success"
	if err != nil {
		label = "failure"
	}
	r.metrics.requests.WithLabelValues(name, label).Inc()
	return result, err
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
