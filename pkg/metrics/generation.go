package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GenerationMetrics records generation pipeline outcomes and provider latency.
type GenerationMetrics struct {
	outcomes         *prometheus.CounterVec
	providerDuration prometheus.Histogram
	balanceRejected  prometheus.Counter
	sweptJobs        prometheus.Counter
}

// NewGenerationMetrics registers the generation metrics on the provided registerer.
func NewGenerationMetrics(reg prometheus.Registerer) *GenerationMetrics {
	if reg == nil {
		return &GenerationMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_jobs_total",
		Help: "Generation jobs reaching a terminal state, by outcome.",
	}, []string{"outcome"})
	providerDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "generation_provider_duration_seconds",
		Help:    "Wall time spent waiting on the music provider.",
		Buckets: []float64{1, 5, 15, 30, 60, 90, 120, 180},
	})
	balanceRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "generation_insufficient_balance_total",
		Help: "Generation requests rejected before reservation for lack of tokens.",
	})
	sweptJobs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "generation_swept_jobs_total",
		Help: "Stuck generation jobs resolved by the recovery sweep.",
	})
	reg.MustRegister(outcomes, providerDuration, balanceRejected, sweptJobs)
	return &GenerationMetrics{
		outcomes:         outcomes,
		providerDuration: providerDuration,
		balanceRejected:  balanceRejected,
		sweptJobs:        sweptJobs,
	}
}

// IncOutcome counts a job reaching the named terminal outcome.
func (g *GenerationMetrics) IncOutcome(outcome string) {
	if g == nil || g.outcomes == nil {
		return
	}
	g.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveProviderDuration records how long a provider call took.
func (g *GenerationMetrics) ObserveProviderDuration(duration time.Duration) {
	if g == nil || g.providerDuration == nil {
		return
	}
	g.providerDuration.Observe(duration.Seconds())
}

// IncInsufficientBalance counts a request turned away without charging.
func (g *GenerationMetrics) IncInsufficientBalance() {
	if g == nil || g.balanceRejected == nil {
		return
	}
	g.balanceRejected.Inc()
}

// IncSwept counts a stuck job resolved by recovery.
func (g *GenerationMetrics) IncSwept() {
	if g == nil || g.sweptJobs == nil {
		return
	}
	g.sweptJobs.Inc()
}
