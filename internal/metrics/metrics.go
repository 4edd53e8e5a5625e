// Package metrics defines the Prometheus collectors exported by the services.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors groups every metric the services record. A nil *Collectors is
// valid and records nothing, which keeps tests and CLI tools free of setup.
type Collectors struct {
	ContextFetchFailures *prometheus.CounterVec
	ContextAssembly      prometheus.Histogram
	CompletionRequests   *prometheus.CounterVec
	GoalContributions    *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		ContextFetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_context_fetch_failures_total",
				Help: "Context sub-fetches that failed and were left empty",
			},
			[]string{"source"},
		),
		ContextAssembly: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "assistant_context_assembly_seconds",
				Help:    "Time spent assembling a context bundle",
				Buckets: prometheus.DefBuckets,
			},
		),
		CompletionRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_completion_requests_total",
				Help: "Completion requests by outcome",
			},
			[]string{"outcome"},
		),
		GoalContributions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goal_contributions_total",
				Help: "Deposits and withdrawals applied to goals",
			},
			[]string{"type"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by method and status code",
			},
			[]string{"method", "status"},
		),
	}

	reg.MustRegister(
		c.ContextFetchFailures,
		c.ContextAssembly,
		c.CompletionRequests,
		c.GoalContributions,
		c.HTTPRequests,
	)
	return c
}

// ContextFetchFailed counts a failed context sub-fetch.
func (c *Collectors) ContextFetchFailed(source string) {
	if c == nil {
		return
	}
	c.ContextFetchFailures.WithLabelValues(source).Inc()
}

// ObserveContextAssembly records how long an assembly took.
func (c *Collectors) ObserveContextAssembly(d time.Duration) {
	if c == nil {
		return
	}
	c.ContextAssembly.Observe(d.Seconds())
}

// CompletionFinished counts a completion request with its outcome.
func (c *Collectors) CompletionFinished(outcome string) {
	if c == nil {
		return
	}
	c.CompletionRequests.WithLabelValues(outcome).Inc()
}

// GoalContribution counts a goal deposit or withdrawal.
func (c *Collectors) GoalContribution(kind string) {
	if c == nil {
		return
	}
	c.GoalContributions.WithLabelValues(kind).Inc()
}

// HTTPRequest counts a served HTTP request.
func (c *Collectors) HTTPRequest(method string, status int) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
