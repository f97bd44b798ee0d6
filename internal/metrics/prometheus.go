// Package metrics exposes import engine measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/stepimport/internal/core"
)

var _ core.Recorder = (*Prometheus)(nil)

// Prometheus records step and completion metrics on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	stepDuration *prometheus.HistogramVec
	steps        *prometheus.CounterVec
	rows         *prometheus.CounterVec
	finished     *prometheus.CounterVec
	hookFailures *prometheus.CounterVec
}

// NewPrometheus creates a recorder with Go runtime and process collectors
// registered alongside the import metrics.
func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	p := &Prometheus{
		registry: registry,
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "import_step_duration_seconds",
			Help:    "Duration of import step executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"entity", "outcome"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "import_steps_total",
			Help: "Total import steps by outcome.",
		}, []string{"entity", "outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Total rows processed by result (accepted, rejected).",
		}, []string{"entity", "result"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "import_batches_finished_total",
			Help: "Total import batches finished.",
		}, []string{"entity"}),
		hookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "import_completion_hook_failures_total",
			Help: "Total completion hook failures.",
		}, []string{"entity"}),
	}

	registry.MustRegister(p.stepDuration, p.steps, p.rows, p.finished, p.hookFailures)
	return p
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// WatchGuard exports the step guard's slot usage.
func (p *Prometheus) WatchGuard(g *core.StepGuard) {
	p.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "import_steps_active",
			Help: "Import steps currently holding a slot.",
		}, func() float64 { return float64(g.Status().Active) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "import_steps_max_concurrent",
			Help: "Maximum concurrently running import steps.",
		}, func() float64 { return float64(g.Status().MaxConcurrent) }),
	)
}

func (p *Prometheus) RecordStep(entity string, res core.StepResult, outcome string, d time.Duration) {
	p.stepDuration.WithLabelValues(entity, outcome).Observe(d.Seconds())
	p.steps.WithLabelValues(entity, outcome).Inc()
	if res.Accepted > 0 {
		p.rows.WithLabelValues(entity, "accepted").Add(float64(res.Accepted))
	}
	if res.Rejected > 0 {
		p.rows.WithLabelValues(entity, "rejected").Add(float64(res.Rejected))
	}
}

func (p *Prometheus) RecordFinish(entity string, hookFailed bool) {
	p.finished.WithLabelValues(entity).Inc()
	if hookFailed {
		p.hookFailures.WithLabelValues(entity).Inc()
	}
}
