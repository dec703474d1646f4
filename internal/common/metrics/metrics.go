// Package metrics exposes Prometheus collectors for workers and template
// executions.
package metrics

import (
	"context"
	"sync"

	"template-engine/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

var outcomeLabels = []string{"channel", "status", "org_id"}

// PrometheusRecorder counts service outcomes. Each metric name becomes a
// <name>_total counter labelled by channel, status and org_id, registered
// on first use.
type PrometheusRecorder struct {
	registerer prometheus.Registerer

	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
}

func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusRecorder{
		registerer: reg,
		counters:   make(map[string]*prometheus.CounterVec),
	}
}

func (r *PrometheusRecorder) Increment(_ context.Context, name string, dims service.Dimensions) {
	counter := r.counter(name)
	if counter == nil {
		return
	}
	counter.WithLabelValues(string(dims.Channel), dims.Status, dims.OrgID).Inc()
}

// Counter returns the vector behind name, or nil if nothing was recorded yet.
func (r *PrometheusRecorder) Counter(name string) *prometheus.CounterVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

func (r *PrometheusRecorder) counter(name string) *prometheus.CounterVec {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name + "_total",
		Help: "Template service outcomes for " + name,
	}, outcomeLabels)

	if err := r.registerer.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil
		}
		c = existing
	}
	r.counters[name] = c
	return c
}
