package process

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors updated after every run
type Metrics struct {
	Runs             prometheus.Counter
	Patches          *prometheus.CounterVec // Labels: "standard", "contact"
	Regularized      prometheus.Counter
	ContactFallbacks prometheus.Counter
	Degenerate       prometheus.Counter
	OrphanNodes      prometheus.Counter
	GuardedElements  prometheus.Counter
	ClampedElements  prometheus.Counter
	PassDuration     *prometheus.HistogramVec // Labels: "recovery", "estimate", "metric"
	ErrorEstimate    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounter(prometheus.CounterOpts{
			Name: "sprmetric_runs_total",
			Help: "Completed estimator runs",
		}),
		Patches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sprmetric_patches_total",
			Help: "Patch solves by kind; a contact patch that falls back counts under both kinds",
		}, []string{"kind"}),
		Regularized: f.NewCounter(prometheus.CounterOpts{
			Name: "sprmetric_patches_regularized_total",
			Help: "Patch systems that needed the regularisation shift",
		}),
		ContactFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "sprmetric_contact_fallbacks_total",
			Help: "Ill-conditioned contact patches solved without the penalty constraint",
		}),
		Degenerate: f.NewCounter(prometheus.CounterOpts{
			Name: "sprmetric_patches_degenerate_total",
			Help: "Patches reduced to the sample mean",
		}),
		OrphanNodes: f.NewCounter(prometheus.CounterOpts{
			Name: "sprmetric_orphan_nodes_total",
			Help: "Nodes without a neighbouring patch",
		}),
		GuardedElements: f.NewCounter(prometheus.CounterOpts{
			Name: "sprmetric_elements_guarded_total",
			Help: "Elements without error that received the maximal size",
		}),
		ClampedElements: f.NewCounter(prometheus.CounterOpts{
			Name: "sprmetric_elements_clamped_total",
			Help: "Elements whose new size hit a size bound",
		}),
		PassDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sprmetric_pass_duration_seconds",
			Help:    "Duration of each estimator pass",
			Buckets: prometheus.ExponentialBuckets(0.0001, 10, 7),
		}, []string{"pass"}),
		ErrorEstimate: f.NewGauge(prometheus.GaugeOpts{
			Name: "sprmetric_error_estimate",
			Help: "Relative error of the last run",
		}),
	}
}

func (m *Metrics) observe(r *Result) {
	m.Runs.Inc()
	m.Patches.WithLabelValues("standard").Add(float64(r.Recovery.Patches - r.Recovery.Contact + r.Recovery.Fallback))
	m.Patches.WithLabelValues("contact").Add(float64(r.Recovery.Contact))
	m.Regularized.Add(float64(r.Recovery.Regularized))
	m.ContactFallbacks.Add(float64(r.Recovery.Fallback))
	m.Degenerate.Add(float64(r.Recovery.Degenerate))
	m.OrphanNodes.Add(float64(r.Recovery.Orphans))
	m.GuardedElements.Add(float64(r.GuardedElements))
	m.ClampedElements.Add(float64(r.ClampedElements))
	m.PassDuration.WithLabelValues("recovery").Observe(r.Durations.Recovery.Seconds())
	m.PassDuration.WithLabelValues("estimate").Observe(r.Durations.Estimate.Seconds())
	m.PassDuration.WithLabelValues("metric").Observe(r.Durations.Metric.Seconds())
	m.ErrorEstimate.Set(r.Global.ErrorPercentage)
}
