package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exports assignment engine measurements to Prometheus.
type Recorder struct {
	sweepRuns        prometheus.Counter
	sweepAssigned    prometheus.Counter
	sweepFailures    prometheus.Counter
	sweepDuration    prometheus.Histogram
	grants           *prometheus.CounterVec
	deferredFailures prometheus.Counter
}

// NewRecorder registers the collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		sweepRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "quiz_sweep_runs_total",
			Help: "Total number of completed auto-assign sweeps",
		}),
		sweepAssigned: factory.NewCounter(prometheus.CounterOpts{
			Name: "quiz_sweep_assigned_total",
			Help: "Total number of quizzes made pending by the sweep",
		}),
		sweepFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "quiz_sweep_user_failures_total",
			Help: "Total number of users the sweep failed to update",
		}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_sweep_duration_seconds",
			Help:    "Time spent in one auto-assign sweep",
			Buckets: prometheus.DefBuckets,
		}),
		grants: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_collection_grants_total",
			Help: "Total number of collections granted through quizzes",
		}, []string{"mode"}),
		deferredFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "quiz_deferred_grant_failures_total",
			Help: "Total number of delayed collection grants that failed",
		}),
	}
}

func (r *Recorder) SweepFinished(assigned, failures int, elapsed time.Duration) {
	r.sweepRuns.Inc()
	r.sweepAssigned.Add(float64(assigned))
	r.sweepFailures.Add(float64(failures))
	r.sweepDuration.Observe(elapsed.Seconds())
}

func (r *Recorder) CollectionsGranted(mode string, n int) {
	r.grants.WithLabelValues(mode).Add(float64(n))
}

func (r *Recorder) DeferredGrantFailed() {
	r.deferredFailures.Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
