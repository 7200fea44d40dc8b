package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder 予測実行のメトリクス。プロセス全体ではなく専用のレジストリに登録する
type Recorder struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	horizon  *prometheus.HistogramVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wage_forecast_runs_total",
				Help: "Total number of forecast runs by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wage_forecast_run_duration_seconds",
				Help:    "Duration of forecast runs in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
			},
			[]string{"strategy"},
		),
		horizon: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wage_forecast_horizon_years",
				Help:    "Number of years requested per forecast run",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
			},
			[]string{"strategy"},
		),
	}
}

// RecordRun records one forecast run. outcome is "ok" or an error kind.
func (r *Recorder) RecordRun(strategy, outcome string, seconds float64, horizonYears int) {
	r.runs.WithLabelValues(strategy, outcome).Inc()
	r.duration.WithLabelValues(strategy).Observe(seconds)
	if horizonYears > 0 {
		r.horizon.WithLabelValues(strategy).Observe(float64(horizonYears))
	}
}

// Registry exposes the underlying registry (tests gather from it).
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
