// Package metrics exposes Prometheus metrics for optimizer runs and the HTTP API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsStarted counts optimizer runs accepted by the service
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_runs_started_total",
		Help: "Total number of optimizer runs started",
	})

	// RunsFinished counts finished runs by terminal state
	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_runs_finished_total",
		Help: "Total number of optimizer runs finished, by terminal state",
	}, []string{"state"})

	// ActiveRuns is the number of runs currently executing
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wallet_runs_active",
		Help: "Number of optimizer runs currently executing",
	})

	// Generations counts generations evaluated across all runs
	Generations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_generations_total",
		Help: "Total number of generations evaluated",
	})

	// WalletEvaluations counts fitness evaluations
	WalletEvaluations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_evaluations_total",
		Help: "Total number of wallet fitness evaluations",
	})

	// DegenerateWallets counts wallets left unscored for zero volatility
	DegenerateWallets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_degenerate_total",
		Help: "Total number of wallets with degenerate volatility",
	})

	// BestFitness records the best Sharpe ratio reported by each finished run
	BestFitness = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wallet_best_fitness",
		Help:    "Best Sharpe ratio reached by finished runs",
		Buckets: []float64{-1, -0.5, 0, 0.25, 0.5, 1, 1.5, 2, 3, 5},
	})

	// RunDuration records wall-clock run duration in seconds
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wallet_run_duration_seconds",
		Help:    "Optimizer run duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
	})

	// APIRequestDuration records HTTP request durations by route pattern
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"method", "route", "status_code"})
)

// RunSummary is the part of a finished run that is recorded.
type RunSummary struct {
	State       string
	Generations int
	Evaluations int
	Degenerate  int
	BestFitness *float64
	Duration    time.Duration
}

// RecordRunStarted marks a run as started and active
func RecordRunStarted() {
	RunsStarted.Inc()
	ActiveRuns.Inc()
}

// RecordRunFinished records the outcome of a run and marks it inactive
func RecordRunFinished(s RunSummary) {
	ActiveRuns.Dec()
	RunsFinished.WithLabelValues(s.State).Inc()
	Generations.Add(float64(s.Generations))
	WalletEvaluations.Add(float64(s.Evaluations))
	DegenerateWallets.Add(float64(s.Degenerate))
	if s.BestFitness != nil {
		BestFitness.Observe(*s.BestFitness)
	}
	RunDuration.Observe(s.Duration.Seconds())
}

// RecordAPIRequest records one HTTP request
func RecordAPIRequest(method, route, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, route, statusCode).Observe(durationMs)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
