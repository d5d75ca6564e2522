package fanout

import (
	"github.com/Sternrassler/spycheck/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// factory registers on the shared spycheck registry.
var factory = promauto.With(metrics.Registry)

var (
	outcomesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "spycheck_outcomes_total",
		Help: "Completed units of work by result",
	}, []string{"result"}) // "found", "absent", "failed"

	tasksInFlight = factory.NewGauge(prometheus.GaugeOpts{
		Name: "spycheck_tasks_in_flight",
		Help: "Units of work spawned but not yet completed",
	})

	runDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "spycheck_run_duration_seconds",
		Help:    "Duration of a full fan-out run",
		Buckets: []float64{1, 5, 15, 30, 60, 300, 900},
	})
)
