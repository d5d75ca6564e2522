package admission

import (
	"github.com/Sternrassler/spycheck/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// factory registers on the shared spycheck registry.
var factory = promauto.With(metrics.Registry)

var (
	permitsCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Name: "spycheck_permits_capacity",
		Help: "Configured capacity of the permit pool",
	})

	permitsInUse = factory.NewGauge(prometheus.GaugeOpts{
		Name: "spycheck_permits_in_use",
		Help: "Number of permits currently held by in-flight lookups",
	})

	permitWaitSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "spycheck_permit_wait_seconds",
		Help:    "Time spent waiting for a permit",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
	})
)
