// Package metrics exposes the Prometheus registry all spycheck metrics are
// registered with and dumps it at the end of a run.
//
// Metrics are defined next to the code that updates them (admission, cache,
// client, fanout) and registered with promauto.With(Registry).
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registry is the registerer metrics are created on.
	Registry = prometheus.DefaultRegisterer

	// Gatherer collects everything registered on Registry.
	Gatherer = prometheus.DefaultGatherer
)

// WriteTextfile writes all metrics to path in the text exposition format,
// suitable for the node_exporter textfile collector. The file is replaced
// atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

// Metrics Documentation
//
// Admission Metrics (pkg/admission):
//   - spycheck_permits_capacity (Gauge): Configured permit pool capacity
//   - spycheck_permits_in_use (Gauge): Permits held by in-flight lookups
//   - spycheck_permit_wait_seconds (Histogram): Time spent waiting for a permit
//
// Lookup Metrics (pkg/client):
//   - spycheck_lookup_requests_total{status} (Counter): Lookups by HTTP status, "cache" or "network_error"
//   - spycheck_lookup_duration_seconds (Histogram): Lookup duration
//   - spycheck_lookup_errors_total{class} (Counter): Errors by class (client, server, network)
//
// Cache Metrics (pkg/cache):
//   - spycheck_cache_hits_total (Counter): Cache hits
//   - spycheck_cache_misses_total (Counter): Cache misses
//   - spycheck_cache_errors_total{operation} (Counter): Cache operation errors
//
// Run Metrics (pkg/fanout):
//   - spycheck_outcomes_total{result} (Counter): Outcomes (found, absent, failed)
//   - spycheck_tasks_in_flight (Gauge): Spawned but unfinished units of work
//   - spycheck_run_duration_seconds (Histogram): Full run duration
//
// Example Prometheus Queries:
//
//   # Failure ratio of the last run
//   spycheck_outcomes_total{result="failed"} / ignoring(result) sum(spycheck_outcomes_total)
//
//   # Mean permit wait
//   rate(spycheck_permit_wait_seconds_sum[1h]) / rate(spycheck_permit_wait_seconds_count[1h])
