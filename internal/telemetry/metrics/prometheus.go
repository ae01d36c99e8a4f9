package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// SetupPrometheus creates the registry with the standard process, go
// runtime and build info collectors, plus whatever else the caller
// brings (e.g. the pgx pool collector).
func SetupPrometheus(extraCollectors ...prometheus.Collector) *prometheus.Registry {
	registry := prometheus.NewRegistry()

	registry.MustRegister(append(
		[]prometheus.Collector{
			collectors.NewBuildInfoCollector(),
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		},
		extraCollectors...,
	)...)

	return registry
}
