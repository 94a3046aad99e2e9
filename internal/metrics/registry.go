package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles a Prometheus registry with the tileflow collectors.
type Registry struct {
	reg    *prometheus.Registry
	Layout *LayoutMetrics
}

// NewRegistry creates a registry holding the layout collectors plus the
// Go runtime and process collectors.
func NewRegistry() (*Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	lm, err := NewLayoutMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &Registry{reg: reg, Layout: lm}, nil
}

// Gatherer returns the underlying gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
