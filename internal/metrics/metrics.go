// Package metrics exposes Prometheus collectors for layout computations.
package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rendis/tileflow/internal/layout"
)

const namespace = "tileflow"

// Result label values besides the lowercased error codes.
const (
	ResultOK       = "ok"
	ResultCanceled = "canceled"
)

// LayoutMetrics records layout outcomes. It implements layout.Observer.
type LayoutMetrics struct {
	layouts  *prometheus.CounterVec
	duration prometheus.Histogram
	paths    prometheus.Histogram
	tiles    prometheus.Histogram
	patterns *prometheus.CounterVec
	fixes    prometheus.Counter
}

var _ layout.Observer = (*LayoutMetrics)(nil)

// NewLayoutMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewLayoutMetrics(reg prometheus.Registerer) (*LayoutMetrics, error) {
	m := &LayoutMetrics{
		layouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "layouts_total",
				Help:      "Layout computations by result.",
			},
			[]string{"result"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_duration_seconds",
			Help:      "Wall time of layout computations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		paths: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_paths",
			Help:      "Distinct execution paths enumerated per successful layout.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		}),
		tiles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_tiles",
			Help:      "Tiles placed per successful layout.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		patterns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "switch_patterns_total",
				Help:      "Classified switches by topology pattern.",
			},
			[]string{"pattern"},
		),
		fixes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_corrections_total",
			Help:      "Row corrections applied by the correction sweeps.",
		}),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *LayoutMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.layouts, m.duration, m.paths, m.tiles, m.patterns, m.fixes}
}

// ObserveLayout implements layout.Observer.
func (m *LayoutMetrics) ObserveLayout(res *layout.Result, elapsed time.Duration, err error) {
	m.layouts.WithLabelValues(ResultLabel(err)).Inc()
	m.duration.Observe(elapsed.Seconds())
	if err != nil || res == nil {
		return
	}

	m.paths.Observe(float64(res.Paths))
	m.tiles.Observe(float64(len(res.Points)))
	for _, t := range res.Switches {
		m.patterns.WithLabelValues(t.Type.String()).Inc()
	}
	m.fixes.Add(float64(len(res.Corrections)))
}

// ResultLabel maps a computation error to its result label.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultCanceled
	default:
		return strings.ToLower(layout.Structured(err).Code)
	}
}
